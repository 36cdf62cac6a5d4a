package app

import (
	"github.com/stacklok/davsync/internal/status"
	pkgsync "github.com/stacklok/davsync/internal/sync"
	"github.com/stacklok/davsync/internal/sync/coordinator"
	"github.com/stacklok/davsync/internal/sync/state"
	"github.com/stacklok/davsync/internal/telemetry"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// SyncManager runs change checks and sync cycles
	SyncManager pkgsync.Manager

	// SyncCoordinator schedules checks in the watch loop
	SyncCoordinator coordinator.Coordinator

	// ETags are the baselines shared by every cycle of the process
	ETags *state.ETags

	// Status records the outcome of the latest cycle
	Status *status.Tracker

	// Telemetry owns the tracer and meter providers
	Telemetry *telemetry.Telemetry
}
