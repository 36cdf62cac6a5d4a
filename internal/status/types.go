package status

import "time"

// SyncPhase represents the current phase of the sync loop
type SyncPhase string

const (
	// SyncPhaseIdle means no cycle has run yet
	SyncPhaseIdle SyncPhase = "Idle"

	// SyncPhaseSyncing means a cycle is in progress
	SyncPhaseSyncing SyncPhase = "Syncing"

	// SyncPhaseComplete means the latest check or cycle succeeded
	SyncPhaseComplete SyncPhase = "Complete"

	// SyncPhaseFailed means the latest check or cycle failed
	SyncPhaseFailed SyncPhase = "Failed"
)

// SyncStatus represents the outcome of the latest sync cycle
type SyncStatus struct {
	// Phase represents the current synchronization phase
	Phase SyncPhase `json:"phase" yaml:"phase"`

	// Message provides additional information about the phase
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// CycleID identifies the latest cycle
	CycleID string `json:"cycleId,omitempty" yaml:"cycleId,omitempty"`

	// Direction is the direction of the latest cycle
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"`

	// LastCheck is the timestamp of the latest change check
	LastCheck *time.Time `json:"lastCheck,omitempty" yaml:"lastCheck,omitempty"`

	// LastAttempt is the timestamp of the latest cycle
	LastAttempt *time.Time `json:"lastAttempt,omitempty" yaml:"lastAttempt,omitempty"`

	// AttemptCount is the number of cycles since the last success
	AttemptCount int `json:"attemptCount,omitempty" yaml:"attemptCount,omitempty"`

	// LastSyncTime is the timestamp of the latest successful cycle
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty" yaml:"lastSyncTime,omitempty"`

	// Synced lists the resources merged by the latest successful cycle
	Synced []string `json:"synced,omitempty" yaml:"synced,omitempty"`

	// Skipped lists the resources whose lock was denied in the latest successful cycle
	Skipped []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`

	// ETags are the baselines recorded after the latest successful cycle
	ETags map[string]string `json:"etags,omitempty" yaml:"etags,omitempty"`
}
