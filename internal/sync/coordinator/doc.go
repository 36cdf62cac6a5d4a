// Package coordinator runs sync cycles on an interval.
//
// The coordinator sits on top of sync.Manager and owns the only state.ETags
// the manager is called with. Each check asks the manager which side changed
// and picks the direction of the cycle:
//
//   - satellites changed: SyncFiles with the satellites as source of truth
//   - only the main document changed: SyncFiles with the main document as source of truth
//   - nothing changed: no cycle
//
// On startup the baselines are empty, so the first check always runs a cycle
// with the satellites as source of truth.
//
// # Scheduling
//
// Checks run once at startup and then on a ticker whose period is the
// configured interval with up to 10% of random jitter, recalculated after
// every check.
//
// # Error Handling
//
// A failed check or cycle stops the coordinator and Start returns the error.
// An empty main document stops it without error. Cancelling the context or
// calling Stop ends the loop cleanly.
//
// # Usage Example
//
//	manager, err := sync.NewDefaultSyncManager(client, "main.xml", resources)
//	if err != nil {
//	    return err
//	}
//	c := coordinator.New(manager, 30*time.Second)
//	if err := c.Start(ctx); err != nil {
//	    return err
//	}
package coordinator
