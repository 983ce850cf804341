// Package async runs fire-and-forget background work with panic recovery,
// per-task timeouts and a drain point for graceful shutdown.
//
//	runner := async.NewRunner(logger)
//	runner.Go(ctx, 5*time.Second, "audit write", func(ctx context.Context) error {
//		return store.Insert(ctx, event)
//	})
//	defer runner.Wait(10 * time.Second)
//
// Tasks run on a context detached from the caller's cancellation, so a
// finished HTTP request does not abort the work it scheduled.
package async
