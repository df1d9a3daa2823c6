// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// This package handles goroutine lifecycle management with panic recovery,
// timeout enforcement and context cancellation.
//
// # Key Functions
//
// SafeGo: Execute function in goroutine with safety features
//
//	async.SafeGo(ctx, 10*time.Second, "membership notification", func(ctx context.Context) error {
//		return notifier.MembershipChanged(ctx, event)
//	})
//
// # Use Cases
//
// Membership change notifications, cache invalidation, retention sweeps.
//
// Batch fan-out with bounded results uses golang.org/x/sync/errgroup
// directly; SafeGo is for fire-and-forget side effects that must never
// crash the request path.
package async
