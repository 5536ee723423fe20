// Package runner is the benchmark engine for mybench.
//
// A run has two halves. Workers each own one connection handle and loop
// until their deadline passes or their round budget is spent, counting
// successes, failures and body bytes. The coordinator spawns the workers,
// reads exactly one message per worker from a shared pipe and aggregates
// them.
//
// # Worker loop
//
// [RunWorker] implements the loop. The deadline is armed after a stagger
// delay and only checked between requests, so a request that is in flight
// when the deadline expires always completes and is counted:
//
//	res := runner.RunWorker(ctx, runner.WorkerOptions{
//		Executor:  exec,
//		BenchTime: 10 * time.Second,
//		Rounds:    100,
//		KeepAlive: true,
//	})
//
// # Isolation
//
// Workers are started by a [Spawner]. [GoroutineSpawner] runs them in
// process and recovers panics; the spawn package re-executes the binary for
// process isolation. Either way a worker that dies before reporting is
// counted as lost, never as zero.
//
// # Middleware
//
// [WithLogging] wraps an [Executor] so each failed request is handed to a
// [FailureLogger].
package runner
