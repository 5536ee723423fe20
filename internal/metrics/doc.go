// Package metrics aggregates per-worker counters into the final run report.
//
// Workers never share counters. Each produces a single [report.Result] when it
// stops, and the coordinator folds those into an [Aggregator]:
//
//	agg := metrics.NewAggregator(spawned)
//	for _, res := range collected {
//		_ = agg.Add(res)
//	}
//	rep := agg.Report(benchTime, time.Since(start))
//
// # Rates
//
// [Report.RequestsPerSec] and [Report.BytesPerSec] are floored and use the
// configured bench time as the divisor, so they describe nominal throughput
// over the intended run length rather than the measured wall clock.
//
// # Lost workers
//
// A worker whose message never arrives is counted in [Report.Lost] and
// contributes zero. Adding more results than workers were spawned is rejected
// with [ErrTooManyResults].
package metrics
