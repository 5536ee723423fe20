// Package httpclient executes the benchmark's HTTP requests.
//
// An [Executor] is built once from configuration and shared by all workers.
// Each worker opens its own [Handle], which owns a private transport: with
// keep-alive enabled the handle reuses one connection for as long as requests
// succeed, otherwise every request dials a new one.
//
//	exec, err := httpclient.NewExecutor(cfg, tracingProvider)
//	if err != nil {
//		return err
//	}
//	h, err := exec.Open(ctx)
//	n, err := h.Perform(ctx)
//	_ = h.Release()
//
// Perform reads the whole response body and returns its length. HEAD
// responses have no body and return 0. Responses with status 400 or above are
// failures only when fail-status is enabled, in which case Perform returns a
// [runner.HTTPError]. Redirects are never followed.
//
// When tracing is enabled every Perform call records a client span and,
// unless propagation is disabled, injects W3C trace context headers.
package httpclient
