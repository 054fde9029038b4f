// Package swarm downloads one large file in parallel byte ranges through a pool of
// unreliable proxies.
//
// A run moves through INIT, SIZING and DOWNLOADING to COMPLETE. INIT fails with
// ErrNoProxiesAvailable when the validated set is empty; SIZING fails with
// ErrSizingFailed when no proxy yields both a lease and a size. DOWNLOADING has no
// failure state: every chunk attempt either succeeds or is put back on the queue
// and retried through another randomly chosen proxy, with a fresh lease, for as
// long as it takes. Callers that need a bound set Config.MaxAttempts or cancel the
// context.
package swarm
