// Package worker implements the background conversion pool. Job IDs flow
// to workers over a buffered channel, but the channel is only a scheduling
// hint: the store's atomic claim is the correctness gate, so a job ID may
// be offered twice (submission plus a monitor re-sweep) and still be
// processed exactly once.
package worker
