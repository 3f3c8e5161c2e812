// Package dispatch delivers pin-set requests to devices asynchronously.
//
// Each distinct device address gets its own connection actor: a worker
// goroutine draining a FIFO queue against one keep-alive HTTP client.
// Submission never blocks, requests to one address are delivered in
// submission order, and a slow or unreachable device stalls only its own
// actor. Transport failures are retried within a small budget; a non-2xx
// response is not. Every failure is forwarded to an error handler rather
// than returned, so dispatch problems never crash the caller.
package dispatch
