// Package executor is the inter-process request channel between the
// report-handling process and the dispatch process.
//
// Actions are JSON-encoded dispatch.Action values carried over a local unix
// datagram socket. The web-facing process fires them off without waiting,
// so a slow device can never stall report handling; the dispatch process
// owns the socket and feeds every decoded action to its dispatcher.
package executor
