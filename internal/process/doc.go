// Package process supervises a subprocess over its whole lifetime.
//
// homeautod uses it to optionally run the dispatch process (dispatchd)
// itself: the subprocess is started with the same configuration, its output
// is relayed to the structured log, and an unexpected exit triggers a
// delayed restart within a configurable budget. Stop terminates the whole
// process group, escalating from SIGTERM to SIGKILL.
package process
