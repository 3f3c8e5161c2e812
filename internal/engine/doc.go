// Package engine computes intended output-pin states from rule expressions
// and reacts to input-pin edge events.
//
// The pipeline is: snapshot intended states, apply mutations (a device
// report or trigger firing), snapshot again, and diff. The diff is the
// minimal change set the dispatch subsystem must push to devices.
package engine
