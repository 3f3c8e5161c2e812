// Package expr implements the rule expression language: a small, sandboxed
// mini-language evaluated against a fixed set of bound names.
//
// Expressions can only reach state through the capabilities in Env —
// variable get/set/toggle, device aliveness queries, and (during trigger
// execution) the triggering pin's identity and the audit log. There is no
// general evaluator underneath; the text is parsed into an AST and walked
// directly, so the sandbox boundary is the grammar itself.
//
// Example pin expression:
//
//	variable.get('night_mode') and device.isAlive('hallway')
//
// Example trigger expression:
//
//	variable.toggle('light'); log.log('toggled by ' + pin.device)
package expr
