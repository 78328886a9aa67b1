// Package engine is the facade the presentation layer calls. It resolves
// client ids against the store and delegates to the aggregators, the alert
// evaluator and the report assembler.
package engine
