// Package pii provides reversible redaction of sensitive substrings.
//
// A [Tokenizer] runs a set of detectors (email, SSN, credit card,
// API-key-shaped strings, phone numbers, plus registrable custom
// patterns) over text crossing the sandbox boundary and replaces each
// match with an opaque token of the form
//
//	[[PII:<kind>:<id>]]
//
// The fixed prefix makes accidental collision with legitimate content
// extremely unlikely. Original values live only in the per-execution
// [TokenMap] and are never serialized alongside their tokens;
// [Tokenizer.Detokenize] restores them when a real value must reach the
// tool executor.
//
// Detector failure degrades to pass-through: a panicking pattern is
// logged and skipped, and tokenization never blocks an execution.
package pii
