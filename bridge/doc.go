// Package bridge implements the synchronous IPC protocol that lets
// sandboxed code call real tools.
//
// The sandboxed process writes a line-delimited JSON [Message] of type
// "tool_call" and blocks; [Bridge.Serve] reads it, forwards the call to
// the external [Executor], and writes back a correlated "tool_result"
// or "tool_error" message before the sandboxed code's next instruction
// runs. Because each binding call blocks the sandbox's execution
// thread, calls are strictly sequential within one execution.
//
// The bridge is also the security gate for arbitrary-code execution:
// only tool names present in the SDK generated for this execution are
// accepted, arguments are validated against the tool's JSON schema, and
// unknown or invalid calls are rejected locally without ever reaching
// the executor. Sensitive values are restored (detokenized) only on the
// way to the executor and re-tokenized in results flowing back toward
// the sandbox.
package bridge
