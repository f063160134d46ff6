// Package sandbox runs agent-authored code in an isolated interpreter
// process with bounded resources.
//
// Each [Runtime.Execute] call spawns a fresh interpreter rooted at an
// ephemeral scratch directory, injects the generated SDK as an
// importable prelude, and wires the IPC channel before user code runs.
// A wall-clock timeout terminates the whole process group on expiry and
// captured stdout/stderr are truncated beyond a configurable cap rather
// than buffered unbounded.
//
// After the process exits, the runtime extracts the value the code bound
// to the sentinel name "result": the prelude emits it as a JSON line on
// stdout at interpreter exit and the runtime strips that line from the
// visible output. An absent result is nil, not an error; an unparseable
// one yields an advisory parse error with the raw text preserved.
//
// Concurrent executions are fully isolated: they share no sandbox state,
// and each gets its own bridge, token map, and scratch directory.
package sandbox
