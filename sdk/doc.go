// Package sdk generates per-language tool bindings for sandboxed code.
//
// Given a subset of discovered tools and a target language, [Generator.Generate]
// emits a self-contained source prelude: an IPC client speaking the
// bridge's line-delimited JSON protocol over inherited pipes, plus one
// callable binding per tool. A binding's parameter list is derived from
// the tool's input schema; its body serializes arguments, sends a tool
// call message, blocks for the correlated response, and returns the
// decoded result or raises a language-native ToolCallError on failure.
//
// Generation is pure and deterministic: an identical tool set and
// language always yield byte-identical source, which the generator
// exploits with a content-hash cache. Two tools whose names sanitize to
// the same target-language identifier are rejected at generation time.
package sdk
