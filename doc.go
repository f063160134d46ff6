// Package codemode lets agents drive tools through generated code
// instead of one-call-per-message tool use.
//
// An Engine exposes the full surface: search the tool index, execute a
// code snippet in a sandboxed interpreter with a generated SDK bound to
// a chosen tool subset, and save successful snippets as named skills
// for later replay.
//
//	engine, err := codemode.New(codemode.Options{
//		Registry: reg,
//		Executor: exec,
//	})
//	if err != nil { ... }
//	res, err := engine.ExecuteCode(ctx, codemode.ExecuteParams{
//		Code:     `result = sum(range(1000000))`,
//		Language: "python3",
//	})
//
// Tool implementations stay outside this module: callers supply a
// discovery.Registry for the live tool list and a bridge.Executor that
// performs the actual invocations.
package codemode
