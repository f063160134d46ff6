package sdk

import (
	"fmt"
	"strings"
)

// javascriptPrelude mirrors the Python prelude for Node: synchronous reads
// on fd 4 keep binding calls blocking from the script's point of view.
const javascriptPrelude = `// Generated tool bindings. Do not edit.
"use strict";
const _fs = require("fs");

class ToolCallError extends Error {
  constructor(tool, message) {
    super(tool + ": " + message);
    this.name = "ToolCallError";
    this.tool = tool;
  }
}

let _nextID = 0;
let _pending = "";

function _readLine() {
  const chunk = Buffer.alloc(4096);
  for (;;) {
    const idx = _pending.indexOf("\n");
    if (idx >= 0) {
      const line = _pending.slice(0, idx);
      _pending = _pending.slice(idx + 1);
      return line;
    }
    let n;
    try {
      n = _fs.readSync(4, chunk, 0, chunk.length, null);
    } catch (err) {
      if (err.code === "EAGAIN") continue;
      throw err;
    }
    if (n === 0) return null;
    _pending += chunk.slice(0, n).toString("utf8");
  }
}

function _invoke(tool, args) {
  _nextID += 1;
  const id = String(_nextID);
  _fs.writeSync(3, JSON.stringify({ type: "tool_call", id: id, payload: { tool: tool, args: args } }) + "\n");
  for (;;) {
    const line = _readLine();
    if (line === null) throw new ToolCallError(tool, "ipc channel closed");
    let msg;
    try {
      msg = JSON.parse(line);
    } catch (err) {
      continue;
    }
    if (msg.id !== id) continue;
    const payload = msg.payload || {};
    if (msg.type === "tool_error") {
      throw new ToolCallError(tool, payload.error || "unknown error");
    }
    return payload.result;
  }
}

process.on("exit", function () {
  const value = globalThis.result;
  if (value === undefined || value === null) return;
  try {
    process.stdout.write(JSON.stringify({ __result: value }) + "\n");
  } catch (err) {
    // unserializable result values are dropped
  }
});
`

// renderJavaScript emits the prelude, one function per binding, and the
// module exports.
func renderJavaScript(bindings []binding) string {
	var b strings.Builder
	b.WriteString(javascriptPrelude)

	exports := []string{"ToolCallError"}
	for _, bd := range bindings {
		exports = append(exports, bd.ident)
		b.WriteString("\n")
		if bd.doc != "" {
			fmt.Fprintf(&b, "// %s\n", strings.ReplaceAll(bd.doc, "\n", "\n// "))
		}
		if bd.freeform {
			fmt.Fprintf(&b, "function %s(args) {\n  return _invoke(%q, args || {});\n}\n", bd.ident, bd.tool)
			continue
		}

		var sig []string
		for _, p := range bd.params {
			sig = append(sig, p.ident)
		}
		fmt.Fprintf(&b, "function %s(%s) {\n", bd.ident, strings.Join(sig, ", "))
		b.WriteString("  const args = {};\n")
		for _, p := range bd.params {
			if p.required {
				fmt.Fprintf(&b, "  args[%q] = %s;\n", p.name, p.ident)
			} else {
				fmt.Fprintf(&b, "  if (%s !== undefined) args[%q] = %s;\n", p.ident, p.name, p.ident)
			}
		}
		fmt.Fprintf(&b, "  return _invoke(%q, args);\n}\n", bd.tool)
	}

	b.WriteString("\nmodule.exports = { ")
	b.WriteString(strings.Join(exports, ", "))
	b.WriteString(" };\n")
	return b.String()
}
