package sdk

import (
	"fmt"
	"strings"
)

// pythonPrelude is the IPC client injected ahead of the bindings. It speaks
// the bridge protocol: line-delimited JSON requests on inherited fd 3,
// correlated responses on fd 4. Calls block until their response arrives,
// so tool calls within one execution are strictly sequential.
const pythonPrelude = `"""Generated tool bindings. Do not edit."""
import atexit as _atexit
import json as _json
import os as _os
import sys as _sys


class ToolCallError(Exception):
    """Raised when a tool call is rejected or fails."""

    def __init__(self, tool, message):
        super().__init__("%s: %s" % (tool, message))
        self.tool = tool
        self.message = message


_req = _os.fdopen(3, "w", buffering=1)
_resp = _os.fdopen(4, "r")
_next_id = 0


def _invoke(tool, args):
    global _next_id
    _next_id += 1
    cid = str(_next_id)
    _req.write(_json.dumps({"type": "tool_call", "id": cid,
                            "payload": {"tool": tool, "args": args}}) + "\n")
    while True:
        line = _resp.readline()
        if not line:
            raise ToolCallError(tool, "ipc channel closed")
        try:
            msg = _json.loads(line)
        except ValueError:
            continue
        if msg.get("id") != cid:
            continue
        payload = msg.get("payload") or {}
        if msg.get("type") == "tool_error":
            raise ToolCallError(tool, payload.get("error", "unknown error"))
        return payload.get("result")


def _emit_result():
    import __main__
    value = getattr(__main__, "result", None)
    if value is None:
        return
    try:
        _sys.stdout.write(_json.dumps({"__result": value}) + "\n")
        _sys.stdout.flush()
    except (TypeError, ValueError):
        pass


_atexit.register(_emit_result)
`

// renderPython emits the prelude plus one function per binding.
func renderPython(bindings []binding) string {
	var b strings.Builder
	b.WriteString(pythonPrelude)

	for _, bd := range bindings {
		b.WriteString("\n\n")
		if bd.freeform {
			fmt.Fprintf(&b, "def %s(**kwargs):\n", bd.ident)
			writePythonDoc(&b, bd.doc)
			fmt.Fprintf(&b, "    return _invoke(%q, dict(kwargs))\n", bd.tool)
			continue
		}

		var sig []string
		for _, p := range bd.params {
			if p.required {
				sig = append(sig, p.ident)
			} else {
				sig = append(sig, p.ident+"=None")
			}
		}
		fmt.Fprintf(&b, "def %s(%s):\n", bd.ident, strings.Join(sig, ", "))
		writePythonDoc(&b, bd.doc)

		b.WriteString("    args = {}\n")
		for _, p := range bd.params {
			if p.required {
				fmt.Fprintf(&b, "    args[%q] = %s\n", p.name, p.ident)
			} else {
				fmt.Fprintf(&b, "    if %s is not None:\n        args[%q] = %s\n", p.ident, p.name, p.ident)
			}
		}
		fmt.Fprintf(&b, "    return _invoke(%q, args)\n", bd.tool)
	}
	return b.String()
}

func writePythonDoc(b *strings.Builder, doc string) {
	if doc == "" {
		return
	}
	doc = strings.ReplaceAll(doc, `"""`, `\"\"\"`)
	if strings.Contains(doc, "\n") {
		fmt.Fprintf(b, "    \"\"\"%s\n    \"\"\"\n", strings.ReplaceAll(doc, "\n", "\n    "))
		return
	}
	fmt.Fprintf(b, "    \"\"\"%s\"\"\"\n", doc)
}
