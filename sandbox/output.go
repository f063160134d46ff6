package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrResultParse is the advisory error attached when a result line is
// present but not decodable. The raw output is still returned.
var ErrResultParse = errors.New("sandbox: result parse error")

// resultKey is the JSON key the prelude emits the sentinel value under.
const resultKey = "__result"

// truncationMarker is appended to capped output.
const truncationMarker = "\n...[output truncated]"

// capWriter captures writes up to a byte limit and drops the rest.
type capWriter struct {
	mu        sync.Mutex
	buf       strings.Builder
	limit     int
	truncated bool
}

func newCapWriter(limit int) *capWriter {
	return &capWriter{limit: limit}
}

// Write never fails; the sandboxed process must not see write errors on
// its own stdout.
func (w *capWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.truncated {
		room := w.limit - w.buf.Len()
		if room > 0 {
			if len(p) <= room {
				w.buf.Write(p)
			} else {
				w.buf.Write(p[:room])
				w.truncated = true
			}
		} else {
			w.truncated = true
		}
	}
	return len(p), nil
}

// String returns the captured output with a marker when truncated.
func (w *capWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.truncated {
		return w.buf.String() + truncationMarker
	}
	return w.buf.String()
}

// extractResult scans stdout for the prelude's result line, returning the
// decoded value and stdout with that line removed. A line that mentions
// the result key but fails to decode produces an advisory error and is
// left in place.
func extractResult(stdout string) (value any, remaining string, err error) {
	if stdout == "" {
		return nil, "", nil
	}

	lines := strings.Split(stdout, "\n")
	kept := make([]string, 0, len(lines))
	found := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if found || trimmed == "" || !strings.Contains(trimmed, `"`+resultKey+`"`) {
			kept = append(kept, line)
			continue
		}

		var obj map[string]any
		if jsonErr := json.Unmarshal([]byte(trimmed), &obj); jsonErr == nil {
			if v, ok := obj[resultKey]; ok {
				value = v
				found = true
				continue
			}
		} else if err == nil {
			err = fmt.Errorf("%w: %v", ErrResultParse, jsonErr)
		}
		kept = append(kept, line)
	}

	if found {
		// A decoded result supersedes an earlier advisory failure.
		err = nil
	}
	return value, strings.Join(kept, "\n"), err
}
