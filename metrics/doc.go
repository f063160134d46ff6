// Package metrics provides the cross-cutting collector fed by every other
// codemode component.
//
// The [Collector] aggregates typed events (discovery queries, SDK
// generations, code executions, PII detections, tool calls, skill
// operations) into per-stage counters and bounded recent-event ring
// buffers. Aggregation is lock-light: counters use sync/atomic and only
// the small ring buffers take a mutex, so emission does not materially
// add latency to any caller's hot path.
//
// Two export surfaces are offered: [Collector.Snapshot] returns a
// structured, nested view, and [Collector.Flatten] returns a flat
// key/value map suitable for logging or serialization. When constructed
// with [WithRegistry], the collector additionally mirrors its counters
// and timers into Prometheus metrics.
//
// Collectors are injected into components at construction; there is no
// ambient global. Use [NewNop] in tests that do not assert on metrics.
package metrics
