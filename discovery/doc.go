// Package discovery provides the tool discovery index.
//
// The [Index] holds immutable [Descriptor] snapshots sourced from an
// external [Registry] and answers keyword searches at three payload
// sizes controlled by [DetailLevel]: names only, names plus
// descriptions, or full parameter schemas. Bounding the payload bounds
// the context cost of exposing tools to a model.
//
// Ranking is deterministic: exact name matches first, then substring
// matches, then fuzzy matches above a similarity threshold, with ties
// broken alphabetically by name. Zero results is a valid, non-error
// outcome. The same rules are exported via [Rank] so the skill store
// searches with identical semantics.
package discovery
