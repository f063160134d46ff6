package discovery

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Descriptor is an immutable snapshot of an invocable tool. It embeds the
// MCP tool shape (name, description, input schema) and tags the provider
// it originated from.
type Descriptor struct {
	mcp.Tool

	// Origin identifies the provider the descriptor came from,
	// e.g. "builtin" or an MCP server name.
	Origin string
}

// Schema returns the tool's parameter schema, nil when the tool takes
// no arguments or carries a schema in another representation.
func (d Descriptor) Schema() *jsonschema.Schema {
	sch, _ := d.InputSchema.(*jsonschema.Schema)
	return sch
}

// DetailLevel controls how much of a Descriptor a search result exposes.
type DetailLevel string

// Supported detail levels, smallest payload first.
const (
	DetailNameOnly    DetailLevel = "name-only"
	DetailNameAndDesc DetailLevel = "name-and-description"
	DetailFull        DetailLevel = "full"
)

// Valid reports whether l is a known detail level.
func (l DetailLevel) Valid() bool {
	switch l {
	case DetailNameOnly, DetailNameAndDesc, DetailFull:
		return true
	}
	return false
}

// Hit is one ranked search result, rendered at the requested detail level.
type Hit struct {
	// Name is always present.
	Name string `json:"name"`

	// Description is present at DetailNameAndDesc and DetailFull.
	Description string `json:"description,omitempty"`

	// Schema and Origin are present only at DetailFull.
	Schema *jsonschema.Schema `json:"schema,omitempty"`
	Origin string             `json:"origin,omitempty"`

	// Score is the relevance score in (0, 1].
	Score float64 `json:"score"`
}

// render projects a descriptor onto a Hit at the given detail level.
func render(d Descriptor, level DetailLevel, score float64) Hit {
	h := Hit{Name: d.Name, Score: score}
	switch level {
	case DetailNameAndDesc:
		h.Description = d.Description
	case DetailFull:
		h.Description = d.Description
		h.Schema = d.Schema()
		h.Origin = d.Origin
	}
	return h
}
