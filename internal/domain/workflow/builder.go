package workflow

import (
	"fmt"

	"github.com/google/uuid"
)

// Builder provides a fluent interface for constructing workflow definitions.
// Structural problems accumulate and surface once, from Build.
type Builder struct {
	def  Definition
	errs []error

	// nextX spaces nodes horizontally so rendered definitions stay legible
	// in the remote editor.
	nextX int
}

// NewBuilder starts a definition with the given workflow name.
func NewBuilder(name string) *Builder {
	return &Builder{
		def: Definition{
			Name:        name,
			Connections: make(map[string][]Connection),
		},
	}
}

// WithWebhook adds the webhook trigger node listening on path.
func (b *Builder) WithWebhook(path string) *Builder {
	if path == "" {
		b.errs = append(b.errs, fmt.Errorf("webhook path must not be empty"))
		return b
	}
	return b.AddNode("Webhook", NodeTypeWebhook, map[string]any{
		webhookPathParam: path,
	})
}

// AddNode appends a node with a generated ID and auto-assigned position.
func (b *Builder) AddNode(name, nodeType string, parameters map[string]any) *Builder {
	b.def.Nodes = append(b.def.Nodes, Node{
		ID:         uuid.NewString(),
		Name:       name,
		Type:       nodeType,
		Parameters: parameters,
		Position:   [2]int{b.nextX, 0},
	})
	b.nextX += 200
	return b
}

// Connect links the from node's output to the to node's first input.
func (b *Builder) Connect(from, to string) *Builder {
	return b.ConnectInput(from, to, 0)
}

// ConnectInput links the from node's output to a specific input index on to.
func (b *Builder) ConnectInput(from, to string, index int) *Builder {
	b.def.Connections[from] = append(b.def.Connections[from], Connection{
		To:    to,
		Index: index,
	})
	return b
}

// WithSetting sets one workflow-level setting.
func (b *Builder) WithSetting(key string, value any) *Builder {
	if b.def.Settings == nil {
		b.def.Settings = make(map[string]any)
	}
	b.def.Settings[key] = value
	return b
}

// Build validates and returns the constructed definition.
func (b *Builder) Build() (Definition, error) {
	for _, err := range b.errs {
		return Definition{}, fmt.Errorf("build definition: %w", err)
	}
	if err := b.def.Validate(); err != nil {
		return Definition{}, fmt.Errorf("build definition: %w", err)
	}
	return b.def, nil
}
