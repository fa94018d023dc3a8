// Package workflow models the remote service's workflow documents: the JSON
// shape uploaded to (and triggered on) the automation service, plus a fluent
// builder for constructing them programmatically.
package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
)

// NodeTypeWebhook is the node type that exposes a workflow as a webhook
// trigger. Every triggerable definition carries exactly one.
const NodeTypeWebhook = "webhook"

// webhookPathParam is the node parameter holding the trigger path.
const webhookPathParam = "path"

// Definition describes one remote workflow document.
type Definition struct {
	Name        string                  `json:"name"`
	Nodes       []Node                  `json:"nodes"`
	Connections map[string][]Connection `json:"connections,omitempty"`
	Settings    map[string]any          `json:"settings,omitempty"`
}

// Node is one step of a workflow.
type Node struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Position   [2]int         `json:"position"`
}

// Connection links a node's output to another node's input. The source node
// is the key of Definition.Connections.
type Connection struct {
	To    string `json:"to"`
	Index int    `json:"index"`
}

// Validate checks the structural rules the remote service enforces on
// upload: a named workflow, unique node names, exactly one webhook trigger,
// and connections that reference known nodes.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return errors.New("workflow name is required")
	}
	if len(d.Nodes) == 0 {
		return errors.New("workflow requires at least one node")
	}

	names := make(map[string]struct{}, len(d.Nodes))
	webhooks := 0
	for i := range d.Nodes {
		node := &d.Nodes[i]
		if node.Name == "" {
			return errors.New("node name is required")
		}
		if node.Type == "" {
			return fmt.Errorf("node %q requires a type", node.Name)
		}
		if _, dup := names[node.Name]; dup {
			return fmt.Errorf("duplicate node name %q", node.Name)
		}
		names[node.Name] = struct{}{}
		if node.Type == NodeTypeWebhook {
			webhooks++
		}
	}
	if webhooks != 1 {
		return fmt.Errorf("workflow requires exactly one webhook trigger node, found %d", webhooks)
	}

	for from, links := range d.Connections {
		if _, ok := names[from]; !ok {
			return fmt.Errorf("connection source %q is not a node", from)
		}
		for _, link := range links {
			if _, ok := names[link.To]; !ok {
				return fmt.Errorf("connection target %q is not a node", link.To)
			}
			if link.Index < 0 {
				return fmt.Errorf("connection %s -> %s has negative input index", from, link.To)
			}
		}
	}
	return nil
}

// WebhookPath returns the trigger path configured on the definition's
// webhook node.
func (d *Definition) WebhookPath() (string, error) {
	for i := range d.Nodes {
		node := &d.Nodes[i]
		if node.Type != NodeTypeWebhook {
			continue
		}
		raw, ok := node.Parameters[webhookPathParam]
		if !ok {
			return "", fmt.Errorf("webhook node %q has no %q parameter", node.Name, webhookPathParam)
		}
		path, ok := raw.(string)
		if !ok || path == "" {
			return "", fmt.Errorf("webhook node %q has an empty %q parameter", node.Name, webhookPathParam)
		}
		return path, nil
	}
	return "", errors.New("definition has no webhook trigger node")
}

// MarshalWire serializes the definition to the remote service's JSON shape.
func (d *Definition) MarshalWire() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("validate definition: %w", err)
	}
	return json.Marshal(d)
}
