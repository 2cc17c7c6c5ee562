package plan

import (
	"encoding/json"
	"fmt"
)

// NodeType classifies one step of a campaign plan.
type NodeType string

const (
	NodeSend    NodeType = "send"
	NodeWait    NodeType = "wait"
	NodeTimeout NodeType = "timeout"
)

// StopTarget is the edge target that terminates the campaign instead of
// moving to another node.
const StopTarget = ""

// Edge routes one event type to the next node. To == StopTarget ends the
// campaign.
type Edge struct {
	On string `json:"on"`
	To string `json:"to"`
}

// Node is one step in the plan graph. A node with no edges is terminal by
// inertia: a contact parked there only moves via external timer machinery.
type Node struct {
	ID          string   `json:"id"`
	Type        NodeType `json:"type"`
	TemplateID  string   `json:"template_id,omitempty"`
	WaitSeconds int      `json:"wait_seconds,omitempty"`
	Edges       []Edge   `json:"edges,omitempty"`
}

// Plan is the directed graph describing one campaign's outreach sequence.
// It is static, read-only data once the campaign is created.
type Plan struct {
	StartNodeID string `json:"start_node_id"`
	Nodes       []Node `json:"nodes"`
}

// Parse unmarshals and validates a plan document.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid plan document: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Node returns the node with the given id, or nil.
func (p *Plan) Node(id string) *Node {
	for i := range p.Nodes {
		if p.Nodes[i].ID == id {
			return &p.Nodes[i]
		}
	}
	return nil
}

// Match returns the outgoing edge of nodeID triggered by eventType, or nil
// when the node is unknown or has no edge for that event.
func (p *Plan) Match(nodeID, eventType string) *Edge {
	node := p.Node(nodeID)
	if node == nil {
		return nil
	}
	for i := range node.Edges {
		if node.Edges[i].On == eventType {
			return &node.Edges[i]
		}
	}
	return nil
}

// Validate checks structural integrity: at least one node, a resolvable
// start node, unique node ids, and every edge targeting a known node or
// the stop target.
func (p *Plan) Validate() error {
	if len(p.Nodes) == 0 {
		return fmt.Errorf("plan has no nodes")
	}
	seen := make(map[string]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		if n.ID == "" {
			return fmt.Errorf("plan node with empty id")
		}
		if seen[n.ID] {
			return fmt.Errorf("duplicate plan node id %q", n.ID)
		}
		seen[n.ID] = true
		switch n.Type {
		case NodeSend, NodeWait, NodeTimeout:
		default:
			return fmt.Errorf("plan node %q has unknown type %q", n.ID, n.Type)
		}
	}
	if p.StartNodeID == "" || !seen[p.StartNodeID] {
		return fmt.Errorf("plan start node %q does not exist", p.StartNodeID)
	}
	for _, n := range p.Nodes {
		for _, e := range n.Edges {
			if e.On == "" {
				return fmt.Errorf("plan node %q has an edge with no trigger", n.ID)
			}
			if e.To != StopTarget && !seen[e.To] {
				return fmt.Errorf("plan node %q has an edge to unknown node %q", n.ID, e.To)
			}
		}
	}
	return nil
}
