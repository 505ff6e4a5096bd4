// Package rebuild defines the build targets and the rebuild request that
// flows from the classifier through the debounce window to the bundle
// manager.
package rebuild

import "strings"

// Target is one of the two independently buildable artifacts.
type Target int

const (
	Node Target = iota
	Browser
)

// Targets lists every target in a stable order.
func Targets() []Target {
	return []Target{Node, Browser}
}

func (t Target) String() string {
	switch t {
	case Node:
		return "node"
	case Browser:
		return "browser"
	default:
		return "unknown"
	}
}

// Request says which targets must be rebuilt. ExplicitNode is set only when
// the triggering change was server-specific; it selects a hard reload after
// the node build instead of the lighter asset notification.
type Request struct {
	Node         bool `json:"node"`
	Browser      bool `json:"browser"`
	ExplicitNode bool `json:"explicitNode"`
}

// Merge ORs two requests. Flags never go back to false.
func Merge(a, b Request) Request {
	return Request{
		Node:         a.Node || b.Node,
		Browser:      a.Browser || b.Browser,
		ExplicitNode: a.ExplicitNode || b.ExplicitNode,
	}
}

// Merge returns r merged with other.
func (r Request) Merge(other Request) Request {
	return Merge(r, other)
}

// Empty reports whether the request rebuilds nothing.
func (r Request) Empty() bool {
	return !r.Node && !r.Browser
}

// Has reports whether target is requested.
func (r Request) Has(target Target) bool {
	switch target {
	case Node:
		return r.Node
	case Browser:
		return r.Browser
	default:
		return false
	}
}

// Only returns the request restricted to the enabled targets.
func (r Request) Only(node, browser bool) Request {
	return Request{
		Node:         r.Node && node,
		Browser:      r.Browser && browser,
		ExplicitNode: r.ExplicitNode && node,
	}
}

func (r Request) String() string {
	parts := make([]string, 0, 3) //nolint:mnd // three flags
	if r.Node {
		parts = append(parts, "node")
	}
	if r.Browser {
		parts = append(parts, "browser")
	}
	if r.ExplicitNode {
		parts = append(parts, "explicit")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}
