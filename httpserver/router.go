package httpserver

import "strings"

// Handler produces a Response for a Request.
type Handler func(*Request) *Response

// Router is a path-prefix route table organized as a tree keyed by
// '/'-separated segments, grounded on original_source's RouteTree:
// a segment of "*" force-matches everything below it, a segment of
// "" (registered as the empty path component, e.g. "/api/") is the
// wildcard candidate returned if nothing deeper matches exactly, and
// an exact segment match descends one level further.
type Router struct {
	root    *routeNode
	fallback Handler
}

type routeNode struct {
	children map[string]*routeNode
	handler  Handler
}

func newNode() *routeNode {
	return &routeNode{children: make(map[string]*routeNode)}
}

// NewRouter constructs an empty Router. fallback answers any request
// no registered route matches, mirroring the original's default
// handler serving a static placeholder page.
func NewRouter(fallback Handler) *Router {
	return &Router{root: newNode(), fallback: fallback}
}

// Handle registers handler for the exact path, e.g. "/status". A
// trailing "/*" segment force-matches every path beneath the prefix;
// a trailing "/" segment is a soft wildcard used only when no deeper
// exact match exists.
func (r *Router) Handle(path string, handler Handler) {
	segs := segments(path)
	node := r.root
	for _, s := range segs {
		next, ok := node.children[s]
		if !ok {
			next = newNode()
			node.children[s] = next
		}
		node = next
	}
	node.handler = handler
}

// Find resolves path to the most specific handler registered for it,
// falling back to the router's default handler if nothing matches.
func (r *Router) Find(path string) Handler {
	node := r.root
	candidate := r.fallback

	segs := segments(path)
	if len(segs) == 0 {
		return candidate
	}
	for _, s := range segs {
		if empty, ok := node.children[""]; ok && empty.handler != nil {
			candidate = empty.handler
		}
		if star, ok := node.children["*"]; ok {
			return star.handler
		}
		next, ok := node.children[s]
		if !ok {
			return candidate
		}
		node = next
	}
	if node.handler != nil {
		return node.handler
	}
	return candidate
}

func segments(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
