package router

import (
	"maps"
	"slices"
	"strings"
)

// cmdNode is one token of a command route. "quotes add" is the path
// root -> quotes -> add; cmd is set on nodes that are runnable routes.
type cmdNode struct {
	name     string
	cmd      *Command
	children map[string]*cmdNode
}

func newRoot() *cmdNode { return newNode("") }

func newNode(name string) *cmdNode {
	return &cmdNode{name: name, children: map[string]*cmdNode{}}
}

// splitRoute lower-cases and tokenizes a route.
func splitRoute(route string) []string {
	return strings.Fields(strings.ToLower(route))
}

// add installs c at route, creating intermediate nodes, and returns the leaf.
func (n *cmdNode) add(route []string, c Command) *cmdNode {
	leaf := n
	for _, tok := range route {
		next, ok := leaf.children[tok]
		if !ok {
			next = newNode(tok)
			leaf.children[tok] = next
		}
		leaf = next
	}
	leaf.cmd = &c
	return leaf
}

func (n *cmdNode) child(name string) (*cmdNode, bool) {
	c, ok := n.children[name]
	return c, ok
}

func (n *cmdNode) childNames() []string {
	return slices.Sorted(maps.Keys(n.children))
}
