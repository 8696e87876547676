// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DumpNode is one entry of a graph snapshot. Paths are relative to the
// project root and slash-separated.
type DumpNode struct {
	Path         string   `json:"path"`
	Version      int      `json:"version"`
	Boundary     bool     `json:"boundary"`
	Reloadable   bool     `json:"reloadable"`
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`
}

// Dump returns a snapshot of every node sorted by path. Reloadability is
// recomputed for each node.
func (g *Graph) Dump(projectRoot string) []DumpNode {
	paths := sortedCopy(g.order.keys)
	out := make([]DumpNode, 0, len(paths))
	for _, p := range paths {
		n := g.nodes[p]
		out = append(out, DumpNode{
			Path:         relative(projectRoot, p),
			Version:      n.version,
			Boundary:     n.boundary,
			Reloadable:   g.IsReloadable(p).Reloadable,
			Dependencies: relativeAll(projectRoot, n.dependencies.keys),
			Dependents:   relativeAll(projectRoot, n.dependents.keys),
		})
	}
	return out
}

// DOT renders a snapshot as Graphviz DOT text. Edges point from importer to
// imported module; boundaries are drawn with a double border and
// non-reloadable nodes are filled.
func DOT(nodes []DumpNode) string {
	var b strings.Builder
	b.WriteString("digraph hotswap {\n")
	b.WriteString("  rankdir=LR;\n")

	aliases := aliasNodes(nodes)
	for i, n := range nodes {
		attrs := fmt.Sprintf("label=\"%s\\nv%d\"", escapeQuotes(n.Path), n.Version)
		if n.Boundary {
			attrs += ", peripheries=2"
		}
		if !n.Reloadable {
			attrs += ", style=filled, fillcolor=\"#f4cccc\""
		}
		fmt.Fprintf(&b, "  n%d [%s];\n", i, attrs)
	}
	for i, n := range nodes {
		for _, dep := range n.Dependencies {
			if to, ok := aliases[dep]; ok {
				fmt.Fprintf(&b, "  n%d -> %s;\n", i, to)
			}
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// Mermaid renders a snapshot as a Mermaid flowchart.
func Mermaid(nodes []DumpNode) string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	aliases := aliasNodes(nodes)
	for i, n := range nodes {
		label := fmt.Sprintf("%s<br/>v%d", escapeQuotes(n.Path), n.Version)
		if n.Boundary {
			fmt.Fprintf(&b, "    n%d[[\"%s\"]]\n", i, label)
		} else {
			fmt.Fprintf(&b, "    n%d[\"%s\"]\n", i, label)
		}
	}
	for i, n := range nodes {
		for _, dep := range n.Dependencies {
			if to, ok := aliases[dep]; ok {
				fmt.Fprintf(&b, "    n%d --> %s\n", i, to)
			}
		}
	}
	return b.String()
}

func aliasNodes(nodes []DumpNode) map[string]string {
	aliases := make(map[string]string, len(nodes))
	for i, n := range nodes {
		aliases[n.Path] = fmt.Sprintf("n%d", i)
	}
	return aliases
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}

func relative(root, p string) string {
	if root == "" {
		return p
	}
	rel, err := filepath.Rel(filepath.FromSlash(root), filepath.FromSlash(p))
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

func relativeAll(root string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, relative(root, p))
	}
	return out
}
