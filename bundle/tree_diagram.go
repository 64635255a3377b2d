package bundle

import (
	"sort"
	"strings"
)

// diagramNode is a transient tree used only for rendering the structure
// diagram of the bundled files.
type diagramNode struct {
	children map[string]*diagramNode
	isFile   bool
}

func newDiagramNode() *diagramNode {
	return &diagramNode{children: make(map[string]*diagramNode)}
}

func (n *diagramNode) insert(relPath string) {
	cur := n
	segs := strings.Split(relPath, "/")
	for i, seg := range segs {
		next, ok := cur.children[seg]
		if !ok {
			next = newDiagramNode()
			cur.children[seg] = next
		}
		if i == len(segs)-1 {
			next.isFile = true
		}
		cur = next
	}
}

// TreeDiagram renders the given root-relative paths as an ASCII tree:
//
//	rootName/
//	├── a.py
//	└── sub/
//	    └── b.py
func TreeDiagram(rootName string, relPaths []string) string {
	root := newDiagramNode()
	for _, p := range relPaths {
		root.insert(p)
	}

	var sb strings.Builder
	sb.WriteString(rootName + "/\n")
	renderDiagram(root, "", &sb)
	return sb.String()
}

func renderDiagram(n *diagramNode, indent string, sb *strings.Builder) {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := n.children[names[i]], n.children[names[j]]
		// Files before directories, then alphabetical, matching the
		// picker's row order.
		if a.isFile != b.isFile {
			return a.isFile
		}
		return names[i] < names[j]
	})

	for i, name := range names {
		child := n.children[name]
		connector := "├── "
		childIndent := indent + "│   "
		if i == len(names)-1 {
			connector = "└── "
			childIndent = indent + "    "
		}
		label := name
		if !child.isFile {
			label += "/"
		}
		sb.WriteString(indent + connector + label + "\n")
		renderDiagram(child, childIndent, sb)
	}
}
