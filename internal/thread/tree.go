// Package thread rebuilds the comment forest of a confession from its flat,
// append-ordered comment list and bounds what gets rendered.
package thread

import (
	"fmt"
	"sort"

	"confessional/internal/models"
)

// Bounds caps the rendered output. A value of zero or less means unbounded.
type Bounds struct {
	MaxTopLevel int
	// MaxReplies counts every rendered descendant of one top-level comment.
	MaxReplies int
}

// DefaultBounds matches the transport message limits.
var DefaultBounds = Bounds{MaxTopLevel: 5, MaxReplies: 3}

// Node is a rendered comment with its rendered replies. HiddenReplies counts
// the descendants cut by the reply budget below this node.
type Node struct {
	Comment       models.Comment
	Depth         int
	Replies       []Node
	HiddenReplies int
}

// Forest is the rendered thread. HiddenThreads counts top-level comments past
// the cap, not their replies.
type Forest struct {
	Threads       []Node
	HiddenThreads int
	Total         int
}

type tree struct {
	byIndex  map[int]models.Comment
	children map[int][]int
}

// Build groups comments by parent in one pass. A comment whose parent is
// missing or not strictly earlier is rendered as top-level.
func Build(comments []models.Comment, bounds Bounds) Forest {
	ordered := make([]models.Comment, len(comments))
	copy(ordered, comments)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	t := tree{
		byIndex:  make(map[int]models.Comment, len(ordered)),
		children: make(map[int][]int),
	}
	for _, c := range ordered {
		t.byIndex[c.Index] = c
		parent := c.ParentIndex
		if _, ok := t.byIndex[parent]; !ok || parent >= c.Index {
			parent = models.NoParent
		}
		t.children[parent] = append(t.children[parent], c.Index)
	}

	forest := Forest{Total: len(ordered)}
	roots := t.children[models.NoParent]
	for i, idx := range roots {
		if bounds.MaxTopLevel > 0 && i >= bounds.MaxTopLevel {
			forest.HiddenThreads = len(roots) - i
			break
		}
		budget := bounds.MaxReplies
		if budget <= 0 {
			budget = -1
		}
		forest.Threads = append(forest.Threads, t.render(idx, 0, &budget))
	}
	return forest
}

// render walks depth-first. budget is -1 when unbounded.
func (t tree) render(idx, depth int, budget *int) Node {
	node := Node{Comment: t.byIndex[idx], Depth: depth}
	for _, child := range t.children[idx] {
		if *budget == 0 {
			node.HiddenReplies += 1 + t.descendants(child)
			continue
		}
		if *budget > 0 {
			*budget--
		}
		node.Replies = append(node.Replies, t.render(child, depth+1, budget))
	}
	return node
}

func (t tree) descendants(idx int) int {
	n := 0
	for _, child := range t.children[idx] {
		n += 1 + t.descendants(child)
	}
	return n
}

// Row is one display line. More rows carry no comment.
type Row struct {
	Comment *models.Comment
	Depth   int
	More    int
}

// IsMore reports whether the row is a "+N more" marker.
func (r Row) IsMore() bool { return r.Comment == nil }

// MoreText renders the marker text.
func (r Row) MoreText() string { return fmt.Sprintf("+%d more", r.More) }

// Flatten lists the forest depth-first, with a marker after every node that
// lost replies and a final marker for hidden threads.
func (f Forest) Flatten() []Row {
	var rows []Row
	var walk func(n *Node)
	walk = func(n *Node) {
		rows = append(rows, Row{Comment: &n.Comment, Depth: n.Depth})
		for i := range n.Replies {
			walk(&n.Replies[i])
		}
		if n.HiddenReplies > 0 {
			rows = append(rows, Row{Depth: n.Depth + 1, More: n.HiddenReplies})
		}
	}
	for i := range f.Threads {
		walk(&f.Threads[i])
	}
	if f.HiddenThreads > 0 {
		rows = append(rows, Row{Depth: 0, More: f.HiddenThreads})
	}
	return rows
}
