package model

import "fmt"

// TagTree is an adjacency-indexed view over a flat list of tags, built
// once per load. Path lookups cost O(depth) and descendant collection
// costs O(subtree size) instead of repeated linear scans.
type TagTree struct {
	byID     map[string]Tag
	parent   map[string]string
	children map[string][]string
	roots    []string
}

// NewTagTree indexes the given tags. It fails if a parent reference
// points at a missing tag, at a tag owned by a different user, or if the
// parent chain contains a cycle.
func NewTagTree(tags []Tag) (*TagTree, error) {
	t := &TagTree{
		byID:     make(map[string]Tag, len(tags)),
		parent:   make(map[string]string),
		children: make(map[string][]string),
	}

	for _, tag := range tags {
		if _, ok := t.byID[tag.ID]; ok {
			return nil, fmt.Errorf("duplicate tag id %s", tag.ID)
		}
		t.byID[tag.ID] = tag
	}

	for _, tag := range tags {
		if tag.ParentID == nil {
			t.roots = append(t.roots, tag.ID)
			continue
		}
		parent, ok := t.byID[*tag.ParentID]
		if !ok {
			return nil, fmt.Errorf("tag %s references missing parent %s", tag.ID, *tag.ParentID)
		}
		if parent.UserID != tag.UserID {
			return nil, fmt.Errorf("tag %s references parent %s owned by another user", tag.ID, parent.ID)
		}
		t.parent[tag.ID] = parent.ID
		t.children[parent.ID] = append(t.children[parent.ID], tag.ID)
	}

	for _, tag := range tags {
		if err := t.checkAcyclic(tag.ID); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// checkAcyclic walks the parent chain from id, failing if it revisits id.
func (t *TagTree) checkAcyclic(id string) error {
	seen := map[string]bool{id: true}
	cur := id
	for {
		parent, ok := t.parent[cur]
		if !ok {
			return nil
		}
		if seen[parent] {
			return fmt.Errorf("tag tree cycle through %s", parent)
		}
		seen[parent] = true
		cur = parent
	}
}

// Get returns the tag with the given id.
func (t *TagTree) Get(id string) (Tag, bool) {
	tag, ok := t.byID[id]
	return tag, ok
}

// Roots returns the ids of all tags without a parent.
func (t *TagTree) Roots() []string {
	out := make([]string, len(t.roots))
	copy(out, t.roots)
	return out
}

// Children returns the ids of the direct children of id.
func (t *TagTree) Children(id string) []string {
	kids := t.children[id]
	out := make([]string, len(kids))
	copy(out, kids)
	return out
}

// Path returns the chain of tags from the root down to id, inclusive.
func (t *TagTree) Path(id string) ([]Tag, bool) {
	if _, ok := t.byID[id]; !ok {
		return nil, false
	}
	var rev []Tag
	cur := id
	for {
		rev = append(rev, t.byID[cur])
		parent, ok := t.parent[cur]
		if !ok {
			break
		}
		cur = parent
	}
	out := make([]Tag, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		out = append(out, rev[i])
	}
	return out, true
}

// Descendants returns the ids of every tag below id, depth-first.
func (t *TagTree) Descendants(id string) []string {
	var out []string
	stack := append([]string(nil), t.children[id]...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, cur)
		stack = append(stack, t.children[cur]...)
	}
	return out
}
