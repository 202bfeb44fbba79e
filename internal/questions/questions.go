// Package questions holds the immutable criteria hierarchy rated by the user.
package questions

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultTreeYAML []byte

// ErrInvalidTree is returned when a question hierarchy violates its structural rules.
var ErrInvalidTree = errors.New("invalid question tree")

// Question is one criterion. A question without children is a leaf and is
// rated directly; a question with children distributes its weight to them.
type Question struct {
	ID       string      `yaml:"id"`
	Title    string      `yaml:"title"`
	Points   float64     `yaml:"points"`
	Children []*Question `yaml:"children,omitempty"`
}

// IsLeaf reports whether the question is rated directly.
func (q *Question) IsLeaf() bool {
	return len(q.Children) == 0
}

type document struct {
	Questions []*Question `yaml:"questions"`
}

// Tree is a validated, read-only question hierarchy.
type Tree struct {
	roots    []*Question
	leaves   []*Question
	byID     map[string]*Question
	category map[string]string // leaf id -> top-level question id
}

// New validates roots and builds a Tree from them.
// Every id must be non-empty and unique, and every node must carry positive points.
func New(roots []*Question) (*Tree, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: no questions", ErrInvalidTree)
	}

	t := &Tree{
		roots:    roots,
		byID:     make(map[string]*Question),
		category: make(map[string]string),
	}

	for _, root := range roots {
		if err := t.index(root, root.ID); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func (t *Tree) index(q *Question, category string) error {
	if q == nil {
		return fmt.Errorf("%w: nil question under %q", ErrInvalidTree, category)
	}
	if q.ID == "" {
		return fmt.Errorf("%w: question with empty id under %q", ErrInvalidTree, category)
	}
	if _, dup := t.byID[q.ID]; dup {
		return fmt.Errorf("%w: duplicate id %q", ErrInvalidTree, q.ID)
	}
	if !(q.Points > 0) || math.IsInf(q.Points, 0) {
		return fmt.Errorf("%w: question %q has non-positive points %v", ErrInvalidTree, q.ID, q.Points)
	}

	t.byID[q.ID] = q
	if q.IsLeaf() {
		t.leaves = append(t.leaves, q)
		t.category[q.ID] = category
		return nil
	}

	for _, child := range q.Children {
		if err := t.index(child, category); err != nil {
			return err
		}
	}
	return nil
}

// Parse decodes a YAML question document and validates it.
func Parse(data []byte) (*Tree, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing questions: %w", err)
	}
	return New(doc.Questions)
}

var (
	defaultOnce sync.Once
	defaultTree *Tree
)

// Default returns the questionnaire shipped with the binary.
// It panics if the embedded document is invalid, which is a build defect.
func Default() *Tree {
	defaultOnce.Do(func() {
		t, err := Parse(defaultTreeYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded questions.yaml: %v", err))
		}
		defaultTree = t
	})
	return defaultTree
}

// Roots returns the top-level questions (the categories).
func (t *Tree) Roots() []*Question {
	out := make([]*Question, len(t.roots))
	copy(out, t.roots)
	return out
}

// Leaves returns every leaf in depth-first order. This order is the
// navigation order of a session.
func (t *Tree) Leaves() []*Question {
	out := make([]*Question, len(t.leaves))
	copy(out, t.leaves)
	return out
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return len(t.leaves)
}

// Leaf returns the leaf with the given id.
func (t *Tree) Leaf(id string) (*Question, bool) {
	q, ok := t.byID[id]
	if !ok || !q.IsLeaf() {
		return nil, false
	}
	return q, true
}

// IsLeaf reports whether id names a leaf of this tree.
func (t *Tree) IsLeaf(id string) bool {
	_, ok := t.Leaf(id)
	return ok
}

// Category returns the top-level question id a leaf belongs to, or "" for
// ids that are not leaves.
func (t *Tree) Category(leafID string) string {
	return t.category[leafID]
}

// Categories returns the top-level question ids in declaration order.
func (t *Tree) Categories() []string {
	ids := make([]string, 0, len(t.roots))
	for _, r := range t.roots {
		ids = append(ids, r.ID)
	}
	return ids
}

// Lookup returns any node (leaf or not) by id.
func (t *Tree) Lookup(id string) (*Question, bool) {
	q, ok := t.byID[id]
	return q, ok
}
