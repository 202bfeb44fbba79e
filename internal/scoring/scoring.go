// Package scoring computes weighted scores from an answer sheet over a question tree.
package scoring

import "github.com/berth-dev/gauge/internal/questions"

// Rating scale bounds. An unanswered leaf counts as MinRating: the scale has
// no zero, so "not answered" means "not at all".
const (
	MinRating = 1
	MaxRating = 10
)

// ValidRating reports whether v lies on the rating scale.
func ValidRating(v int) bool {
	return v >= MinRating && v <= MaxRating
}

func clamp(v int) int {
	if v < MinRating {
		return MinRating
	}
	if v > MaxRating {
		return MaxRating
	}
	return v
}

// rating returns the effective rating for a leaf: the stored value clamped to
// the scale, or MinRating when absent.
func rating(sheet map[string]int, id string) int {
	v, ok := sheet[id]
	if !ok {
		return MinRating
	}
	return clamp(v)
}

func contribution(points float64, r int) float64 {
	return points * (float64(r) / MaxRating)
}

// CalculateScore folds every leaf's points scaled by its rating.
// Ids in sheet that are not leaves of tree are ignored.
func CalculateScore(tree *questions.Tree, sheet map[string]int) float64 {
	var total float64
	for _, leaf := range tree.Leaves() {
		total += contribution(leaf.Points, rating(sheet, leaf.ID))
	}
	return total
}

// MaxPossibleScore is the score with every leaf rated MaxRating, which is the
// sum of leaf points.
func MaxPossibleScore(tree *questions.Tree) float64 {
	var total float64
	for _, leaf := range tree.Leaves() {
		total += contribution(leaf.Points, MaxRating)
	}
	return total
}

// CategoryScores folds the score per top-level category.
func CategoryScores(tree *questions.Tree, sheet map[string]int) map[string]float64 {
	out := make(map[string]float64, len(tree.Categories()))
	for _, c := range tree.Categories() {
		out[c] = 0
	}
	for _, leaf := range tree.Leaves() {
		out[tree.Category(leaf.ID)] += contribution(leaf.Points, rating(sheet, leaf.ID))
	}
	return out
}

// CategoryMax returns the maximum score reachable per top-level category.
func CategoryMax(tree *questions.Tree) map[string]float64 {
	out := make(map[string]float64, len(tree.Categories()))
	for _, leaf := range tree.Leaves() {
		out[tree.Category(leaf.ID)] += leaf.Points
	}
	return out
}

// Complete returns a sheet holding a rating for every leaf: the answered
// value when valid, MinRating otherwise. Unknown ids are dropped.
func Complete(tree *questions.Tree, sheet map[string]int) map[string]int {
	out := make(map[string]int, tree.Len())
	for _, leaf := range tree.Leaves() {
		v, ok := sheet[leaf.ID]
		if !ok || !ValidRating(v) {
			v = MinRating
		}
		out[leaf.ID] = v
	}
	return out
}

// Answered counts leaves of tree holding a valid rating in sheet.
func Answered(tree *questions.Tree, sheet map[string]int) int {
	n := 0
	for _, leaf := range tree.Leaves() {
		if v, ok := sheet[leaf.ID]; ok && ValidRating(v) {
			n++
		}
	}
	return n
}

// PercentComplete returns the share of leaves answered, 0–100.
func PercentComplete(tree *questions.Tree, sheet map[string]int) float64 {
	if tree.Len() == 0 {
		return 0
	}
	return float64(Answered(tree, sheet)) / float64(tree.Len()) * 100
}
