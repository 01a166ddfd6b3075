package anchor

import (
	"strings"
	"unicode/utf8"
)

// Range is a pair of character offsets.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// RecoverOffsets locates the anchored text inside ctx. When the recorded
// offsets lie inside ctx and still index the exact text they are returned
// unchanged. Otherwise the text is searched for literally: a single
// occurrence gives its bounds, while no occurrence or several occurrences
// yield ok == false. A highlight is never placed at a guessed position.
func RecoverOffsets(a Anchor, ctx string) (Range, bool) {
	if a.Exact == "" || ctx == "" {
		return Range{}, false
	}

	runes := []rune(ctx)
	if inBounds(a, len(runes)) && string(runes[a.From:a.To]) == a.Exact {
		return Range{From: a.From, To: a.To}, true
	}

	return findUnique(ctx, a.Exact)
}

// PositionSource is a text source whose plain text can be mapped back to
// positions, such as a document tree.
type PositionSource interface {
	TextSource

	// PlainText returns all text with no block separators.
	PlainText() string

	// TextPositions returns the position of every character of PlainText.
	TextPositions() []int
}

// Locate is RecoverOffsets for anchors built against a document: the
// recorded positions are checked against src, and a literal match found in
// its plain text is mapped back to positions.
func Locate(a Anchor, src PositionSource) (Range, bool) {
	if a.Exact == "" || src == nil {
		return Range{}, false
	}

	if inBounds(a, src.NodeSize()-boundarySize) && src.TextBetween(a.From, a.To) == a.Exact {
		return Range{From: a.From, To: a.To}, true
	}

	r, ok := findUnique(src.PlainText(), a.Exact)
	if !ok {
		return Range{}, false
	}

	positions := src.TextPositions()
	if r.To > len(positions) {
		return Range{}, false
	}

	return Range{From: positions[r.From], To: positions[r.To-1] + 1}, true
}

// Context splits ctx around the recovered position of the anchor. When the
// anchor cannot be placed, ok is false and before holds ctx unsplit.
func Context(a Anchor, ctx string) (before, exact, after string, ok bool) {
	r, ok := RecoverOffsets(a, ctx)
	if !ok {
		return ctx, "", "", false
	}

	runes := []rune(ctx)

	return string(runes[:r.From]), a.Exact, string(runes[r.To:]), true
}

func inBounds(a Anchor, size int) bool {
	return a.From >= 0 && a.From <= a.To && a.To <= size
}

// findUnique returns the character bounds of exact in ctx if it occurs
// exactly once.
func findUnique(ctx, exact string) (Range, bool) {
	if exact == "" || strings.Count(ctx, exact) != 1 {
		return Range{}, false
	}

	start := utf8.RuneCountInString(ctx[:strings.Index(ctx, exact)])

	return Range{From: start, To: start + utf8.RuneCountInString(exact)}, true
}
