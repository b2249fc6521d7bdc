// Package index holds the per-document structural indexes: the line
// index for offset <-> position math and the semantic index of symbol
// occurrences.
package index

import (
	"sort"

	"go.lsp.dev/protocol"
)

// LineIndex maps between linear byte offsets and (line, column)
// positions for one document snapshot. Columns are raw byte units
// within the line, not UTF-16 code units; callers that must match the
// LSP UTF-16 convention own that conversion.
type LineIndex struct {
	lineStarts []int
	textLen    int
}

// NewLineIndex scans text once, recording each line's starting offset.
func NewLineIndex(text string) *LineIndex {
	lineStarts := make([]int, 1, 128)
	lineStarts[0] = 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lineStarts = append(lineStarts, i+1)
		}
	}
	return &LineIndex{lineStarts: lineStarts, textLen: len(text)}
}

// OffsetOf returns the byte offset of a position, or ok=false when the
// line is out of range or the column exceeds the line's length.
func (li *LineIndex) OffsetOf(pos protocol.Position) (int, bool) {
	line := int(pos.Line)
	character := int(pos.Character)
	if line < 0 || line >= len(li.lineStarts) {
		return 0, false
	}
	lineStart := li.lineStarts[line]
	nextLineStart := li.textLen
	if line+1 < len(li.lineStarts) {
		nextLineStart = li.lineStarts[line+1]
	}
	lineEnd := nextLineStart
	if lineEnd > li.textLen {
		lineEnd = li.textLen
	}
	offset := lineStart + character
	if offset < lineStart { // overflow
		return 0, false
	}
	if offset > lineEnd {
		return 0, false
	}
	return offset, true
}

// PositionOf clamps offset to the document length and locates the
// containing line by binary search over recorded line starts.
func (li *LineIndex) PositionOf(offset int) protocol.Position {
	clamped := offset
	if clamped > li.textLen {
		clamped = li.textLen
	}
	if clamped < 0 {
		clamped = 0
	}
	line := sort.SearchInts(li.lineStarts, clamped+1) - 1
	if line < 0 {
		line = 0
	}
	return protocol.Position{
		Line:      uint32(line),
		Character: uint32(clamped - li.lineStarts[line]),
	}
}
