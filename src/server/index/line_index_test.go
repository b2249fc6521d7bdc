package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.lsp.dev/protocol"
)

func TestOffsetOfRoundTrip(t *testing.T) {
	text := "Entity \"Warehouse\"\nResource \"Cameras\" units\n"
	li := NewLineIndex(text)

	tests := []struct {
		name   string
		pos    protocol.Position
		offset int
	}{
		{"start of document", protocol.Position{Line: 0, Character: 0}, 0},
		{"mid first line", protocol.Position{Line: 0, Character: 8}, 8},
		{"start of second line", protocol.Position{Line: 1, Character: 0}, 19},
		{"end of second line", protocol.Position{Line: 1, Character: 24}, 43},
		{"start of trailing empty line", protocol.Position{Line: 2, Character: 0}, 44},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, ok := li.OffsetOf(tt.pos)
			require.True(t, ok)
			assert.Equal(t, tt.offset, offset)
			assert.Equal(t, tt.pos, li.PositionOf(offset))
		})
	}
}

func TestOffsetOfOutOfRange(t *testing.T) {
	li := NewLineIndex("Entity \"Warehouse\"\n")

	tests := []struct {
		name string
		pos  protocol.Position
	}{
		{"line past document end", protocol.Position{Line: 5, Character: 0}},
		{"column past line end", protocol.Position{Line: 0, Character: 40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := li.OffsetOf(tt.pos)
			assert.False(t, ok)
		})
	}
}

func TestPositionOfClamps(t *testing.T) {
	text := "Entity \"A\"\nEntity \"B\""
	li := NewLineIndex(text)

	assert.Equal(t, protocol.Position{Line: 0, Character: 0}, li.PositionOf(-3))
	assert.Equal(t, protocol.Position{Line: 1, Character: 10}, li.PositionOf(500))
}

func TestEmptyDocument(t *testing.T) {
	li := NewLineIndex("")

	offset, ok := li.OffsetOf(protocol.Position{Line: 0, Character: 0})
	require.True(t, ok)
	assert.Equal(t, 0, offset)
	assert.Equal(t, protocol.Position{Line: 0, Character: 0}, li.PositionOf(7))
}
