package server

import (
	"sort"

	"go.lsp.dev/protocol"

	"github.com/GodSpeedAI/domainforge-lsp/src/server/index"
)

// GotoDefinition resolves the symbol under position to its declaration.
// Hovering a declaration returns the declaration's own range. Returns
// nil when the position maps to no symbol or the symbol has no
// definition in the document.
func GotoDefinition(uri protocol.DocumentURI, li *index.LineIndex, position protocol.Position, idx *index.SemanticIndex) *protocol.Location {
	offset, ok := li.OffsetOf(position)
	if !ok {
		return nil
	}
	occ := idx.SymbolAtOffset(offset)
	if occ == nil {
		return nil
	}

	defRange := occ.Range
	if !occ.IsDefinition {
		defRange, ok = idx.DefinitionRange(occ.Kind, occ.Name)
		if !ok {
			return nil
		}
	}
	loc := index.Location(uri, li, defRange)
	return &loc
}

// FindReferences returns every reference to the symbol under position,
// optionally including the declaration. The result is sorted by URI then
// range and deduplicated; an unresolvable position yields an empty list.
func FindReferences(uri protocol.DocumentURI, li *index.LineIndex, position protocol.Position, idx *index.SemanticIndex, includeDeclaration bool) []protocol.Location {
	offset, ok := li.OffsetOf(position)
	if !ok {
		return nil
	}
	occ := idx.SymbolAtOffset(offset)
	if occ == nil {
		return nil
	}

	var locations []protocol.Location
	for _, r := range idx.ReferenceRanges(occ.Kind, occ.Name) {
		locations = append(locations, index.Location(uri, li, r))
	}
	if includeDeclaration {
		if defRange, found := idx.DefinitionRange(occ.Kind, occ.Name); found {
			locations = append(locations, index.Location(uri, li, defRange))
		}
	}

	sort.SliceStable(locations, func(i, j int) bool {
		if locations[i].URI != locations[j].URI {
			return locations[i].URI < locations[j].URI
		}
		return rangeLess(locations[i].Range, locations[j].Range)
	})
	return dedupLocations(locations)
}

func rangeLess(a, b protocol.Range) bool {
	if a.Start.Line != b.Start.Line {
		return a.Start.Line < b.Start.Line
	}
	if a.Start.Character != b.Start.Character {
		return a.Start.Character < b.Start.Character
	}
	if a.End.Line != b.End.Line {
		return a.End.Line < b.End.Line
	}
	return a.End.Character < b.End.Character
}

func dedupLocations(locations []protocol.Location) []protocol.Location {
	if len(locations) == 0 {
		return locations
	}
	out := locations[:1]
	for _, loc := range locations[1:] {
		last := out[len(out)-1]
		if loc.URI == last.URI && loc.Range == last.Range {
			continue
		}
		out = append(out, loc)
	}
	return out
}
