package server

import (
	"fmt"
	"sort"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/GodSpeedAI/domainforge-lsp/src/graph"
	"github.com/GodSpeedAI/domainforge-lsp/src/server/index"
)

// completionContext narrows suggestions to what the grammar admits at
// the cursor.
type completionContext int

const (
	completionAny completionContext = iota
	completionEntityName
	completionResourceName
	completionInstanceRef
	completionImportPrefix
)

// Completion suggests symbols for the position: entity names inside
// of/from/to quotes, resource names inside a flow's first quote,
// @instance references after a sigil, and import prefixes. Outside a
// recognized context every category is offered. Returns nil when the
// position is out of range.
func Completion(source string, li *index.LineIndex, position protocol.Position, g *graph.Graph, idx *index.SemanticIndex) []protocol.CompletionItem {
	offset, ok := li.OffsetOf(position)
	if !ok {
		return nil
	}
	ctx := detectCompletionContext(source, li, offset)

	var items []protocol.CompletionItem
	if g != nil {
		if ctx == completionAny || ctx == completionEntityName {
			for _, e := range g.AllEntities() {
				items = append(items, protocol.CompletionItem{
					Label:  e.Name(),
					Kind:   protocol.CompletionItemKindClass,
					Detail: "Entity",
				})
			}
		}
		if ctx == completionAny || ctx == completionResourceName {
			for _, r := range g.AllResources() {
				items = append(items, protocol.CompletionItem{
					Label:  r.Name(),
					Kind:   protocol.CompletionItemKindConstant,
					Detail: fmt.Sprintf("Resource (%s)", r.Unit()),
				})
			}
		}
		if ctx == completionAny || ctx == completionInstanceRef {
			for _, inst := range g.AllInstances() {
				label := "@" + inst.Name()
				items = append(items, protocol.CompletionItem{
					Label:      label,
					Kind:       protocol.CompletionItemKindVariable,
					Detail:     "Instance of " + inst.EntityType(),
					InsertText: label,
				})
			}
		}
	}
	if idx != nil && (ctx == completionAny || ctx == completionImportPrefix) {
		for _, prefix := range idx.ImportPrefixes {
			items = append(items, protocol.CompletionItem{
				Label:  prefix,
				Kind:   protocol.CompletionItemKindModule,
				Detail: "Import prefix",
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := completionKindRank(items[i].Kind), completionKindRank(items[j].Kind)
		if ri != rj {
			return ri < rj
		}
		return items[i].Label < items[j].Label
	})
	return dedupCompletionItems(items)
}

// completionKindRank orders categories: entities, resources,
// instances, import prefixes.
func completionKindRank(kind protocol.CompletionItemKind) int {
	switch kind {
	case protocol.CompletionItemKindClass:
		return 0
	case protocol.CompletionItemKindConstant:
		return 1
	case protocol.CompletionItemKindVariable:
		return 2
	case protocol.CompletionItemKindModule:
		return 3
	default:
		return 9
	}
}

func dedupCompletionItems(items []protocol.CompletionItem) []protocol.CompletionItem {
	if len(items) == 0 {
		return items
	}
	out := items[:1]
	for _, item := range items[1:] {
		last := out[len(out)-1]
		if item.Label == last.Label && item.Kind == last.Kind {
			continue
		}
		out = append(out, item)
	}
	return out
}

// detectCompletionContext classifies the cursor by the line text before
// it. Keywords match case-insensitively, like the lexer.
func detectCompletionContext(source string, li *index.LineIndex, offset int) completionContext {
	if offset > len(source) {
		offset = len(source)
	}
	pos := li.PositionOf(offset)
	lineStart, ok := li.OffsetOf(protocol.Position{Line: pos.Line, Character: 0})
	if !ok || lineStart > offset {
		return completionAny
	}
	prefix := strings.ToLower(source[lineStart:offset])

	if strings.HasSuffix(prefix, "@") {
		return completionInstanceRef
	}
	for _, marker := range []string{` of "`, ` from "`, ` to "`} {
		if strings.HasSuffix(prefix, marker) {
			return completionEntityName
		}
	}
	if strings.HasSuffix(prefix, `flow "`) {
		return completionResourceName
	}
	if strings.HasSuffix(prefix, "import * as ") || strings.HasSuffix(prefix, "import {") {
		return completionImportPrefix
	}
	return completionAny
}
