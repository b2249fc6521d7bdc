package hover

import (
	"fmt"
	"sort"
	"strings"
)

const truncationTrailer = "… truncated. Use hoverPlus for full detail."

// RenderResult is the markdown projection of a hover model plus the
// truncation markers the render itself introduced.
type RenderResult struct {
	Markdown          string
	TruncatedSections []string
}

// RenderMarkdown projects a hover model into markdown with a fixed
// section order. Output never exceeds the model's markdown budget plus
// the trailer margin, and truncation always happens on whole lines.
func RenderMarkdown(m *Model) RenderResult {
	r := &renderState{lines: make([]string, 0, 64)}

	r.lines = append(r.lines, "## Signature")
	r.pushCodeBlock("sea", m.Primary.SignatureOrShape, 40, 2)

	r.lines = append(r.lines, "## Summary")
	r.pushTextLines(m.Primary.Summary, 3, "summary")

	r.lines = append(r.lines, "## Facts")
	if len(m.Primary.Badges) > 0 {
		badges := sortDedup(append([]string{}, m.Primary.Badges...))
		r.lines = append(r.lines, fmt.Sprintf("- **badges**: %s", strings.Join(badges, ", ")))
	}
	facts := append([]Fact{}, m.Primary.Facts...)
	sort.SliceStable(facts, func(i, j int) bool {
		if facts[i].Key != facts[j].Key {
			return facts[i].Key < facts[j].Key
		}
		return facts[i].Value < facts[j].Value
	})
	const maxFacts = 20
	if len(facts) > maxFacts {
		r.truncated = append(r.truncated, "facts")
		facts = facts[:maxFacts]
	}
	for _, fact := range facts {
		r.lines = append(r.lines, fmt.Sprintf("- **%s**: %s", fact.Key, fact.Value))
	}
	if len(m.Primary.Badges) == 0 && len(m.Primary.Facts) == 0 {
		r.lines = append(r.lines, "- (no facts)")
	}

	if m.Symbol.ResolutionConfidence != ConfidenceExact || len(m.Limits.TruncatedSections) > 0 {
		r.lines = append(r.lines, "## Diagnostics")
		if m.Symbol.ResolutionConfidence != ConfidenceExact {
			r.lines = append(r.lines, fmt.Sprintf("- **resolution**: %s", m.Symbol.ResolutionConfidence))
		}
		if len(m.Limits.TruncatedSections) > 0 {
			t := sortDedup(append([]string{}, m.Limits.TruncatedSections...))
			r.lines = append(r.lines, fmt.Sprintf("- **limits**: %s", strings.Join(t, ", ")))
		}
	}

	r.lines = append(r.lines,
		"## Resolution",
		"<details><summary>Details</summary>",
		"",
		fmt.Sprintf("- **qualified**: %s", m.Symbol.QualifiedName),
		fmt.Sprintf("- **resolve_id**: %s", m.Symbol.ResolveID),
		"</details>",
	)

	if m.Symbol.Kind == "Flow" {
		r.lines = append(r.lines,
			"## Expansion",
			"<details><summary>Notes</summary>",
			"",
			"- Flow hovers are derived from the parsed document snapshot.",
			"</details>",
		)
	}

	if len(m.Related) > 0 {
		r.lines = append(r.lines,
			"## Usage",
			"<details><summary>Related symbols</summary>",
			"",
			fmt.Sprintf("- %d related item(s)", len(m.Related)),
			"</details>",
		)
		r.lines = append(r.lines, "## Related")
		for _, rel := range m.Related {
			r.lines = append(r.lines, fmt.Sprintf("- %s (%s)", strings.TrimSpace(rel.QualifiedName), strings.TrimSpace(rel.Kind)))
		}
	}

	markdown := strings.Join(r.lines, "\n")
	if len(markdown) > m.Limits.MaxMarkdownBytes {
		markdown = r.truncateWholeLines(m.Limits.MaxMarkdownBytes)
	}

	return RenderResult{
		Markdown:          markdown,
		TruncatedSections: r.truncated,
	}
}

type renderState struct {
	lines          []string
	truncated      []string
	codeBlocksUsed int
}

// pushCodeBlock emits one fenced code block, bounded by a per-block line
// cap and a whole-render block budget.
func (r *renderState) pushCodeBlock(language, content string, maxLines, maxBlocks int) {
	if r.codeBlocksUsed >= maxBlocks {
		r.truncated = append(r.truncated, "code_blocks")
		return
	}
	r.codeBlocksUsed++
	r.lines = append(r.lines, "```"+language)
	contentLines := strings.Split(content, "\n")
	emit := contentLines
	if len(contentLines) > maxLines {
		emit = contentLines[:maxLines]
	}
	r.lines = append(r.lines, emit...)
	if len(contentLines) > maxLines {
		r.truncated = append(r.truncated, "code_block_lines")
		r.lines = append(r.lines, truncationTrailer)
	}
	r.lines = append(r.lines, "```")
}

func (r *renderState) pushTextLines(content string, maxLines int, section string) {
	contentLines := strings.Split(content, "\n")
	emit := contentLines
	if len(contentLines) > maxLines {
		emit = contentLines[:maxLines]
	}
	r.lines = append(r.lines, emit...)
	if len(contentLines) > maxLines {
		r.truncated = append(r.truncated, section)
		r.lines = append(r.lines, truncationTrailer)
	}
}

// truncateWholeLines re-emits lines from the top until the next line
// would exceed the budget minus the trailer margin, then appends the
// trailer. Mid-line cuts would break the markdown, so lines are the
// truncation unit.
func (r *renderState) truncateWholeLines(maxBytes int) string {
	budget := maxBytes - markdownTrailerPad
	if budget < 0 {
		budget = 0
	}
	var kept strings.Builder
	byteCount := 0
	for _, line := range r.lines {
		lineBytes := len(line) + 1
		if byteCount+lineBytes > budget {
			r.truncated = append(r.truncated, "markdown")
			break
		}
		kept.WriteString(line)
		kept.WriteByte('\n')
		byteCount += lineBytes
	}
	kept.WriteString(truncationTrailer)
	return kept.String()
}
