package hover

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/GodSpeedAI/domainforge-lsp/src/graph"
	"github.com/GodSpeedAI/domainforge-lsp/src/server/index"
)

// BuildInput carries one hover request against one document snapshot.
// Graph may be nil when the source does not produce a semantic graph.
type BuildInput struct {
	URI             protocol.DocumentURI
	DocumentVersion int32
	Position        protocol.Position
	ConfigHash      string
	Detail          DetailLevel
	LineIndex       *index.LineIndex
	Index           *index.SemanticIndex
	Graph           *graph.Graph
}

// Build resolves the symbol under the position and assembles the hover
// model. Returns nil when the position maps to no symbol. The returned
// model always satisfies the JSON size limit.
func Build(in BuildInput) *Model {
	offset, ok := in.LineIndex.OffsetOf(in.Position)
	if !ok {
		return nil
	}
	occ := in.Index.SymbolAtOffset(offset)
	if occ == nil {
		return nil
	}

	resolved := resolveOccurrence(occ, in.Index, in.Graph, in.Detail)
	id := hoverID(in.URI, in.DocumentVersion, in.Position, in.ConfigHash, resolved.resolveID, in.Detail)

	related := resolved.related
	sort.SliceStable(related, func(i, j int) bool {
		if related[i].RelevanceScore != related[j].RelevanceScore {
			return related[i].RelevanceScore > related[j].RelevanceScore
		}
		if related[i].QualifiedName != related[j].QualifiedName {
			return related[i].QualifiedName < related[j].QualifiedName
		}
		return related[i].Kind < related[j].Kind
	})
	if len(related) > maxRelatedSymbols {
		related = related[:maxRelatedSymbols]
	}

	model := &Model{
		SchemaVersion: SchemaVersion,
		ID:            id,
		Symbol: Symbol{
			Name:                 resolved.name,
			Kind:                 resolved.kindLabel,
			QualifiedName:        resolved.qualifiedName,
			URI:                  string(in.URI),
			Range:                hoverRange(in.LineIndex, occ.Range),
			ResolveID:            resolved.resolveID,
			ResolutionConfidence: resolved.confidence,
		},
		Context: Context{
			DocumentVersion: in.DocumentVersion,
			Position:        PositionFrom(in.Position),
			ScopeSummary: ScopeSummary{
				Module:            nil,
				EnclosingRule:     nil,
				NamespacesInScope: append([]string{}, in.Index.ImportPrefixes...),
			},
			ConfigHash: in.ConfigHash,
		},
		Primary: Primary{
			Header: Header{
				DisplayName:   resolved.name,
				KindLabel:     resolved.kindLabel,
				QualifiedPath: resolved.qualifiedName,
			},
			SignatureOrShape: resolved.signature,
			Summary:          resolved.summary,
			Badges:           resolved.badges,
			Facts:            resolved.facts,
		},
		Related: related,
		Limits: Limits{
			MaxMarkdownBytes:  MaxMarkdownBytes,
			MaxJSONBytes:      MaxJSONBytes,
			TruncatedSections: resolved.truncatedSections,
		},
	}
	model.Limits.TruncatedSections = sortDedup(model.Limits.TruncatedSections)
	enforceJSONLimit(model)
	return model
}

type resolvedSymbol struct {
	name              string
	kindLabel         string
	qualifiedName     string
	resolveID         string
	confidence        string
	signature         string
	summary           string
	badges            []string
	facts             []Fact
	related           []Related
	truncatedSections []string
}

func resolveOccurrence(occ *index.Occurrence, idx *index.SemanticIndex, g *graph.Graph, detail DetailLevel) resolvedSymbol {
	switch occ.Kind {
	case index.SymbolEntity:
		return resolveEntity(occ.Name, g, detail)
	case index.SymbolResource:
		return resolveResource(occ.Name, g, detail)
	case index.SymbolFlow:
		return resolveFlow(occ.Range, idx, g)
	case index.SymbolRole:
		return resolveNamed(occ.Name, "Role", "DomainForge role", g != nil, roleRecords(g))
	case index.SymbolRelation:
		return resolveNamed(occ.Name, "Relation", "DomainForge relation", g != nil, relationRecords(g))
	case index.SymbolPattern:
		return resolvePattern(occ.Name, g)
	case index.SymbolInstance:
		return resolveInstance(occ.Name, g, detail)
	case index.SymbolPolicy:
		return resolvePolicy(occ.Name, g)
	default:
		return resolvedSymbol{
			name:          occ.Name,
			kindLabel:     occ.Kind.Label(),
			qualifiedName: occ.Name,
			resolveID:     unresolvedID,
			confidence:    ConfidenceErrorFallback,
			badges:        []string{"unresolved"},
			facts:         []Fact{},
			related:       []Related{},
		}
	}
}

const (
	unresolvedID = "<unresolved>"
	noGraphID    = "<no-graph>"
)

// namedRecord is the shape shared by graph records looked up by bare name.
type namedRecord interface {
	ID() string
	Namespace() string
	Name() string
}

// matchByName filters records whose name equals the occurrence name and
// orders candidates by (namespace, id) so ambiguity resolves the same
// way on every build.
func matchByName[T namedRecord](all []T, name string) []T {
	var matches []T
	for _, rec := range all {
		if rec.Name() == name {
			matches = append(matches, rec)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Namespace() != matches[j].Namespace() {
			return matches[i].Namespace() < matches[j].Namespace()
		}
		return matches[i].ID() < matches[j].ID()
	})
	return matches
}

func qualified(ns, name string) string {
	return fmt.Sprintf("%s::%s", ns, name)
}

func resolveEntity(name string, g *graph.Graph, detail DetailLevel) resolvedSymbol {
	rs := resolvedSymbol{
		name:          name,
		kindLabel:     "Entity",
		qualifiedName: name,
		signature:     fmt.Sprintf("Entity %q", name),
		summary:       "DomainForge entity",
		badges:        []string{},
		facts:         []Fact{},
		related:       []Related{},
	}

	if g == nil {
		rs.resolveID = noGraphID
		rs.confidence = ConfidenceNoGraph
		rs.badges = append(rs.badges, "unresolved")
		return rs
	}

	matches := matchByName(g.AllEntities(), name)
	switch len(matches) {
	case 0:
		rs.resolveID = unresolvedID
		rs.confidence = ConfidenceErrorFallback
		rs.badges = append(rs.badges, "unresolved")
	case 1:
		entity := matches[0]
		rs.resolveID = entity.ID()
		rs.qualifiedName = qualified(entity.Namespace(), entity.Name())
		rs.confidence = ConfidenceExact
		if v := entity.Version(); v != "" {
			rs.facts = append(rs.facts, Fact{"version", v})
		}
		if r := entity.Replaces(); r != "" {
			rs.facts = append(rs.facts, Fact{"replaces", r})
		}
		if changes := entity.Changes(); len(changes) > 0 {
			rs.facts = append(rs.facts, Fact{"changes", strings.Join(changes, "; ")})
		}
		rs.facts = append(rs.facts, Fact{"namespace", entity.Namespace()})
		rs.facts = append(rs.facts, Fact{"flows_from", fmt.Sprintf("%d", len(g.FlowsFrom(entity.ID())))})
		rs.facts = append(rs.facts, Fact{"flows_to", fmt.Sprintf("%d", len(g.FlowsTo(entity.ID())))})
		if roles := g.RoleNamesForEntity(entity.ID()); len(roles) > 0 {
			sort.Strings(roles)
			rs.facts = append(rs.facts, Fact{"roles", strings.Join(roles, ", ")})
		}
	default:
		first := matches[0]
		rs.resolveID = first.ID()
		rs.qualifiedName = qualified(first.Namespace(), first.Name())
		rs.confidence = ConfidenceAmbiguous
		rs.badges = append(rs.badges, "ambiguous")
	}

	if detail == DetailStandard || detail == DetailDeep {
		rs.related, rs.truncatedSections = relatedResourcesForEntity(g, name)
	}
	return rs
}

// relatedResourcesForEntity ranks resources by how many flows touch the
// named entity, scanning at most MaxFlowScan flows.
func relatedResourcesForEntity(g *graph.Graph, name string) ([]Related, []string) {
	var truncated []string
	counts := map[string]int{}
	flows := g.AllFlows()
	if len(flows) > MaxFlowScan {
		truncated = append(truncated, "budget_exceeded")
		flows = flows[:MaxFlowScan]
	}
	for _, flow := range flows {
		involves := false
		if from := g.GetEntity(flow.FromID()); from != nil && from.Name() == name {
			involves = true
		}
		if to := g.GetEntity(flow.ToID()); !involves && to != nil && to.Name() == name {
			involves = true
		}
		if !involves {
			continue
		}
		if res := g.GetResource(flow.ResourceID()); res != nil {
			counts[qualified(res.Namespace(), res.Name())]++
		}
	}
	return relatedFromCounts(counts, "Resource"), truncated
}

func resolveResource(name string, g *graph.Graph, detail DetailLevel) resolvedSymbol {
	rs := resolvedSymbol{
		name:          name,
		kindLabel:     "Resource",
		qualifiedName: name,
		signature:     fmt.Sprintf("Resource %q", name),
		summary:       "DomainForge resource",
		badges:        []string{},
		facts:         []Fact{},
		related:       []Related{},
	}

	if g == nil {
		rs.resolveID = noGraphID
		rs.confidence = ConfidenceNoGraph
		rs.badges = append(rs.badges, "unresolved")
		return rs
	}

	matches := matchByName(g.AllResources(), name)
	switch len(matches) {
	case 0:
		rs.resolveID = unresolvedID
		rs.confidence = ConfidenceErrorFallback
		rs.badges = append(rs.badges, "unresolved")
	case 1:
		res := matches[0]
		rs.resolveID = res.ID()
		rs.qualifiedName = qualified(res.Namespace(), res.Name())
		rs.confidence = ConfidenceExact
		rs.facts = append(rs.facts, Fact{"namespace", res.Namespace()})
		if unit := res.Unit(); unit != "" {
			rs.facts = append(rs.facts, Fact{"unit", unit})
		}
	default:
		first := matches[0]
		rs.resolveID = first.ID()
		rs.qualifiedName = qualified(first.Namespace(), first.Name())
		rs.confidence = ConfidenceAmbiguous
		rs.badges = append(rs.badges, "ambiguous")
	}

	if detail == DetailStandard || detail == DetailDeep {
		rs.related, rs.truncatedSections = relatedEntitiesForResource(g, name)
	}
	return rs
}

// relatedEntitiesForResource ranks entities by how many flows carry the
// named resource, scanning at most MaxFlowScan flows.
func relatedEntitiesForResource(g *graph.Graph, name string) ([]Related, []string) {
	var truncated []string
	counts := map[string]int{}
	flows := g.AllFlows()
	if len(flows) > MaxFlowScan {
		truncated = append(truncated, "budget_exceeded")
		flows = flows[:MaxFlowScan]
	}
	for _, flow := range flows {
		res := g.GetResource(flow.ResourceID())
		if res == nil || res.Name() != name {
			continue
		}
		if from := g.GetEntity(flow.FromID()); from != nil {
			counts[qualified(from.Namespace(), from.Name())]++
		}
		if to := g.GetEntity(flow.ToID()); to != nil {
			counts[qualified(to.Namespace(), to.Name())]++
		}
	}
	return relatedFromCounts(counts, "Entity"), truncated
}

// relatedFromCounts materializes ranked entries in qualified-name order;
// the builder applies the final score ordering.
func relatedFromCounts(counts map[string]int, kind string) []Related {
	names := make([]string, 0, len(counts))
	for qname := range counts {
		names = append(names, qname)
	}
	sort.Strings(names)
	related := make([]Related, 0, len(names))
	for _, qname := range names {
		related = append(related, Related{QualifiedName: qname, Kind: kind, RelevanceScore: counts[qname]})
	}
	return related
}

func roleRecords(g *graph.Graph) []namedRecord {
	if g == nil {
		return nil
	}
	roles := g.AllRoles()
	out := make([]namedRecord, len(roles))
	for i, r := range roles {
		out[i] = r
	}
	return out
}

func relationRecords(g *graph.Graph) []namedRecord {
	if g == nil {
		return nil
	}
	relations := g.AllRelations()
	out := make([]namedRecord, len(relations))
	for i, r := range relations {
		out[i] = r
	}
	return out
}

// resolveNamed covers the kinds whose hover carries only identity plus a
// namespace fact: roles and relations.
func resolveNamed(name, kindLabel, summary string, hasGraph bool, all []namedRecord) resolvedSymbol {
	rs := resolvedSymbol{
		name:          name,
		kindLabel:     kindLabel,
		qualifiedName: name,
		signature:     fmt.Sprintf("%s %q", kindLabel, name),
		summary:       summary,
		badges:        []string{},
		facts:         []Fact{},
		related:       []Related{},
	}

	if !hasGraph {
		rs.resolveID = noGraphID
		rs.confidence = ConfidenceNoGraph
		rs.badges = append(rs.badges, "unresolved")
		return rs
	}

	matches := matchByName(all, name)
	switch len(matches) {
	case 0:
		rs.resolveID = unresolvedID
		rs.confidence = ConfidenceErrorFallback
		rs.badges = append(rs.badges, "unresolved")
	case 1:
		rec := matches[0]
		rs.resolveID = rec.ID()
		rs.qualifiedName = qualified(rec.Namespace(), rec.Name())
		rs.confidence = ConfidenceExact
		rs.facts = append(rs.facts, Fact{"namespace", rec.Namespace()})
	default:
		first := matches[0]
		rs.resolveID = first.ID()
		rs.qualifiedName = qualified(first.Namespace(), first.Name())
		rs.confidence = ConfidenceAmbiguous
		rs.badges = append(rs.badges, "ambiguous")
	}
	return rs
}

func resolvePattern(name string, g *graph.Graph) resolvedSymbol {
	rs := resolvedSymbol{
		name:          name,
		kindLabel:     "Pattern",
		qualifiedName: name,
		signature:     fmt.Sprintf("Pattern %q", name),
		summary:       "DomainForge pattern",
		badges:        []string{},
		facts:         []Fact{},
		related:       []Related{},
	}

	if g == nil {
		rs.resolveID = noGraphID
		rs.confidence = ConfidenceNoGraph
		rs.badges = append(rs.badges, "unresolved")
		return rs
	}

	matches := matchByName(g.AllPatterns(), name)
	switch len(matches) {
	case 0:
		rs.resolveID = unresolvedID
		rs.confidence = ConfidenceErrorFallback
		rs.badges = append(rs.badges, "unresolved")
	case 1:
		pat := matches[0]
		rs.resolveID = pat.ID()
		rs.qualifiedName = qualified(pat.Namespace(), pat.Name())
		rs.confidence = ConfidenceExact
	default:
		first := matches[0]
		rs.resolveID = first.ID()
		rs.qualifiedName = qualified(first.Namespace(), first.Name())
		rs.confidence = ConfidenceAmbiguous
		rs.badges = append(rs.badges, "ambiguous")
	}
	return rs
}

func resolveInstance(name string, g *graph.Graph, detail DetailLevel) resolvedSymbol {
	rs := resolvedSymbol{
		name:          name,
		kindLabel:     "Instance",
		qualifiedName: name,
		signature:     fmt.Sprintf("Instance %s of \"…\"", name),
		summary:       "DomainForge entity instance",
		badges:        []string{},
		facts:         []Fact{},
		related:       []Related{},
	}

	if g == nil {
		rs.resolveID = noGraphID
		rs.confidence = ConfidenceNoGraph
		rs.badges = append(rs.badges, "unresolved")
		return rs
	}

	instance := g.GetEntityInstance(name)
	if instance == nil {
		rs.resolveID = unresolvedID
		rs.confidence = ConfidenceErrorFallback
		rs.badges = append(rs.badges, "unresolved")
		return rs
	}

	rs.resolveID = instance.ID()
	rs.qualifiedName = qualified(instance.Namespace(), instance.Name())
	rs.confidence = ConfidenceExact
	rs.facts = append(rs.facts, Fact{"of", instance.EntityType()})
	rs.facts = append(rs.facts, Fact{"fields", fmt.Sprintf("%d", len(instance.Fields()))})
	if detail == DetailStandard || detail == DetailDeep {
		rs.related = append(rs.related, Related{
			QualifiedName:  instance.EntityType(),
			Kind:           "Entity",
			RelevanceScore: 10,
		})
	}
	return rs
}

func resolvePolicy(name string, g *graph.Graph) resolvedSymbol {
	rs := resolvedSymbol{
		name:          name,
		kindLabel:     "Policy",
		qualifiedName: name,
		signature:     fmt.Sprintf("Policy %s as: …", name),
		summary:       "DomainForge policy (business rule)",
		badges:        []string{},
		facts:         []Fact{},
		related:       []Related{},
	}

	if g == nil {
		rs.resolveID = noGraphID
		rs.confidence = ConfidenceNoGraph
		rs.badges = append(rs.badges, "unresolved")
		return rs
	}

	var matches []*graph.Policy
	for _, p := range g.AllPolicies() {
		if p.Name == name {
			matches = append(matches, p)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Namespace != matches[j].Namespace {
			return matches[i].Namespace < matches[j].Namespace
		}
		return matches[i].ID < matches[j].ID
	})

	switch len(matches) {
	case 0:
		rs.resolveID = unresolvedID
		rs.confidence = ConfidenceErrorFallback
		rs.badges = append(rs.badges, "unresolved")
	case 1:
		policy := matches[0]
		rs.resolveID = policy.ID
		rs.qualifiedName = qualified(policy.Namespace, policy.Name)
		rs.confidence = ConfidenceExact
		rs.facts = append(rs.facts, Fact{"namespace", policy.Namespace})
		if policy.Modality != "" {
			rs.facts = append(rs.facts, Fact{"modality", policy.Modality})
		}
		if policy.Kind != "" {
			rs.facts = append(rs.facts, Fact{"kind", policy.Kind})
		}
		rs.facts = append(rs.facts, Fact{"priority", fmt.Sprintf("%d", policy.Priority)})
		rs.signature = fmt.Sprintf("Policy %s as:\n    %s", name, exprPreview(policy.Expression))
	default:
		first := matches[0]
		rs.resolveID = first.ID
		rs.qualifiedName = qualified(first.Namespace, first.Name)
		rs.confidence = ConfidenceAmbiguous
		rs.badges = append(rs.badges, "ambiguous")
	}
	return rs
}

// exprPreview clips long policy expressions with an ellipsis so the
// signature stays a one-screen preview.
func exprPreview(expr string) string {
	runes := []rune(expr)
	if len(runes) <= policyExprPreview {
		return expr
	}
	return string(runes[:policyExprPreview-3]) + "…"
}

func resolveFlow(r index.ByteRange, idx *index.SemanticIndex, g *graph.Graph) resolvedSymbol {
	decl := idx.FlowDeclForRange(r)
	confidence := ConfidenceExact
	resolved := index.FlowDecl{
		Range:      r,
		Resource:   "<unknown>",
		FromEntity: "<unknown>",
		ToEntity:   "<unknown>",
	}
	if decl != nil {
		resolved = *decl
	} else {
		confidence = ConfidenceErrorFallback
	}

	facts := []Fact{
		{"resource", resolved.Resource},
		{"from", resolved.FromEntity},
		{"to", resolved.ToEntity},
	}
	signature := fmt.Sprintf("Flow %q from %q to %q", resolved.Resource, resolved.FromEntity, resolved.ToEntity)
	if resolved.Quantity != "" {
		facts = append(facts, Fact{"quantity", resolved.Quantity})
		signature = fmt.Sprintf("%s quantity %s", signature, resolved.Quantity)
	}
	if g != nil {
		for _, res := range g.AllResources() {
			if res.Name() == resolved.Resource {
				if unit := res.Unit(); unit != "" {
					facts = append(facts, Fact{"unit", unit})
				}
				break
			}
		}
	}

	return resolvedSymbol{
		name:          "Flow",
		kindLabel:     "Flow",
		qualifiedName: fmt.Sprintf("Flow %s -> %s (%s)", resolved.FromEntity, resolved.ToEntity, resolved.Resource),
		resolveID:     index.FlowName(r),
		confidence:    confidence,
		signature:     signature,
		summary:       "DomainForge flow",
		badges:        []string{},
		facts:         facts,
		related:       []Related{},
	}
}

// hoverID hashes the full request identity so identical queries against
// identical snapshots produce identical ids.
func hoverID(uri protocol.DocumentURI, version int32, pos protocol.Position, configHash, resolveID string, detail DetailLevel) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%d\x00%d\x00%s\x00%s\x00%s", string(uri), version, pos.Line, pos.Character, configHash, resolveID, detail)
	return hex.EncodeToString(h.Sum(nil))
}

func hoverRange(li *index.LineIndex, r index.ByteRange) Range {
	return Range{
		Start: PositionFrom(li.PositionOf(r.Start)),
		End:   PositionFrom(li.PositionOf(r.End)),
	}
}

// enforceJSONLimit applies the loss-ordered truncation ladder: drop
// related, then facts, then hard-truncate the summary. A single "json"
// marker records that the ladder fired at all.
func enforceJSONLimit(m *Model) {
	if jsonLen(m) <= m.Limits.MaxJSONBytes {
		return
	}
	m.Related = []Related{}
	if jsonLen(m) > m.Limits.MaxJSONBytes {
		m.Primary.Facts = []Fact{}
	}
	if jsonLen(m) > m.Limits.MaxJSONBytes {
		runes := []rune(m.Primary.Summary)
		if len(runes) > maxSummaryHardCut {
			m.Primary.Summary = string(runes[:maxSummaryHardCut])
		}
	}
	m.Limits.TruncatedSections = sortDedup(append(m.Limits.TruncatedSections, "json"))
}

func jsonLen(m *Model) int {
	data, err := json.Marshal(m)
	if err != nil {
		return 0
	}
	return len(data)
}

func sortDedup(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	sort.Strings(values)
	out := values[:1]
	for _, v := range values[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
