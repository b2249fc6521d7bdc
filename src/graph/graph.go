// Package graph builds the queryable semantic graph for one parsed
// DomainForge document: entities, resources, flows, roles, relations,
// patterns, instances, and policies, with namespace and lineage
// metadata. The graph is read-only after Build and is rebuilt wholesale
// whenever the document changes.
package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/GodSpeedAI/domainforge-lsp/src/parser"
)

const defaultNamespace = "default"

// Entity is one declared entity with optional lineage metadata.
type Entity struct {
	id        string
	namespace string
	name      string
	version   string
	replaces  string
	changes   []string
}

func (e *Entity) ID() string        { return e.id }
func (e *Entity) Namespace() string { return e.namespace }
func (e *Entity) Name() string      { return e.name }
func (e *Entity) Version() string   { return e.version }
func (e *Entity) Replaces() string  { return e.replaces }
func (e *Entity) Changes() []string { return e.changes }

// Resource is one declared resource with its unit symbol.
type Resource struct {
	id        string
	namespace string
	name      string
	unit      string
}

func (r *Resource) ID() string        { return r.id }
func (r *Resource) Namespace() string { return r.namespace }
func (r *Resource) Name() string      { return r.name }
func (r *Resource) Unit() string      { return r.unit }

// Role is one declared role, optionally attached to an entity.
type Role struct {
	id        string
	namespace string
	name      string
	forEntity string
}

func (r *Role) ID() string        { return r.id }
func (r *Role) Namespace() string { return r.namespace }
func (r *Role) Name() string      { return r.name }
func (r *Role) ForEntity() string { return r.forEntity }

// Relation is one declared relation between roles.
type Relation struct {
	id          string
	namespace   string
	name        string
	subject     string
	predicate   string
	object      string
	viaResource string
}

func (r *Relation) ID() string          { return r.id }
func (r *Relation) Namespace() string   { return r.namespace }
func (r *Relation) Name() string        { return r.name }
func (r *Relation) Subject() string     { return r.subject }
func (r *Relation) Predicate() string   { return r.predicate }
func (r *Relation) Object() string      { return r.object }
func (r *Relation) ViaResource() string { return r.viaResource }

// Pattern is one declared pattern.
type Pattern struct {
	id        string
	namespace string
	name      string
}

func (p *Pattern) ID() string        { return p.id }
func (p *Pattern) Namespace() string { return p.namespace }
func (p *Pattern) Name() string      { return p.name }

// Instance is one declared entity instance with its field values.
type Instance struct {
	id         string
	namespace  string
	name       string
	entityType string
	fields     map[string]string
}

func (i *Instance) ID() string                { return i.id }
func (i *Instance) Namespace() string         { return i.namespace }
func (i *Instance) Name() string              { return i.name }
func (i *Instance) EntityType() string        { return i.entityType }
func (i *Instance) Fields() map[string]string { return i.fields }

// Policy is one declared policy. Fields are exported directly: policies
// carry heterogeneous metadata that hover rendering consumes wholesale.
type Policy struct {
	ID         string
	Namespace  string
	Name       string
	Kind       string
	Modality   string
	Priority   int
	Expression string
}

// Flow is one flow edge between entity ids over a resource id.
type Flow struct {
	id         string
	resourceID string
	fromID     string
	toID       string
	quantity   string
}

func (f *Flow) ID() string         { return f.id }
func (f *Flow) ResourceID() string { return f.resourceID }
func (f *Flow) FromID() string     { return f.fromID }
func (f *Flow) ToID() string       { return f.toID }
func (f *Flow) Quantity() string   { return f.quantity }

// Graph is the queryable semantic graph of one document snapshot.
type Graph struct {
	entities  []*Entity
	resources []*Resource
	roles     []*Role
	relations []*Relation
	patterns  []*Pattern
	instances []*Instance
	policies  []*Policy
	flows     []*Flow

	entitiesByID  map[string]*Entity
	resourcesByID map[string]*Resource
}

// Build constructs a graph from a parsed program. Declarations that name
// unresolvable operands (a flow referring to an unknown entity) are
// dropped from the relationship sets but never fail the build: hover and
// navigation degrade per-symbol instead.
func Build(program *parser.Node, source string) *Graph {
	g := &Graph{
		entitiesByID:  make(map[string]*Entity),
		resourcesByID: make(map[string]*Resource),
	}
	if program == nil {
		return g
	}

	namespace := defaultNamespace
	var pendingFlows []*parser.Node

	for _, stmt := range program.Children {
		switch stmt.Kind {
		case parser.NodeNamespaceDirective:
			if lit := firstLiteral(stmt); lit != nil {
				namespace = parser.Unquote(lit.Text)
			}
		case parser.NodeEntityDecl:
			g.addEntity(stmt, namespace)
		case parser.NodeResourceDecl:
			g.addResource(stmt, namespace)
		case parser.NodeRoleDecl:
			g.addRole(stmt, namespace)
		case parser.NodeRelationDecl:
			g.addRelation(stmt, namespace)
		case parser.NodePatternDecl:
			g.addPattern(stmt, namespace)
		case parser.NodeInstanceDecl:
			g.addInstance(stmt, namespace)
		case parser.NodePolicyDecl:
			g.addPolicy(stmt, namespace, source)
		case parser.NodeFlowDecl:
			// flows resolve by name, so they wait until every
			// declaration in the document has been seen
			pendingFlows = append(pendingFlows, stmt)
		}
	}

	for _, stmt := range pendingFlows {
		g.addFlow(stmt, namespace)
	}

	g.sortAll()
	return g
}

func firstLiteral(n *parser.Node) *parser.Node {
	for _, c := range n.Children {
		if c.Kind == parser.NodeStringLit || c.Kind == parser.NodeMultilineString {
			return c
		}
	}
	return nil
}

func declaredName(n *parser.Node) (string, bool) {
	nameNode := n.FindChild(parser.NodeName)
	if nameNode == nil {
		return "", false
	}
	lit := firstLiteral(nameNode)
	if lit == nil {
		return "", false
	}
	return parser.Unquote(lit.Text), true
}

// clauseNamespace returns the namespace from an `in` clause, or the
// enclosing default.
func clauseNamespace(n *parser.Node, enclosing string) string {
	clause := n.FindChild(parser.NodeNamespaceClause)
	if clause == nil {
		return enclosing
	}
	ident := clause.FindChild(parser.NodeIdentifier)
	if ident == nil {
		return enclosing
	}
	return ident.Text
}

func stableID(kind, namespace, name string) string {
	return fmt.Sprintf("%s:%s:%s", kind, namespace, name)
}

func (g *Graph) addEntity(n *parser.Node, enclosing string) {
	name, ok := declaredName(n)
	if !ok {
		return
	}
	ns := clauseNamespace(n, enclosing)
	e := &Entity{id: stableID("entity", ns, name), namespace: ns, name: name}
	if clause := n.FindChild(parser.NodeVersionClause); clause != nil {
		if lit := firstLiteral(clause); lit != nil {
			e.version = parser.Unquote(lit.Text)
		}
	}
	if clause := n.FindChild(parser.NodeReplacesClause); clause != nil {
		if lit := firstLiteral(clause); lit != nil {
			e.replaces = parser.Unquote(lit.Text)
		}
	}
	if clause := n.FindChild(parser.NodeChangesClause); clause != nil {
		for _, lit := range clause.Children {
			e.changes = append(e.changes, parser.Unquote(lit.Text))
		}
	}
	g.entities = append(g.entities, e)
	g.entitiesByID[e.id] = e
}

func (g *Graph) addResource(n *parser.Node, enclosing string) {
	name, ok := declaredName(n)
	if !ok {
		return
	}
	ns := clauseNamespace(n, enclosing)
	r := &Resource{id: stableID("resource", ns, name), namespace: ns, name: name}
	if unit := n.FindChild(parser.NodeIdentifier); unit != nil {
		r.unit = unit.Text
	}
	g.resources = append(g.resources, r)
	g.resourcesByID[r.id] = r
}

func (g *Graph) addRole(n *parser.Node, enclosing string) {
	name, ok := declaredName(n)
	if !ok {
		return
	}
	role := &Role{id: stableID("role", enclosing, name), namespace: enclosing, name: name}
	if clause := n.FindChild(parser.NodeForClause); clause != nil {
		if lit := firstLiteral(clause); lit != nil {
			role.forEntity = parser.Unquote(lit.Text)
		}
	}
	g.roles = append(g.roles, role)
}

func (g *Graph) addRelation(n *parser.Node, enclosing string) {
	name, ok := declaredName(n)
	if !ok {
		return
	}
	rel := &Relation{id: stableID("relation", enclosing, name), namespace: enclosing, name: name}
	lits := n.ChildrenOfKind(parser.NodeStringLit)
	if len(lits) > 0 {
		rel.subject = parser.Unquote(lits[0].Text)
	}
	if len(lits) > 1 {
		rel.predicate = parser.Unquote(lits[1].Text)
	}
	if len(lits) > 2 {
		rel.object = parser.Unquote(lits[2].Text)
	}
	if len(lits) > 3 {
		rel.viaResource = parser.Unquote(lits[3].Text)
	}
	g.relations = append(g.relations, rel)
}

func (g *Graph) addPattern(n *parser.Node, enclosing string) {
	name, ok := declaredName(n)
	if !ok {
		return
	}
	g.patterns = append(g.patterns, &Pattern{
		id:        stableID("pattern", enclosing, name),
		namespace: enclosing,
		name:      name,
	})
}

func (g *Graph) addInstance(n *parser.Node, enclosing string) {
	ident := n.FindChild(parser.NodeIdentifier)
	typeLit := n.FindChild(parser.NodeStringLit)
	if ident == nil || typeLit == nil {
		return
	}
	inst := &Instance{
		id:         stableID("instance", enclosing, ident.Text),
		namespace:  enclosing,
		name:       ident.Text,
		entityType: parser.Unquote(typeLit.Text),
		fields:     make(map[string]string),
	}
	if body := n.FindChild(parser.NodeInstanceBody); body != nil {
		for _, field := range body.ChildrenOfKind(parser.NodeInstanceField) {
			if len(field.Children) == 2 {
				key := field.Children[0].Text
				inst.fields[key] = parser.Unquote(field.Children[1].Text)
			}
		}
	}
	g.instances = append(g.instances, inst)
}

func (g *Graph) addPolicy(n *parser.Node, enclosing string, source string) {
	ident := n.FindChild(parser.NodeIdentifier)
	if ident == nil {
		return
	}
	p := &Policy{
		ID:        stableID("policy", enclosing, ident.Text),
		Namespace: enclosing,
		Name:      ident.Text,
	}
	if meta := n.FindChild(parser.NodePolicyMeta); meta != nil {
		idents := meta.ChildrenOfKind(parser.NodeIdentifier)
		if len(idents) > 0 {
			p.Kind = idents[0].Text
		}
		if len(idents) > 1 {
			p.Modality = idents[1].Text
		}
		if num := meta.FindChild(parser.NodeNumber); num != nil {
			if v, err := strconv.Atoi(num.Text); err == nil {
				p.Priority = v
			}
		}
	}
	if expr := n.FindChild(parser.NodePolicyExpr); expr != nil {
		if expr.Span.Start <= expr.Span.End && expr.Span.End <= len(source) {
			p.Expression = strings.TrimSpace(source[expr.Span.Start:expr.Span.End])
		}
	}
	g.policies = append(g.policies, p)
}

func (g *Graph) addFlow(n *parser.Node, enclosing string) {
	lits := n.ChildrenOfKind(parser.NodeStringLit)
	if len(lits) < 3 {
		return
	}
	resource := g.resourceByName(parser.Unquote(lits[0].Text))
	from := g.entityByName(parser.Unquote(lits[1].Text))
	to := g.entityByName(parser.Unquote(lits[2].Text))
	if resource == nil || from == nil || to == nil {
		return
	}
	f := &Flow{
		id:         stableID("flow", enclosing, strconv.Itoa(len(g.flows))),
		resourceID: resource.id,
		fromID:     from.id,
		toID:       to.id,
	}
	if qty := n.FindChild(parser.NodeNumber); qty != nil {
		f.quantity = qty.Text
	}
	g.flows = append(g.flows, f)
}

func (g *Graph) entityByName(name string) *Entity {
	var match *Entity
	for _, e := range g.entities {
		if e.name != name {
			continue
		}
		if match == nil || e.namespace < match.namespace {
			match = e
		}
	}
	return match
}

func (g *Graph) resourceByName(name string) *Resource {
	var match *Resource
	for _, r := range g.resources {
		if r.name != name {
			continue
		}
		if match == nil || r.namespace < match.namespace {
			match = r
		}
	}
	return match
}

func (g *Graph) sortAll() {
	sort.Slice(g.entities, func(i, j int) bool { return g.entities[i].id < g.entities[j].id })
	sort.Slice(g.resources, func(i, j int) bool { return g.resources[i].id < g.resources[j].id })
	sort.Slice(g.roles, func(i, j int) bool { return g.roles[i].id < g.roles[j].id })
	sort.Slice(g.relations, func(i, j int) bool { return g.relations[i].id < g.relations[j].id })
	sort.Slice(g.patterns, func(i, j int) bool { return g.patterns[i].id < g.patterns[j].id })
	sort.Slice(g.instances, func(i, j int) bool { return g.instances[i].id < g.instances[j].id })
	sort.Slice(g.policies, func(i, j int) bool { return g.policies[i].ID < g.policies[j].ID })
	// flows keep declaration order; their ids encode it
}

// AllEntities returns every entity, ordered by stable id.
func (g *Graph) AllEntities() []*Entity { return g.entities }

// AllResources returns every resource, ordered by stable id.
func (g *Graph) AllResources() []*Resource { return g.resources }

// AllRoles returns every role, ordered by stable id.
func (g *Graph) AllRoles() []*Role { return g.roles }

// AllRelations returns every relation, ordered by stable id.
func (g *Graph) AllRelations() []*Relation { return g.relations }

// AllPatterns returns every pattern, ordered by stable id.
func (g *Graph) AllPatterns() []*Pattern { return g.patterns }

// AllInstances returns every entity instance, ordered by stable id.
func (g *Graph) AllInstances() []*Instance { return g.instances }

// AllPolicies returns every policy, ordered by stable id.
func (g *Graph) AllPolicies() []*Policy { return g.policies }

// AllFlows returns every resolved flow in declaration order.
func (g *Graph) AllFlows() []*Flow { return g.flows }

// GetEntity returns the entity with the given stable id, or nil.
func (g *Graph) GetEntity(id string) *Entity { return g.entitiesByID[id] }

// GetResource returns the resource with the given stable id, or nil.
func (g *Graph) GetResource(id string) *Resource { return g.resourcesByID[id] }

// GetEntityInstance returns the instance declared under the given
// identifier, or nil.
func (g *Graph) GetEntityInstance(name string) *Instance {
	for _, inst := range g.instances {
		if inst.name == name {
			return inst
		}
	}
	return nil
}

// FlowsFrom returns the flows whose origin is the given entity id.
func (g *Graph) FlowsFrom(entityID string) []*Flow {
	var out []*Flow
	for _, f := range g.flows {
		if f.fromID == entityID {
			out = append(out, f)
		}
	}
	return out
}

// FlowsTo returns the flows whose destination is the given entity id.
func (g *Graph) FlowsTo(entityID string) []*Flow {
	var out []*Flow
	for _, f := range g.flows {
		if f.toID == entityID {
			out = append(out, f)
		}
	}
	return out
}

// RoleNamesForEntity returns the names of roles attached to the entity.
func (g *Graph) RoleNamesForEntity(entityID string) []string {
	e := g.entitiesByID[entityID]
	if e == nil {
		return nil
	}
	var names []string
	for _, r := range g.roles {
		if r.forEntity == e.name {
			names = append(names, r.name)
		}
	}
	return names
}
