package graph

import (
	"fmt"
	"log/slog"

	"github.com/c360studio/tagmirror/entity"
)

// Analysis is the output of dependency resolution: the graph, the
// topologically ordered creation list, and non-fatal findings.
type Analysis struct {
	Graph    *Graph
	Order    []entity.Header
	Warnings []string
}

// Resolver extracts dependencies from source entities and orders them for
// creation.
type Resolver struct {
	catalog *entity.Catalog
	logger  *slog.Logger
}

// NewResolver builds a resolver. A nil catalog disables custom-event edge
// wiring for catalog-known tag types; tags still contribute edges through
// their declared eventName parameter.
func NewResolver(catalog *entity.Catalog, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{catalog: catalog, logger: logger}
}

// Analyze builds the dependency graph for a source snapshot and computes
// the creation order. Unresolved name references are warnings; same-kind
// cycles are fatal.
func (r *Resolver) Analyze(src *entity.Snapshot) (*Analysis, error) {
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("invalid source snapshot: %w", err)
	}

	g := New()
	a := &Analysis{Graph: g}

	for _, e := range src.Entities() {
		g.AddNode(e.Header())
	}

	// Templates have no outgoing dependencies; everything else is scanned.
	for _, v := range src.Variables {
		r.variableEdges(g, a, src, v)
	}
	for _, t := range src.Triggers {
		r.triggerEdges(g, a, src, t)
	}
	for _, t := range src.Tags {
		r.tagEdges(g, a, src, t)
	}

	order, err := g.TopoSort(r.logger)
	if err != nil {
		return nil, err
	}
	a.Order = order
	return a, nil
}

func (r *Resolver) tagEdges(g *Graph, a *Analysis, src *entity.Snapshot, t *entity.Tag) {
	from := t.Header().Key()

	for _, id := range t.FiringTriggerID {
		r.idEdge(g, a, from, entity.KindTrigger.Key(id), EdgeTagTrigger, t.Name)
	}
	for _, id := range t.BlockingTriggerID {
		r.idEdge(g, a, from, entity.KindTrigger.Key(id), EdgeTagTrigger, t.Name)
	}

	for _, ref := range t.SetupTag {
		r.tagRefEdge(g, a, src, from, ref, EdgeTagSetupTag, t.Name)
	}
	for _, ref := range t.TeardownTag {
		r.tagRefEdge(g, a, src, from, ref, EdgeTagTeardownTag, t.Name)
	}

	if configID := t.ConfigTagID(); configID != "" {
		r.idEdge(g, a, from, entity.KindTag.Key(configID), EdgeTagConfigTag, t.Name)
	}

	if entity.IsTemplateType(t.Type) {
		if tpl := r.matchTemplate(src, t.Type); tpl != nil {
			_ = g.AddEdge(from, tpl.Header().Key(), EdgeTagTemplate)
		} else {
			a.Warnings = append(a.Warnings, fmt.Sprintf(
				"tag %q uses template type %s but no source template matches", t.Name, t.Type))
		}
	}

	r.variableRefEdges(g, a, src, from, entity.ParameterVariableRefs(t.Parameter), EdgeTagVariable, t.Name)
}

func (r *Resolver) triggerEdges(g *Graph, a *Analysis, src *entity.Snapshot, t *entity.Trigger) {
	from := t.Header().Key()

	refs := entity.ParameterVariableRefs(t.Parameter)
	refs = append(refs, entity.ConditionVariableRefs(t.Filter)...)
	refs = append(refs, entity.ConditionVariableRefs(t.AutoEventFilter)...)
	refs = append(refs, entity.ConditionVariableRefs(t.CustomEventFilter)...)
	r.variableRefEdges(g, a, src, from, refs, EdgeTriggerVariable, t.Name)

	// A custom-event trigger depends on whichever tag pushes its event:
	// the trigger only fires once that tag has been replicated. The edge is
	// informational and is the designated break point for cross-kind cycles.
	event := t.CustomEventName()
	if event == "" {
		return
	}
	for _, tag := range src.Tags {
		if tag.EventName() == event || (r.catalog != nil && r.catalog.Pushes(tag.Type, event)) {
			_ = g.AddEdge(from, tag.Header().Key(), EdgeTriggerCustomEvent)
		}
	}
}

func (r *Resolver) variableEdges(g *Graph, a *Analysis, src *entity.Snapshot, v *entity.Variable) {
	from := v.Header().Key()

	// JavaScript variables reference peers through the same {{name}}
	// syntax inside their code body parameter; no semantic parsing happens,
	// only name matching.
	r.variableRefEdges(g, a, src, from, entity.ParameterVariableRefs(v.Parameter), EdgeVariableVariable, v.Name)

	if entity.IsTemplateType(v.Type) {
		if tpl := r.matchTemplate(src, v.Type); tpl != nil {
			_ = g.AddEdge(from, tpl.Header().Key(), EdgeVariableTemplate)
		} else {
			a.Warnings = append(a.Warnings, fmt.Sprintf(
				"variable %q uses template type %s but no source template matches", v.Name, v.Type))
		}
	}
}

// idEdge adds an id-based edge, downgrading dangling references to warnings.
func (r *Resolver) idEdge(g *Graph, a *Analysis, from, to string, kind EdgeKind, ownerName string) {
	if !g.HasNode(to) {
		a.Warnings = append(a.Warnings, fmt.Sprintf("%q references missing entity %s", ownerName, to))
		return
	}
	_ = g.AddEdge(from, to, kind)
}

func (r *Resolver) tagRefEdge(g *Graph, a *Analysis, src *entity.Snapshot, from string, ref entity.TagReference, kind EdgeKind, ownerName string) {
	switch {
	case ref.TagID != "":
		r.idEdge(g, a, from, entity.KindTag.Key(ref.TagID), kind, ownerName)
	case ref.TagName != "":
		if target := src.TagByName(ref.TagName); target != nil {
			_ = g.AddEdge(from, target.Header().Key(), kind)
		} else {
			a.Warnings = append(a.Warnings, fmt.Sprintf(
				"%q references tag %q which is not in the source", ownerName, ref.TagName))
		}
	}
}

func (r *Resolver) variableRefEdges(g *Graph, a *Analysis, src *entity.Snapshot, from string, names []string, kind EdgeKind, ownerName string) {
	for _, name := range names {
		v := src.VariableByName(name)
		if v == nil {
			// Built-in variables (Page URL, Click Classes, ...) resolve at
			// runtime and legitimately miss the snapshot; report and move on.
			a.Warnings = append(a.Warnings, fmt.Sprintf(
				"%q references variable {{%s}} not found in source", ownerName, name))
			continue
		}
		to := v.Header().Key()
		if to == from {
			continue
		}
		_ = g.AddEdge(from, to, kind)
	}
}

// matchTemplate resolves a cvt_* type string to a source template: exact
// container-scoped form first, then any matching id embedded in a template's
// data blob.
func (r *Resolver) matchTemplate(src *entity.Snapshot, typeString string) *entity.Template {
	for _, tpl := range src.Templates {
		if entity.TypeString(tpl.ContainerID, tpl.TemplateID) == typeString {
			return tpl
		}
	}
	for _, tpl := range src.Templates {
		for _, embedded := range entity.EmbeddedTypeStrings(tpl.TemplateData) {
			if embedded == typeString {
				return tpl
			}
		}
	}
	return nil
}
