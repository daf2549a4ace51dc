package workflow

import (
	"fmt"
	"log/slog"

	"github.com/c360studio/tagmirror/entity"
	"github.com/c360studio/tagmirror/graph"
)

// Action is what the builder does with one plan step.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionSkip   Action = "SKIP"
)

// TemplateRemap carries the type-string bindings the builder must register
// when a template step completes. SourceTypes holds the container-scoped
// form plus any gallery ids embedded in the template data.
type TemplateRemap struct {
	SourceTypes []string `json:"sourceTypes"`
}

// Step is one unit of the creation plan.
type Step struct {
	// Ordinal is the step's position in the plan, starting at zero.
	Ordinal int           `json:"ordinal"`
	Action  Action        `json:"action"`
	Entity  entity.Entity `json:"entity"`
	NewName string        `json:"newName"`

	// Dependencies holds the graph keys of the entities this step depends
	// on, in the graph's sorted order.
	Dependencies []string `json:"dependencies,omitempty"`

	// TargetID is set on SKIP steps: the id of the matched target entity.
	TargetID string `json:"targetId,omitempty"`

	// Templates carries the type remap annotation for template steps.
	Templates *TemplateRemap `json:"templates,omitempty"`
}

// Plan is an ordered list of steps plus planning findings.
type Plan struct {
	Steps    []Step   `json:"steps"`
	Warnings []string `json:"warnings,omitempty"`
}

// CreateCount returns the number of CREATE steps.
func (p *Plan) CreateCount() int {
	n := 0
	for _, s := range p.Steps {
		if s.Action == ActionCreate {
			n++
		}
	}
	return n
}

// SkipCount returns the number of SKIP steps.
func (p *Plan) SkipCount() int {
	return len(p.Steps) - p.CreateCount()
}

// Planner turns an analysis into a creation plan against a pre-loaded
// target snapshot.
type Planner struct {
	logger *slog.Logger
}

// NewPlanner builds a planner.
func NewPlanner(logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{logger: logger}
}

// Build walks the analysis order and emits one step per selected source
// entity. With SkipExisting, an exact-name match of the same kind in the
// target becomes a SKIP carrying the matched id; everything else is a
// CREATE. Template steps are annotated with the type strings the builder
// must remap.
func (p *Planner) Build(analysis *graph.Analysis, src, target *entity.Snapshot, opts Options) (*Plan, error) {
	if analysis == nil || src == nil || target == nil {
		return nil, NewError(ErrInvalidInput, "planner", "analysis, source, and target are required")
	}

	plan := &Plan{}
	filtered := make(map[string]entity.Header)
	for _, h := range analysis.Order {
		e, ok := src.ByHeader(h)
		if !ok {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf(
				"no source entity for ordered node %s %q", h.Kind, h.Name))
			continue
		}
		if !opts.Selects(h.Name) {
			p.logger.Debug("entity filtered out", "kind", h.Kind.String(), "name", h.Name)
			filtered[h.Key()] = h
			continue
		}

		// A dependency dropped by the filters leaves the dependent with a
		// dangling reference; plan it anyway and surface the gap.
		deps := analysis.Graph.Dependencies(h.Key())
		for _, dep := range deps {
			if d, ok := filtered[dep]; ok {
				plan.Warnings = append(plan.Warnings, fmt.Sprintf(
					"%s %q depends on filtered-out %s %q", h.Kind, h.Name, d.Kind, d.Name))
			}
		}

		step := Step{
			Ordinal:      len(plan.Steps),
			Action:       ActionCreate,
			Entity:       e,
			NewName:      opts.TargetName(h.Name),
			Dependencies: deps,
		}
		if h.Kind == entity.KindTemplate {
			step.Templates = templateRemap(src.Workspace.ContainerID, e.Template)
		}

		if opts.SkipExisting {
			if targetID := exactMatch(target, h.Kind, step.NewName); targetID != "" {
				step.Action = ActionSkip
				step.TargetID = targetID
				plan.Warnings = append(plan.Warnings, fmt.Sprintf(
					"%s %q already exists in target (id %s), skipping", h.Kind, step.NewName, targetID))
			}
		}

		plan.Steps = append(plan.Steps, step)
	}

	p.logger.Info("plan built",
		"steps", len(plan.Steps),
		"create", plan.CreateCount(),
		"skip", plan.SkipCount())
	return plan, nil
}

// templateRemap collects the source type strings a template step must bind:
// the container-scoped form and the gallery ids found in its data.
func templateRemap(containerID string, tpl *entity.Template) *TemplateRemap {
	remap := &TemplateRemap{
		SourceTypes: []string{entity.TypeString(containerID, tpl.TemplateID)},
	}
	remap.SourceTypes = append(remap.SourceTypes, entity.GalleryIDs(tpl.TemplateData)...)
	return remap
}

// exactMatch finds a same-kind target entity by exact name.
func exactMatch(target *entity.Snapshot, kind entity.Kind, name string) string {
	switch kind {
	case entity.KindTag:
		if t := target.TagByName(name); t != nil {
			return t.TagID
		}
	case entity.KindTrigger:
		if t := target.TriggerByName(name); t != nil {
			return t.TriggerID
		}
	case entity.KindVariable:
		if v := target.VariableByName(name); v != nil {
			return v.VariableID
		}
	case entity.KindTemplate:
		if t := target.TemplateByName(name); t != nil {
			return t.TemplateID
		}
	}
	return ""
}
