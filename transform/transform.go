// Package transform prepares source entities for creation in the target
// workspace: server-assigned fields are stripped, id references are remapped
// through the accumulated bindings, and template type strings are rewritten.
// Prepare functions never mutate their input.
package transform

import (
	"fmt"
	"strings"

	"github.com/c360studio/tagmirror/entity"
	"github.com/c360studio/tagmirror/idmap"
)

// PrepareTag returns a creation-ready copy of a source tag. Trigger and
// config-tag ids are remapped through the mapper; setup and teardown
// references are converted to the name form the backend accepts; a custom
// template type is rewritten to its target type string. Unresolvable
// references stay as-is and are reported in warnings.
func PrepareTag(t *entity.Tag, src *entity.Snapshot, m *idmap.Mapper) (*entity.Tag, []string) {
	var warnings []string

	out := &entity.Tag{
		Name:      t.Name,
		Type:      t.Type,
		Notes:     t.Notes,
		Paused:    t.Paused,
		Parameter: entity.CloneParameters(t.Parameter),
	}

	var w []string
	out.FiringTriggerID, w = m.RemapIDList(entity.KindTrigger, t.FiringTriggerID)
	warnings = append(warnings, w...)
	out.BlockingTriggerID, w = m.RemapIDList(entity.KindTrigger, t.BlockingTriggerID)
	warnings = append(warnings, w...)

	out.SetupTag, w = prepareTagRefs(t.SetupTag, src, m, t.Name)
	warnings = append(warnings, w...)
	out.TeardownTag, w = prepareTagRefs(t.TeardownTag, src, m, t.Name)
	warnings = append(warnings, w...)

	if p := entity.FindParameter(out.Parameter, entity.ParamConfigTagID); p != nil && p.Value != "" {
		if target, ok := m.LookupID(entity.KindTag, p.Value); ok {
			p.Value = target
		} else {
			warnings = append(warnings, fmt.Sprintf(
				"tag %q: config tag id %s has no target binding", t.Name, p.Value))
		}
	}

	if entity.IsTemplateType(out.Type) {
		if target, ok := m.ResolveTemplateType(out.Type); ok {
			out.Type = target
		} else {
			warnings = append(warnings, fmt.Sprintf(
				"tag %q: template type %s has no target binding", t.Name, out.Type))
		}
	}

	return out, warnings
}

// prepareTagRefs converts setup/teardown references to the name form the
// target accepts. The chained tag is created before its dependent, so the
// mapper's bound target name is authoritative; the source name is only a
// fallback for unbound references.
func prepareTagRefs(refs []entity.TagReference, src *entity.Snapshot, m *idmap.Mapper, ownerName string) ([]entity.TagReference, []string) {
	if len(refs) == 0 {
		return nil, nil
	}
	var warnings []string
	out := make([]entity.TagReference, 0, len(refs))
	for _, ref := range refs {
		prepared := entity.TagReference{TagName: ref.TagName, StopOnFailure: ref.StopOnFailure}
		switch {
		case prepared.TagName == "" && ref.TagID != "":
			if entry, ok := m.Lookup(entity.KindTag, ref.TagID); ok && entry.TargetName != "" {
				prepared.TagName = entry.TargetName
			} else if target := src.TagByID(ref.TagID); target != nil {
				prepared.TagName = target.Name
			} else {
				warnings = append(warnings, fmt.Sprintf(
					"tag %q: chained tag id %s not found in source", ownerName, ref.TagID))
				prepared.TagID = ref.TagID
			}
		case prepared.TagName != "":
			// A name-form reference to a replicated peer follows the peer's
			// final target name.
			if peer := src.TagByName(prepared.TagName); peer != nil {
				if entry, ok := m.Lookup(entity.KindTag, peer.TagID); ok && entry.TargetName != "" {
					prepared.TagName = entry.TargetName
				}
			}
		}
		out = append(out, prepared)
	}
	return out, warnings
}

// PrepareTrigger returns a creation-ready copy of a source trigger.
// Triggers reference variables by name, so only server fields are stripped.
func PrepareTrigger(t *entity.Trigger) *entity.Trigger {
	return &entity.Trigger{
		Name:              t.Name,
		Type:              t.Type,
		Parameter:         entity.CloneParameters(t.Parameter),
		Filter:            cloneConditions(t.Filter),
		AutoEventFilter:   cloneConditions(t.AutoEventFilter),
		CustomEventFilter: cloneConditions(t.CustomEventFilter),
	}
}

// PrepareVariable returns a creation-ready copy of a source variable, with
// a custom template type rewritten to its target type string.
func PrepareVariable(v *entity.Variable, m *idmap.Mapper) (*entity.Variable, []string) {
	var warnings []string

	out := &entity.Variable{
		Name:      v.Name,
		Type:      v.Type,
		Parameter: entity.CloneParameters(v.Parameter),
	}

	if entity.IsTemplateType(out.Type) {
		if target, ok := m.ResolveTemplateType(out.Type); ok {
			out.Type = target
		} else {
			warnings = append(warnings, fmt.Sprintf(
				"variable %q: template type %s has no target binding", v.Name, out.Type))
		}
	}

	return out, warnings
}

// PrepareTemplate returns a creation-ready copy of a source template. The
// gallery reference block is server metadata and is dropped; gallery type
// strings embedded in the template data are rewritten where a binding
// exists. The gallery sentinel is never touched.
func PrepareTemplate(t *entity.Template, m *idmap.Mapper) *entity.Template {
	out := &entity.Template{
		Name:         t.Name,
		TemplateData: t.TemplateData,
	}

	for _, typeString := range entity.EmbeddedTypeStrings(out.TemplateData) {
		if typeString == entity.GallerySentinel {
			continue
		}
		if target, ok := m.ResolveTemplateType(typeString); ok {
			out.TemplateData = strings.ReplaceAll(out.TemplateData, typeString, target)
		}
	}

	return out
}

func cloneConditions(conds []*entity.Condition) []*entity.Condition {
	if conds == nil {
		return nil
	}
	out := make([]*entity.Condition, 0, len(conds))
	for _, c := range conds {
		out = append(out, c.Clone())
	}
	return out
}
