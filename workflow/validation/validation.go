// Package validation checks replication outcomes: name conflicts before a
// build, mapping completeness and reference integrity after one.
package validation

import (
	"fmt"
	"sort"
	"time"

	"github.com/c360studio/tagmirror/entity"
	"github.com/c360studio/tagmirror/idmap"
)

// Conflict is one pre-validation name collision.
type Conflict struct {
	Kind   entity.Kind `json:"kind"`
	Name   string      `json:"name"`
	Reason string      `json:"reason"`
}

// PreResult is the outcome of a pre-build check.
type PreResult struct {
	CanCreate bool       `json:"canCreate"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

// PreValidate checks intended creations against the target snapshot: any
// intended name that collides with an existing same-kind entity is a
// conflict.
func PreValidate(intended []entity.Header, target *entity.Snapshot) PreResult {
	result := PreResult{CanCreate: true}
	for _, h := range intended {
		var exists bool
		switch h.Kind {
		case entity.KindTag:
			exists = target.TagByName(h.Name) != nil
		case entity.KindTrigger:
			exists = target.TriggerByName(h.Name) != nil
		case entity.KindVariable:
			exists = target.VariableByName(h.Name) != nil
		case entity.KindTemplate:
			exists = target.TemplateByName(h.Name) != nil
		}
		if exists {
			result.CanCreate = false
			result.Conflicts = append(result.Conflicts, Conflict{
				Kind:   h.Kind,
				Name:   h.Name,
				Reason: fmt.Sprintf("a %s named %q already exists in the target", h.Kind, h.Name),
			})
		}
	}
	return result
}

// Summary carries the post-validation counts.
type Summary struct {
	ExpectedCount  int `json:"expectedCount"`
	ActualCount    int `json:"actualCount"`
	MissingCount   int `json:"missingCount"`
	BrokenRefCount int `json:"brokenRefCount"`
}

// MissingEntity is a source entity whose mapped target is absent.
type MissingEntity struct {
	Kind     entity.Kind `json:"kind"`
	Name     string      `json:"name"`
	SourceID string      `json:"sourceId"`
	TargetID string      `json:"targetId,omitempty"`
}

// BrokenReference is a target entity pointing at an id that does not exist
// in the target.
type BrokenReference struct {
	Kind      entity.Kind `json:"kind"`
	Name      string      `json:"name"`
	Reference string      `json:"reference"`
	Details   string      `json:"details"`
}

// Report is the full post-validation result.
type Report struct {
	Success          bool              `json:"success"`
	Summary          Summary           `json:"summary"`
	Missing          []MissingEntity   `json:"missing,omitempty"`
	BrokenReferences []BrokenReference `json:"brokenReferences,omitempty"`
	Warnings         []string          `json:"warnings,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

// PostValidate verifies that every mapped source entity exists in the
// fresh target snapshot and that the target's internal references resolve.
func PostValidate(src, target *entity.Snapshot, mapper *idmap.Mapper) *Report {
	report := &Report{Timestamp: time.Now()}

	entries := mapper.Entries()
	report.Summary.ExpectedCount = len(entries)

	for _, e := range entries {
		var present bool
		switch e.Kind {
		case entity.KindTag:
			present = target.TagByID(e.TargetID) != nil
		case entity.KindTrigger:
			present = target.TriggerByID(e.TargetID) != nil
		case entity.KindVariable:
			present = target.VariableByID(e.TargetID) != nil
		case entity.KindTemplate:
			present = target.TemplateByID(e.TargetID) != nil
		}
		if present {
			report.Summary.ActualCount++
			continue
		}
		report.Missing = append(report.Missing, MissingEntity{
			Kind:     e.Kind,
			Name:     e.TargetName,
			SourceID: e.SourceID,
			TargetID: e.TargetID,
		})
	}

	issues := CheckIntegrity(target)
	for _, issue := range issues {
		report.BrokenReferences = append(report.BrokenReferences, BrokenReference{
			Kind:      issue.Kind,
			Name:      issue.Name,
			Reference: issue.Reference,
			Details:   issue.Details,
		})
	}

	report.Summary.MissingCount = len(report.Missing)
	report.Summary.BrokenRefCount = len(report.BrokenReferences)
	report.Success = report.Summary.MissingCount == 0 && report.Summary.BrokenRefCount == 0
	return report
}

// IssueType classifies an integrity finding.
type IssueType string

const (
	IssueMissingTrigger  IssueType = "missing_trigger"
	IssueMissingVariable IssueType = "missing_variable"
	IssueMissingTag      IssueType = "missing_tag"
)

// Issue is one integrity finding in a workspace snapshot.
type Issue struct {
	Kind      entity.Kind `json:"kind"`
	Name      string      `json:"name"`
	Type      IssueType   `json:"issueType"`
	Reference string      `json:"reference"`
	Details   string      `json:"details"`
}

// CheckIntegrity walks a snapshot standalone: every tag's firing and
// blocking trigger ids must exist, and every {{name}} reference in tag,
// trigger, and variable parameters must resolve to a variable in the same
// snapshot.
func CheckIntegrity(s *entity.Snapshot) []Issue {
	var issues []Issue

	triggerIDs := make(map[string]bool, len(s.Triggers))
	for _, t := range s.Triggers {
		triggerIDs[t.TriggerID] = true
	}
	variableNames := make(map[string]bool, len(s.Variables))
	for _, v := range s.Variables {
		variableNames[v.Name] = true
	}

	checkRefs := func(kind entity.Kind, name string, refs []string) {
		for _, ref := range refs {
			if variableNames[ref] {
				continue
			}
			issues = append(issues, Issue{
				Kind:      kind,
				Name:      name,
				Type:      IssueMissingVariable,
				Reference: ref,
				Details:   fmt.Sprintf("{{%s}} does not resolve to a variable", ref),
			})
		}
	}

	for _, t := range s.Tags {
		for _, id := range t.FiringTriggerID {
			if !triggerIDs[id] {
				issues = append(issues, Issue{
					Kind:      entity.KindTag,
					Name:      t.Name,
					Type:      IssueMissingTrigger,
					Reference: id,
					Details:   fmt.Sprintf("firing trigger %s does not exist", id),
				})
			}
		}
		for _, id := range t.BlockingTriggerID {
			if !triggerIDs[id] {
				issues = append(issues, Issue{
					Kind:      entity.KindTag,
					Name:      t.Name,
					Type:      IssueMissingTrigger,
					Reference: id,
					Details:   fmt.Sprintf("blocking trigger %s does not exist", id),
				})
			}
		}
		checkRefs(entity.KindTag, t.Name, entity.ParameterVariableRefs(t.Parameter))
	}

	for _, t := range s.Triggers {
		refs := entity.ParameterVariableRefs(t.Parameter)
		refs = append(refs, entity.ConditionVariableRefs(t.Filter)...)
		refs = append(refs, entity.ConditionVariableRefs(t.AutoEventFilter)...)
		refs = append(refs, entity.ConditionVariableRefs(t.CustomEventFilter)...)
		checkRefs(entity.KindTrigger, t.Name, refs)
	}

	for _, v := range s.Variables {
		checkRefs(entity.KindVariable, v.Name, entity.ParameterVariableRefs(v.Parameter))
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Kind != issues[j].Kind {
			return issues[i].Kind.CreationPriority() < issues[j].Kind.CreationPriority()
		}
		return issues[i].Name < issues[j].Name
	})
	return issues
}
