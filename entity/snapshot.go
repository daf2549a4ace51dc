package entity

import (
	"fmt"
	"sort"
)

// Workspace identifies one workspace inside a container.
type Workspace struct {
	AccountID   string `json:"accountId"`
	ContainerID string `json:"containerId"`
	WorkspaceID string `json:"workspaceId"`
}

// Path returns the canonical workspace path.
func (w Workspace) Path() string {
	return fmt.Sprintf("accounts/%s/containers/%s/workspaces/%s", w.AccountID, w.ContainerID, w.WorkspaceID)
}

// Snapshot is a complete read of one workspace's entities. Snapshots are
// value holders: the analyzer treats the source snapshot as read-only, the
// planner treats the target snapshot as read-only once the plan is built.
type Snapshot struct {
	Workspace Workspace `json:"workspace"`

	Tags      []*Tag      `json:"tags,omitempty"`
	Triggers  []*Trigger  `json:"triggers,omitempty"`
	Variables []*Variable `json:"variables,omitempty"`
	Templates []*Template `json:"templates,omitempty"`
}

// Count returns the total entity count.
func (s *Snapshot) Count() int {
	return len(s.Tags) + len(s.Triggers) + len(s.Variables) + len(s.Templates)
}

// Validate rejects malformed snapshots: unnamed entities and parameter
// trees nested past the depth limit.
func (s *Snapshot) Validate() error {
	for _, t := range s.Tags {
		if t.Name == "" {
			return fmt.Errorf("tag %s: name is required", t.TagID)
		}
		if err := ValidateParameterDepth(t.Parameter); err != nil {
			return fmt.Errorf("tag %q: %w", t.Name, err)
		}
	}
	for _, t := range s.Triggers {
		if t.Name == "" {
			return fmt.Errorf("trigger %s: name is required", t.TriggerID)
		}
		if err := ValidateParameterDepth(t.Parameter); err != nil {
			return fmt.Errorf("trigger %q: %w", t.Name, err)
		}
		// Filter predicates carry parameter trees of their own.
		for _, conds := range [][]*Condition{t.Filter, t.AutoEventFilter, t.CustomEventFilter} {
			for _, c := range conds {
				if err := ValidateParameterDepth(c.Parameter); err != nil {
					return fmt.Errorf("trigger %q: %w", t.Name, err)
				}
			}
		}
	}
	for _, v := range s.Variables {
		if v.Name == "" {
			return fmt.Errorf("variable %s: name is required", v.VariableID)
		}
		if err := ValidateParameterDepth(v.Parameter); err != nil {
			return fmt.Errorf("variable %q: %w", v.Name, err)
		}
	}
	for _, t := range s.Templates {
		if t.Name == "" {
			return fmt.Errorf("template %s: name is required", t.TemplateID)
		}
	}
	return nil
}

// Entities returns every entity wrapped in the variant, ordered by kind
// creation priority then name. The order is deterministic for identical
// snapshots.
func (s *Snapshot) Entities() []Entity {
	out := make([]Entity, 0, s.Count())
	for _, t := range s.Templates {
		out = append(out, FromTemplate(t))
	}
	for _, v := range s.Variables {
		out = append(out, FromVariable(v))
	}
	for _, t := range s.Triggers {
		out = append(out, FromTrigger(t))
	}
	for _, t := range s.Tags {
		out = append(out, FromTag(t))
	}
	sort.SliceStable(out, func(i, j int) bool {
		hi, hj := out[i].Header(), out[j].Header()
		if hi.Kind != hj.Kind {
			return hi.Kind.CreationPriority() < hj.Kind.CreationPriority()
		}
		return hi.Name < hj.Name
	})
	return out
}

// TagByID returns the tag with the given id, or nil.
func (s *Snapshot) TagByID(id string) *Tag {
	for _, t := range s.Tags {
		if t.TagID == id {
			return t
		}
	}
	return nil
}

// TriggerByID returns the trigger with the given id, or nil.
func (s *Snapshot) TriggerByID(id string) *Trigger {
	for _, t := range s.Triggers {
		if t.TriggerID == id {
			return t
		}
	}
	return nil
}

// VariableByID returns the variable with the given id, or nil.
func (s *Snapshot) VariableByID(id string) *Variable {
	for _, v := range s.Variables {
		if v.VariableID == id {
			return v
		}
	}
	return nil
}

// TemplateByID returns the template with the given id, or nil.
func (s *Snapshot) TemplateByID(id string) *Template {
	for _, t := range s.Templates {
		if t.TemplateID == id {
			return t
		}
	}
	return nil
}

// TagByName returns the tag with the exact name, or nil.
func (s *Snapshot) TagByName(name string) *Tag {
	for _, t := range s.Tags {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// TriggerByName returns the trigger with the exact name, or nil.
func (s *Snapshot) TriggerByName(name string) *Trigger {
	for _, t := range s.Triggers {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// VariableByName returns the variable with the exact name, or nil.
func (s *Snapshot) VariableByName(name string) *Variable {
	for _, v := range s.Variables {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// TemplateByName returns the template with the exact name, or nil.
func (s *Snapshot) TemplateByName(name string) *Template {
	for _, t := range s.Templates {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// ByHeader resolves a header back to its entity within the snapshot.
func (s *Snapshot) ByHeader(h Header) (Entity, bool) {
	switch h.Kind {
	case KindTag:
		if t := s.TagByID(h.ID); t != nil {
			return FromTag(t), true
		}
	case KindTrigger:
		if t := s.TriggerByID(h.ID); t != nil {
			return FromTrigger(t), true
		}
	case KindVariable:
		if v := s.VariableByID(h.ID); v != nil {
			return FromVariable(v), true
		}
	case KindTemplate:
		if t := s.TemplateByID(h.ID); t != nil {
			return FromTemplate(t), true
		}
	}
	return Entity{}, false
}
