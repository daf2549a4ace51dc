// Package entity defines the tag-management data model: the four entity
// kinds (tags, triggers, variables, templates), the recursive parameter
// tree, workspace snapshots, and the derived template type strings.
package entity

import (
	"fmt"
	"strings"
)

// Kind identifies one of the four entity kinds. The set is closed.
type Kind string

const (
	// KindTag is a firing unit.
	KindTag Kind = "tag"
	// KindTrigger is a firing condition.
	KindTrigger Kind = "trigger"
	// KindVariable is a value producer.
	KindVariable Kind = "variable"
	// KindTemplate is a reusable tag/variable type definition.
	KindTemplate Kind = "template"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid returns true if the kind is one of the four entity kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindTag, KindTrigger, KindVariable, KindTemplate:
		return true
	default:
		return false
	}
}

// CreationPriority orders kinds for creation: templates define types consumed
// by tags, variables are referenced by name from trigger filters, triggers
// are referenced by id from tags. Lower values are created first.
func (k Kind) CreationPriority() int {
	switch k {
	case KindTemplate:
		return 0
	case KindVariable:
		return 1
	case KindTrigger:
		return 2
	case KindTag:
		return 3
	default:
		return 4
	}
}

// Key builds the workspace-unique node key for an entity id.
// Ids are only unique per kind, so keys carry both.
func (k Kind) Key(id string) string {
	return fmt.Sprintf("%s:%s", k, id)
}

// ParseKey splits a node key back into kind and id.
func ParseKey(key string) (Kind, string, error) {
	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid entity key format: %s", key)
	}
	kind := Kind(parts[0])
	if !kind.IsValid() {
		return "", "", fmt.Errorf("unknown entity kind: %s", parts[0])
	}
	return kind, parts[1], nil
}

// Header carries the fields common to every entity kind.
type Header struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Key returns the workspace-unique node key for the header.
func (h Header) Key() string {
	return h.Kind.Key(h.ID)
}

// TagReference points at another tag from a setup or teardown slot.
// Exactly one of TagName or TagID is set: the name form is the wire format
// the backend accepts, the id form appears in older exports.
type TagReference struct {
	TagName string `json:"tagName,omitempty"`
	TagID   string `json:"tagId,omitempty"`
	// StopOnFailure halts the chained tag when this reference fails.
	StopOnFailure bool `json:"stopOnSetupFailure,omitempty"`
}

// Tag is a firing unit: a typed payload fired by triggers.
type Tag struct {
	AccountID       string `json:"accountId,omitempty"`
	ContainerID     string `json:"containerId,omitempty"`
	WorkspaceID     string `json:"workspaceId,omitempty"`
	TagID           string `json:"tagId,omitempty"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	Notes           string `json:"notes,omitempty"`
	Paused          bool   `json:"paused,omitempty"`
	Fingerprint     string `json:"fingerprint,omitempty"`
	Path            string `json:"path,omitempty"`
	TagManagerURL   string `json:"tagManagerUrl,omitempty"`
	ParentFolderID  string `json:"parentFolderId,omitempty"`

	Parameter         []*Parameter   `json:"parameter,omitempty"`
	FiringTriggerID   []string       `json:"firingTriggerId,omitempty"`
	BlockingTriggerID []string       `json:"blockingTriggerId,omitempty"`
	SetupTag          []TagReference `json:"setupTag,omitempty"`
	TeardownTag       []TagReference `json:"teardownTag,omitempty"`
}

// Header returns the common header fields.
func (t *Tag) Header() Header {
	return Header{ID: t.TagID, Name: t.Name, Kind: KindTag}
}

// ConfigTagID returns the referenced config tag id, if any.
// Config tags are referenced through the measurementId/configTagId parameter.
func (t *Tag) ConfigTagID() string {
	if p := FindParameter(t.Parameter, ParamConfigTagID); p != nil {
		return p.Value
	}
	return ""
}

// EventName returns the pushed event name declared in the tag's parameters,
// or empty when the tag does not declare one.
func (t *Tag) EventName() string {
	if p := FindParameter(t.Parameter, ParamEventName); p != nil {
		return p.Value
	}
	return ""
}

// Condition is a single filter predicate on a trigger.
type Condition struct {
	Type      string       `json:"type"`
	Parameter []*Parameter `json:"parameter,omitempty"`
}

// Clone returns a deep copy of the condition.
func (c *Condition) Clone() *Condition {
	if c == nil {
		return nil
	}
	out := &Condition{Type: c.Type}
	for _, p := range c.Parameter {
		out.Parameter = append(out.Parameter, p.Clone())
	}
	return out
}

// Trigger is a firing condition for tags.
type Trigger struct {
	AccountID   string `json:"accountId,omitempty"`
	ContainerID string `json:"containerId,omitempty"`
	WorkspaceID string `json:"workspaceId,omitempty"`
	TriggerID   string `json:"triggerId,omitempty"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Path        string `json:"path,omitempty"`

	Parameter         []*Parameter `json:"parameter,omitempty"`
	Filter            []*Condition `json:"filter,omitempty"`
	AutoEventFilter   []*Condition `json:"autoEventFilter,omitempty"`
	CustomEventFilter []*Condition `json:"customEventFilter,omitempty"`
}

// Header returns the common header fields.
func (t *Trigger) Header() Header {
	return Header{ID: t.TriggerID, Name: t.Name, Kind: KindTrigger}
}

// TriggerTypeCustomEvent is the trigger type that listens for pushed events.
const TriggerTypeCustomEvent = "customEvent"

// CustomEventName returns the event name a custom-event trigger listens for.
// The name lives in the arg1 parameter of the custom event filter conditions.
func (t *Trigger) CustomEventName() string {
	if t.Type != TriggerTypeCustomEvent {
		return ""
	}
	for _, cond := range t.CustomEventFilter {
		if p := FindParameter(cond.Parameter, "arg1"); p != nil && p.Value != "" {
			return p.Value
		}
	}
	return ""
}

// Variable produces a value consumed by tags and triggers through
// {{name}} references.
type Variable struct {
	AccountID   string `json:"accountId,omitempty"`
	ContainerID string `json:"containerId,omitempty"`
	WorkspaceID string `json:"workspaceId,omitempty"`
	VariableID  string `json:"variableId,omitempty"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Path        string `json:"path,omitempty"`

	Parameter []*Parameter `json:"parameter,omitempty"`
}

// Header returns the common header fields.
func (v *Variable) Header() Header {
	return Header{ID: v.VariableID, Name: v.Name, Kind: KindVariable}
}

// GalleryReference links a template to its community gallery origin.
// It is server-assigned metadata and is stripped on replication.
type GalleryReference struct {
	Host       string `json:"host,omitempty"`
	Owner      string `json:"owner,omitempty"`
	Repository string `json:"repository,omitempty"`
	Version    string `json:"version,omitempty"`
	Signature  string `json:"signature,omitempty"`
}

// Template is a reusable tag/variable type definition. Its id participates
// in the derived type string consumed by tags (see TypeString).
type Template struct {
	AccountID   string `json:"accountId,omitempty"`
	ContainerID string `json:"containerId,omitempty"`
	WorkspaceID string `json:"workspaceId,omitempty"`
	TemplateID  string `json:"templateId,omitempty"`
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Path        string `json:"path,omitempty"`

	TemplateData     string            `json:"templateData,omitempty"`
	GalleryReference *GalleryReference `json:"galleryReference,omitempty"`
}

// Header returns the common header fields.
func (t *Template) Header() Header {
	return Header{ID: t.TemplateID, Name: t.Name, Kind: KindTemplate}
}

// Entity is the tagged variant over the four kinds. Exactly one arm is set.
type Entity struct {
	Kind     Kind      `json:"kind"`
	Tag      *Tag      `json:"tag,omitempty"`
	Trigger  *Trigger  `json:"trigger,omitempty"`
	Variable *Variable `json:"variable,omitempty"`
	Template *Template `json:"template,omitempty"`
}

// FromTag wraps a tag in the variant.
func FromTag(t *Tag) Entity { return Entity{Kind: KindTag, Tag: t} }

// FromTrigger wraps a trigger in the variant.
func FromTrigger(t *Trigger) Entity { return Entity{Kind: KindTrigger, Trigger: t} }

// FromVariable wraps a variable in the variant.
func FromVariable(v *Variable) Entity { return Entity{Kind: KindVariable, Variable: v} }

// FromTemplate wraps a template in the variant.
func FromTemplate(t *Template) Entity { return Entity{Kind: KindTemplate, Template: t} }

// Header returns the common header of whichever arm is set.
func (e Entity) Header() Header {
	switch e.Kind {
	case KindTag:
		return e.Tag.Header()
	case KindTrigger:
		return e.Trigger.Header()
	case KindVariable:
		return e.Variable.Header()
	case KindTemplate:
		return e.Template.Header()
	default:
		return Header{Kind: e.Kind}
	}
}

// IsZero reports whether no arm is set.
func (e Entity) IsZero() bool {
	return e.Tag == nil && e.Trigger == nil && e.Variable == nil && e.Template == nil
}

// Well-known parameter keys.
const (
	// ParamConfigTagID references a config tag by id from another tag.
	ParamConfigTagID = "configTagId"
	// ParamEventName declares the event a tag pushes.
	ParamEventName = "eventName"
)
