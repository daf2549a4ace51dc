// Package backend abstracts CRUD over remote workspace entities. The core
// consumes only the Backend interface; concrete implementations (remote API
// client, in-memory fake) live behind it. A caching adapter adds per-kind
// list caching with TTL on top of any implementation.
package backend

import (
	"context"

	"github.com/c360studio/tagmirror/entity"
)

// ListOptions controls snapshot reads.
type ListOptions struct {
	// Refresh bypasses any response cache.
	Refresh bool
}

// Backend is the abstract adapter the replication core talks to. All list
// operations return the complete set; the adapter owns pagination. Create
// operations return the server-assigned entity (id populated) or a
// classified *Error. Get operations return (nil, nil) on network failure
// after logging a warning, and a not_found error when the id is unknown.
type Backend interface {
	Workspace() entity.Workspace

	GetTag(ctx context.Context, id string) (*entity.Tag, error)
	GetTrigger(ctx context.Context, id string) (*entity.Trigger, error)
	GetVariable(ctx context.Context, id string) (*entity.Variable, error)
	GetTemplate(ctx context.Context, id string) (*entity.Template, error)

	ListTags(ctx context.Context, opts ListOptions) ([]*entity.Tag, error)
	ListTriggers(ctx context.Context, opts ListOptions) ([]*entity.Trigger, error)
	ListVariables(ctx context.Context, opts ListOptions) ([]*entity.Variable, error)
	ListTemplates(ctx context.Context, opts ListOptions) ([]*entity.Template, error)

	FindTagByName(ctx context.Context, name string) (*entity.Tag, error)
	FindTriggerByName(ctx context.Context, name string) (*entity.Trigger, error)
	FindVariableByName(ctx context.Context, name string) (*entity.Variable, error)
	FindTemplateByName(ctx context.Context, name string) (*entity.Template, error)

	CreateTag(ctx context.Context, tag *entity.Tag) (*entity.Tag, error)
	CreateTrigger(ctx context.Context, trigger *entity.Trigger) (*entity.Trigger, error)
	CreateVariable(ctx context.Context, variable *entity.Variable) (*entity.Variable, error)
	CreateTemplate(ctx context.Context, template *entity.Template) (*entity.Template, error)

	DeleteTag(ctx context.Context, id string) error
	DeleteTrigger(ctx context.Context, id string) error
	DeleteVariable(ctx context.Context, id string) error
	DeleteTemplate(ctx context.Context, id string) error

	// CanCreateTemplates is the capability flag for adapters whose remote
	// surface lacks template creation. Callers must check it instead of
	// relying on a call-time error.
	CanCreateTemplates() bool
}

// Snapshot reads the complete workspace state through the adapter.
func Snapshot(ctx context.Context, b Backend, opts ListOptions) (*entity.Snapshot, error) {
	tags, err := b.ListTags(ctx, opts)
	if err != nil {
		return nil, err
	}
	triggers, err := b.ListTriggers(ctx, opts)
	if err != nil {
		return nil, err
	}
	variables, err := b.ListVariables(ctx, opts)
	if err != nil {
		return nil, err
	}
	var templates []*entity.Template
	templates, err = b.ListTemplates(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &entity.Snapshot{
		Workspace: b.Workspace(),
		Tags:      tags,
		Triggers:  triggers,
		Variables: variables,
		Templates: templates,
	}, nil
}

// CreateEntity dispatches a create call by variant kind and returns the
// server-assigned entity.
func CreateEntity(ctx context.Context, b Backend, e entity.Entity) (entity.Entity, error) {
	switch e.Kind {
	case entity.KindTag:
		created, err := b.CreateTag(ctx, e.Tag)
		if err != nil {
			return entity.Entity{}, err
		}
		return entity.FromTag(created), nil
	case entity.KindTrigger:
		created, err := b.CreateTrigger(ctx, e.Trigger)
		if err != nil {
			return entity.Entity{}, err
		}
		return entity.FromTrigger(created), nil
	case entity.KindVariable:
		created, err := b.CreateVariable(ctx, e.Variable)
		if err != nil {
			return entity.Entity{}, err
		}
		return entity.FromVariable(created), nil
	case entity.KindTemplate:
		created, err := b.CreateTemplate(ctx, e.Template)
		if err != nil {
			return entity.Entity{}, err
		}
		return entity.FromTemplate(created), nil
	default:
		return entity.Entity{}, NewError(ErrorKindOther, "createEntity", 0, "unknown entity kind "+string(e.Kind))
	}
}

// DeleteEntity dispatches a delete call by kind.
func DeleteEntity(ctx context.Context, b Backend, kind entity.Kind, id string) error {
	switch kind {
	case entity.KindTag:
		return b.DeleteTag(ctx, id)
	case entity.KindTrigger:
		return b.DeleteTrigger(ctx, id)
	case entity.KindVariable:
		return b.DeleteVariable(ctx, id)
	case entity.KindTemplate:
		return b.DeleteTemplate(ctx, id)
	default:
		return NewError(ErrorKindOther, "deleteEntity", 0, "unknown entity kind "+string(kind))
	}
}

// FindByName dispatches an exact-name probe by kind and reports whether a
// match exists along with the matched entity's id.
func FindByName(ctx context.Context, b Backend, kind entity.Kind, name string) (string, bool, error) {
	switch kind {
	case entity.KindTag:
		tag, err := b.FindTagByName(ctx, name)
		if err != nil || tag == nil {
			return "", false, err
		}
		return tag.TagID, true, nil
	case entity.KindTrigger:
		trigger, err := b.FindTriggerByName(ctx, name)
		if err != nil || trigger == nil {
			return "", false, err
		}
		return trigger.TriggerID, true, nil
	case entity.KindVariable:
		variable, err := b.FindVariableByName(ctx, name)
		if err != nil || variable == nil {
			return "", false, err
		}
		return variable.VariableID, true, nil
	case entity.KindTemplate:
		template, err := b.FindTemplateByName(ctx, name)
		if err != nil || template == nil {
			return "", false, err
		}
		return template.TemplateID, true, nil
	default:
		return "", false, NewError(ErrorKindOther, "findByName", 0, "unknown entity kind "+string(kind))
	}
}
