package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/c360studio/tagmirror/entity"
)

// InMemory is a Backend backed by process memory. It enforces the remote's
// name-uniqueness rule per kind and assigns server-style ids, which makes it
// usable both as the test double and as the target of offline replication
// runs against exported snapshots.
type InMemory struct {
	mu        sync.Mutex
	workspace entity.Workspace
	idPrefix  string
	nextID    int

	tags      map[string]*entity.Tag
	triggers  map[string]*entity.Trigger
	variables map[string]*entity.Variable
	templates map[string]*entity.Template

	templatesDisabled bool

	// CreateHook intercepts every create call; returning a non-nil error
	// fails the create. Tests use it to inject rate limits and faults.
	CreateHook func(kind entity.Kind, name string) error
	// DeleteHook intercepts every delete call.
	DeleteHook func(kind entity.Kind, id string) error
}

// NewInMemory builds an empty in-memory backend for the workspace. Assigned
// ids are prefixed (e.g. "tgt-1", "tgt-2", ...).
func NewInMemory(workspace entity.Workspace, idPrefix string) *InMemory {
	if idPrefix == "" {
		idPrefix = "mem"
	}
	return &InMemory{
		workspace: workspace,
		idPrefix:  idPrefix,
		tags:      make(map[string]*entity.Tag),
		triggers:  make(map[string]*entity.Trigger),
		variables: make(map[string]*entity.Variable),
		templates: make(map[string]*entity.Template),
	}
}

// Seed loads an existing snapshot into the backend, keeping the snapshot's
// ids. Used to stand up a pre-populated target.
func (m *InMemory) Seed(snap *entity.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range snap.Tags {
		m.tags[t.TagID] = t
	}
	for _, t := range snap.Triggers {
		m.triggers[t.TriggerID] = t
	}
	for _, v := range snap.Variables {
		m.variables[v.VariableID] = v
	}
	for _, t := range snap.Templates {
		m.templates[t.TemplateID] = t
	}
}

// DisableTemplates turns off the template-creation capability.
func (m *InMemory) DisableTemplates() {
	m.templatesDisabled = true
}

// Workspace implements Backend.
func (m *InMemory) Workspace() entity.Workspace {
	return m.workspace
}

// CanCreateTemplates implements Backend.
func (m *InMemory) CanCreateTemplates() bool {
	return !m.templatesDisabled
}

func (m *InMemory) assignID() string {
	m.nextID++
	return fmt.Sprintf("%s-%d", m.idPrefix, m.nextID)
}

// GetTag implements Backend.
func (m *InMemory) GetTag(_ context.Context, id string) (*entity.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tags[id]; ok {
		return t, nil
	}
	return nil, NewError(ErrorKindNotFound, "getTag", 404, "tag "+id+" not found")
}

// GetTrigger implements Backend.
func (m *InMemory) GetTrigger(_ context.Context, id string) (*entity.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.triggers[id]; ok {
		return t, nil
	}
	return nil, NewError(ErrorKindNotFound, "getTrigger", 404, "trigger "+id+" not found")
}

// GetVariable implements Backend.
func (m *InMemory) GetVariable(_ context.Context, id string) (*entity.Variable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.variables[id]; ok {
		return v, nil
	}
	return nil, NewError(ErrorKindNotFound, "getVariable", 404, "variable "+id+" not found")
}

// GetTemplate implements Backend.
func (m *InMemory) GetTemplate(_ context.Context, id string) (*entity.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.templates[id]; ok {
		return t, nil
	}
	return nil, NewError(ErrorKindNotFound, "getTemplate", 404, "template "+id+" not found")
}

// ListTags implements Backend. Results are ordered by id assignment.
func (m *InMemory) ListTags(_ context.Context, _ ListOptions) ([]*entity.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.Tag, 0, len(m.tags))
	for _, t := range m.tags {
		out = append(out, t)
	}
	sortByName(out, func(t *entity.Tag) string { return t.Name })
	return out, nil
}

// ListTriggers implements Backend.
func (m *InMemory) ListTriggers(_ context.Context, _ ListOptions) ([]*entity.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.Trigger, 0, len(m.triggers))
	for _, t := range m.triggers {
		out = append(out, t)
	}
	sortByName(out, func(t *entity.Trigger) string { return t.Name })
	return out, nil
}

// ListVariables implements Backend.
func (m *InMemory) ListVariables(_ context.Context, _ ListOptions) ([]*entity.Variable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.Variable, 0, len(m.variables))
	for _, v := range m.variables {
		out = append(out, v)
	}
	sortByName(out, func(v *entity.Variable) string { return v.Name })
	return out, nil
}

// ListTemplates implements Backend.
func (m *InMemory) ListTemplates(_ context.Context, _ ListOptions) ([]*entity.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.Template, 0, len(m.templates))
	for _, t := range m.templates {
		out = append(out, t)
	}
	sortByName(out, func(t *entity.Template) string { return t.Name })
	return out, nil
}

// FindTagByName implements Backend.
func (m *InMemory) FindTagByName(ctx context.Context, name string) (*entity.Tag, error) {
	tags, _ := m.ListTags(ctx, ListOptions{})
	for _, t := range tags {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, nil
}

// FindTriggerByName implements Backend.
func (m *InMemory) FindTriggerByName(ctx context.Context, name string) (*entity.Trigger, error) {
	triggers, _ := m.ListTriggers(ctx, ListOptions{})
	for _, t := range triggers {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, nil
}

// FindVariableByName implements Backend.
func (m *InMemory) FindVariableByName(ctx context.Context, name string) (*entity.Variable, error) {
	variables, _ := m.ListVariables(ctx, ListOptions{})
	for _, v := range variables {
		if v.Name == name {
			return v, nil
		}
	}
	return nil, nil
}

// FindTemplateByName implements Backend.
func (m *InMemory) FindTemplateByName(ctx context.Context, name string) (*entity.Template, error) {
	templates, _ := m.ListTemplates(ctx, ListOptions{})
	for _, t := range templates {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, nil
}

// CreateTag implements Backend.
func (m *InMemory) CreateTag(_ context.Context, tag *entity.Tag) (*entity.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateHook != nil {
		if err := m.CreateHook(entity.KindTag, tag.Name); err != nil {
			return nil, err
		}
	}
	for _, existing := range m.tags {
		if existing.Name == tag.Name {
			return nil, NewError(ErrorKindDuplicateName, "createTag", 409, "tag name already exists: "+tag.Name)
		}
	}
	created := *tag
	created.TagID = m.assignID()
	created.AccountID = m.workspace.AccountID
	created.ContainerID = m.workspace.ContainerID
	created.WorkspaceID = m.workspace.WorkspaceID
	created.Path = m.workspace.Path() + "/tags/" + created.TagID
	created.Fingerprint = fmt.Sprintf("fp-%s", created.TagID)
	m.tags[created.TagID] = &created
	return &created, nil
}

// CreateTrigger implements Backend.
func (m *InMemory) CreateTrigger(_ context.Context, trigger *entity.Trigger) (*entity.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateHook != nil {
		if err := m.CreateHook(entity.KindTrigger, trigger.Name); err != nil {
			return nil, err
		}
	}
	for _, existing := range m.triggers {
		if existing.Name == trigger.Name {
			return nil, NewError(ErrorKindDuplicateName, "createTrigger", 409, "trigger name already exists: "+trigger.Name)
		}
	}
	created := *trigger
	created.TriggerID = m.assignID()
	created.AccountID = m.workspace.AccountID
	created.ContainerID = m.workspace.ContainerID
	created.WorkspaceID = m.workspace.WorkspaceID
	created.Path = m.workspace.Path() + "/triggers/" + created.TriggerID
	created.Fingerprint = fmt.Sprintf("fp-%s", created.TriggerID)
	m.triggers[created.TriggerID] = &created
	return &created, nil
}

// CreateVariable implements Backend.
func (m *InMemory) CreateVariable(_ context.Context, variable *entity.Variable) (*entity.Variable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateHook != nil {
		if err := m.CreateHook(entity.KindVariable, variable.Name); err != nil {
			return nil, err
		}
	}
	for _, existing := range m.variables {
		if existing.Name == variable.Name {
			return nil, NewError(ErrorKindDuplicateName, "createVariable", 409, "variable name already exists: "+variable.Name)
		}
	}
	created := *variable
	created.VariableID = m.assignID()
	created.AccountID = m.workspace.AccountID
	created.ContainerID = m.workspace.ContainerID
	created.WorkspaceID = m.workspace.WorkspaceID
	created.Path = m.workspace.Path() + "/variables/" + created.VariableID
	created.Fingerprint = fmt.Sprintf("fp-%s", created.VariableID)
	m.variables[created.VariableID] = &created
	return &created, nil
}

// CreateTemplate implements Backend.
func (m *InMemory) CreateTemplate(_ context.Context, template *entity.Template) (*entity.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.templatesDisabled {
		return nil, NewError(ErrorKindOther, "createTemplate", 0, "template creation not supported by this adapter")
	}
	if m.CreateHook != nil {
		if err := m.CreateHook(entity.KindTemplate, template.Name); err != nil {
			return nil, err
		}
	}
	for _, existing := range m.templates {
		if existing.Name == template.Name {
			return nil, NewError(ErrorKindDuplicateName, "createTemplate", 409, "template name already exists: "+template.Name)
		}
	}
	created := *template
	created.TemplateID = m.assignID()
	created.AccountID = m.workspace.AccountID
	created.ContainerID = m.workspace.ContainerID
	created.WorkspaceID = m.workspace.WorkspaceID
	created.Path = m.workspace.Path() + "/templates/" + created.TemplateID
	created.Fingerprint = fmt.Sprintf("fp-%s", created.TemplateID)
	m.templates[created.TemplateID] = &created
	return &created, nil
}

// DeleteTag implements Backend.
func (m *InMemory) DeleteTag(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteHook != nil {
		if err := m.DeleteHook(entity.KindTag, id); err != nil {
			return err
		}
	}
	if _, ok := m.tags[id]; !ok {
		return NewError(ErrorKindNotFound, "deleteTag", 404, "tag "+id+" not found")
	}
	delete(m.tags, id)
	return nil
}

// DeleteTrigger implements Backend.
func (m *InMemory) DeleteTrigger(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteHook != nil {
		if err := m.DeleteHook(entity.KindTrigger, id); err != nil {
			return err
		}
	}
	if _, ok := m.triggers[id]; !ok {
		return NewError(ErrorKindNotFound, "deleteTrigger", 404, "trigger "+id+" not found")
	}
	delete(m.triggers, id)
	return nil
}

// DeleteVariable implements Backend.
func (m *InMemory) DeleteVariable(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteHook != nil {
		if err := m.DeleteHook(entity.KindVariable, id); err != nil {
			return err
		}
	}
	if _, ok := m.variables[id]; !ok {
		return NewError(ErrorKindNotFound, "deleteVariable", 404, "variable "+id+" not found")
	}
	delete(m.variables, id)
	return nil
}

// DeleteTemplate implements Backend.
func (m *InMemory) DeleteTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteHook != nil {
		if err := m.DeleteHook(entity.KindTemplate, id); err != nil {
			return err
		}
	}
	if _, ok := m.templates[id]; !ok {
		return NewError(ErrorKindNotFound, "deleteTemplate", 404, "template "+id+" not found")
	}
	delete(m.templates, id)
	return nil
}

func sortByName[T any](items []T, name func(T) string) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && name(items[j]) < name(items[j-1]); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
