package backend

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360studio/tagmirror/entity"
)

// DefaultCacheTTL is how long a per-kind list response stays fresh.
const DefaultCacheTTL = 60 * time.Second

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// Cache wraps a Backend with a per-workspace response cache keyed by entity
// kind. List calls honor the cache unless Refresh is set; find calls are
// linear scans over the cached list. Create and delete are the only public
// mutators and clear the matching kind's entry before returning, so a
// subsequent list without refresh reflects the write.
type Cache struct {
	remote Backend
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	entries map[entity.Kind]cacheEntry

	// clock is swapped in tests.
	clock func() time.Time
}

// NewCache wraps the remote backend. A zero ttl uses DefaultCacheTTL.
func NewCache(remote Backend, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		remote:  remote,
		ttl:     ttl,
		logger:  logger,
		entries: make(map[entity.Kind]cacheEntry),
		clock:   time.Now,
	}
}

// Workspace returns the wrapped backend's workspace.
func (c *Cache) Workspace() entity.Workspace {
	return c.remote.Workspace()
}

// CanCreateTemplates forwards the wrapped backend's capability flag.
func (c *Cache) CanCreateTemplates() bool {
	return c.remote.CanCreateTemplates()
}

func (c *Cache) cached(kind entity.Kind) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[kind]
	if !ok || c.clock().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

func (c *Cache) store(kind entity.Kind, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[kind] = cacheEntry{value: value, expiresAt: c.clock().Add(c.ttl)}
}

// Invalidate drops the cached list for one kind.
func (c *Cache) Invalidate(kind entity.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, kind)
}

// InvalidateAll drops every cached list.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[entity.Kind]cacheEntry)
}

// GetTag forwards to the remote backend; single-entity reads bypass the cache.
func (c *Cache) GetTag(ctx context.Context, id string) (*entity.Tag, error) {
	return c.remote.GetTag(ctx, id)
}

// GetTrigger forwards to the remote backend.
func (c *Cache) GetTrigger(ctx context.Context, id string) (*entity.Trigger, error) {
	return c.remote.GetTrigger(ctx, id)
}

// GetVariable forwards to the remote backend.
func (c *Cache) GetVariable(ctx context.Context, id string) (*entity.Variable, error) {
	return c.remote.GetVariable(ctx, id)
}

// GetTemplate forwards to the remote backend.
func (c *Cache) GetTemplate(ctx context.Context, id string) (*entity.Template, error) {
	return c.remote.GetTemplate(ctx, id)
}

// ListTags returns the cached tag list, refreshing when stale or requested.
func (c *Cache) ListTags(ctx context.Context, opts ListOptions) ([]*entity.Tag, error) {
	if !opts.Refresh {
		if v, ok := c.cached(entity.KindTag); ok {
			return v.([]*entity.Tag), nil
		}
	}
	tags, err := c.remote.ListTags(ctx, ListOptions{Refresh: true})
	if err != nil {
		return nil, err
	}
	c.store(entity.KindTag, tags)
	return tags, nil
}

// ListTriggers returns the cached trigger list.
func (c *Cache) ListTriggers(ctx context.Context, opts ListOptions) ([]*entity.Trigger, error) {
	if !opts.Refresh {
		if v, ok := c.cached(entity.KindTrigger); ok {
			return v.([]*entity.Trigger), nil
		}
	}
	triggers, err := c.remote.ListTriggers(ctx, ListOptions{Refresh: true})
	if err != nil {
		return nil, err
	}
	c.store(entity.KindTrigger, triggers)
	return triggers, nil
}

// ListVariables returns the cached variable list.
func (c *Cache) ListVariables(ctx context.Context, opts ListOptions) ([]*entity.Variable, error) {
	if !opts.Refresh {
		if v, ok := c.cached(entity.KindVariable); ok {
			return v.([]*entity.Variable), nil
		}
	}
	variables, err := c.remote.ListVariables(ctx, ListOptions{Refresh: true})
	if err != nil {
		return nil, err
	}
	c.store(entity.KindVariable, variables)
	return variables, nil
}

// ListTemplates returns the cached template list.
func (c *Cache) ListTemplates(ctx context.Context, opts ListOptions) ([]*entity.Template, error) {
	if !opts.Refresh {
		if v, ok := c.cached(entity.KindTemplate); ok {
			return v.([]*entity.Template), nil
		}
	}
	templates, err := c.remote.ListTemplates(ctx, ListOptions{Refresh: true})
	if err != nil {
		return nil, err
	}
	c.store(entity.KindTemplate, templates)
	return templates, nil
}

// FindTagByName scans the cached tag list for an exact name match.
func (c *Cache) FindTagByName(ctx context.Context, name string) (*entity.Tag, error) {
	tags, err := c.ListTags(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, nil
}

// FindTriggerByName scans the cached trigger list for an exact name match.
func (c *Cache) FindTriggerByName(ctx context.Context, name string) (*entity.Trigger, error) {
	triggers, err := c.ListTriggers(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	for _, t := range triggers {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, nil
}

// FindVariableByName scans the cached variable list for an exact name match.
func (c *Cache) FindVariableByName(ctx context.Context, name string) (*entity.Variable, error) {
	variables, err := c.ListVariables(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	for _, v := range variables {
		if v.Name == name {
			return v, nil
		}
	}
	return nil, nil
}

// FindTemplateByName scans the cached template list for an exact name match.
func (c *Cache) FindTemplateByName(ctx context.Context, name string) (*entity.Template, error) {
	templates, err := c.ListTemplates(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	for _, t := range templates {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, nil
}

// CreateTag creates through the remote and invalidates the tag cache before
// returning.
func (c *Cache) CreateTag(ctx context.Context, tag *entity.Tag) (*entity.Tag, error) {
	created, err := c.remote.CreateTag(ctx, tag)
	c.Invalidate(entity.KindTag)
	return created, err
}

// CreateTrigger creates through the remote and invalidates the trigger cache.
func (c *Cache) CreateTrigger(ctx context.Context, trigger *entity.Trigger) (*entity.Trigger, error) {
	created, err := c.remote.CreateTrigger(ctx, trigger)
	c.Invalidate(entity.KindTrigger)
	return created, err
}

// CreateVariable creates through the remote and invalidates the variable cache.
func (c *Cache) CreateVariable(ctx context.Context, variable *entity.Variable) (*entity.Variable, error) {
	created, err := c.remote.CreateVariable(ctx, variable)
	c.Invalidate(entity.KindVariable)
	return created, err
}

// CreateTemplate creates through the remote and invalidates the template cache.
func (c *Cache) CreateTemplate(ctx context.Context, template *entity.Template) (*entity.Template, error) {
	created, err := c.remote.CreateTemplate(ctx, template)
	c.Invalidate(entity.KindTemplate)
	return created, err
}

// DeleteTag deletes through the remote and invalidates the tag cache.
func (c *Cache) DeleteTag(ctx context.Context, id string) error {
	err := c.remote.DeleteTag(ctx, id)
	c.Invalidate(entity.KindTag)
	return err
}

// DeleteTrigger deletes through the remote and invalidates the trigger cache.
func (c *Cache) DeleteTrigger(ctx context.Context, id string) error {
	err := c.remote.DeleteTrigger(ctx, id)
	c.Invalidate(entity.KindTrigger)
	return err
}

// DeleteVariable deletes through the remote and invalidates the variable cache.
func (c *Cache) DeleteVariable(ctx context.Context, id string) error {
	err := c.remote.DeleteVariable(ctx, id)
	c.Invalidate(entity.KindVariable)
	return err
}

// DeleteTemplate deletes through the remote and invalidates the template cache.
func (c *Cache) DeleteTemplate(ctx context.Context, id string) error {
	err := c.remote.DeleteTemplate(ctx, id)
	c.Invalidate(entity.KindTemplate)
	return err
}
