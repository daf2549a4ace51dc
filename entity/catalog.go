package entity

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Catalog is the curated known-template-events table: which custom events a
// tag of a well-known type pushes at runtime, beyond any eventName parameter
// the tag declares itself. The analyzer consults it when wiring
// trigger→tag custom-event edges. Unknown tag types are silent.
type Catalog struct {
	mu     sync.RWMutex
	events map[string][]string // tag type → pushed event names
	logger *slog.Logger
}

// defaultKnownEvents seeds the catalog with well-known tag types.
var defaultKnownEvents = map[string][]string{
	// GA4 configuration tags push the initial page view when send_page_view
	// is left on.
	"gaawc": {"page_view"},
	// Consent initialization pushes the consent default update.
	"cdc": {"gtm.init_consent"},
	// History change listener tags.
	"hl": {"gtm.historyChange"},
}

// NewCatalog returns a catalog pre-seeded with the curated defaults.
func NewCatalog(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	events := make(map[string][]string, len(defaultKnownEvents))
	for k, v := range defaultKnownEvents {
		events[k] = append([]string(nil), v...)
	}
	return &Catalog{events: events, logger: logger}
}

// Register adds or extends the pushed-event list for a tag type. This is the
// extension point for tag types the curated table does not know.
func (c *Catalog) Register(tagType string, events ...string) {
	if tagType == "" || len(events) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	existing := c.events[tagType]
	for _, ev := range events {
		dup := false
		for _, have := range existing {
			if have == ev {
				dup = true
				break
			}
		}
		if !dup {
			existing = append(existing, ev)
		}
	}
	c.events[tagType] = existing
}

// EventsFor returns the pushed events for a tag type. Nil means unknown.
func (c *Catalog) EventsFor(tagType string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	events := c.events[tagType]
	if events == nil {
		return nil
	}
	return append([]string(nil), events...)
}

// Pushes reports whether a tag of the given type pushes the given event.
func (c *Catalog) Pushes(tagType, event string) bool {
	for _, ev := range c.EventsFor(tagType) {
		if ev == event {
			return true
		}
	}
	return false
}

// catalogFile is the YAML shape of an on-disk catalog extension.
type catalogFile struct {
	Events map[string][]string `yaml:"events"`
}

// LoadFile merges catalog entries from a YAML file into the table.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog file: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse catalog file: %w", err)
	}
	for tagType, events := range file.Events {
		c.Register(tagType, events...)
	}
	c.logger.Debug("catalog file loaded", "path", path, "types", len(file.Events))
	return nil
}

// Watch reloads the catalog file whenever it changes, until the context is
// cancelled. Reload failures are logged and the previous table stays live.
func (c *Catalog) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create catalog watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch catalog file: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := c.LoadFile(path); err != nil {
					c.logger.Warn("catalog reload failed", "path", path, "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Warn("catalog watcher error", "error", err)
			}
		}
	}()
	return nil
}
