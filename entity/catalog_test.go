package entity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCatalogDefaults(t *testing.T) {
	c := NewCatalog(nil)

	if !c.Pushes("gaawc", "page_view") {
		t.Error("expected gaawc to push page_view by default")
	}
	if c.EventsFor("totally-unknown-type") != nil {
		t.Error("expected nil for unknown tag type")
	}
}

func TestCatalogRegister(t *testing.T) {
	c := NewCatalog(nil)

	c.Register("cvt_172990757_195", "add_to_cart", "purchase")
	c.Register("cvt_172990757_195", "purchase") // duplicate ignored

	events := c.EventsFor("cvt_172990757_195")
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", events)
	}

	// Returned slice is a copy, mutating it must not poison the table.
	events[0] = "mutated"
	if c.EventsFor("cvt_172990757_195")[0] == "mutated" {
		t.Error("EventsFor leaked internal slice")
	}
}

func TestCatalogLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.yaml")
	content := `events:
  gclidw:
    - conversion_linker_ready
  gaawe:
    - generate_lead
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c := NewCatalog(nil)
	if err := c.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if !c.Pushes("gclidw", "conversion_linker_ready") {
		t.Error("expected gclidw entry from file")
	}
	// Defaults survive a file merge.
	if !c.Pushes("gaawc", "page_view") {
		t.Error("expected default gaawc entry to survive merge")
	}
}

func TestCatalogLoadFileMissing(t *testing.T) {
	c := NewCatalog(nil)
	if err := c.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing catalog file")
	}
}
