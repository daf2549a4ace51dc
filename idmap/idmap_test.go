package idmap

import (
	"reflect"
	"strings"
	"testing"

	"github.com/c360studio/tagmirror/entity"
)

func TestBindAndLookup(t *testing.T) {
	m := New()
	if err := m.Bind(entity.KindTrigger, "10", "200", "Click"); err != nil {
		t.Fatal(err)
	}

	got, ok := m.LookupID(entity.KindTrigger, "10")
	if !ok || got != "200" {
		t.Errorf("LookupID = %q, %v; want 200, true", got, ok)
	}

	entry, ok := m.Lookup(entity.KindTrigger, "10")
	if !ok || entry.TargetName != "Click" || entry.TargetID != "200" {
		t.Errorf("Lookup = %+v, %v", entry, ok)
	}

	src, ok := m.LookupSource(entity.KindTrigger, "200")
	if !ok || src != "10" {
		t.Errorf("LookupSource = %q, %v; want 10, true", src, ok)
	}

	// Ids are scoped per kind.
	if _, ok := m.LookupID(entity.KindTag, "10"); ok {
		t.Error("tag lookup matched a trigger binding")
	}
}

func TestBindRejectsConflictingRebind(t *testing.T) {
	m := New()
	if err := m.Bind(entity.KindTag, "1", "100", "GA4 - Click"); err != nil {
		t.Fatal(err)
	}
	// Identical rebind is fine.
	if err := m.Bind(entity.KindTag, "1", "100", "GA4 - Click"); err != nil {
		t.Errorf("idempotent rebind failed: %v", err)
	}
	err := m.Bind(entity.KindTag, "1", "101", "GA4 - Click")
	if err == nil || !strings.Contains(err.Error(), "refusing rebind") {
		t.Errorf("conflicting rebind error = %v", err)
	}
}

func TestRemapIDListKeepsUnknownIds(t *testing.T) {
	m := New()
	_ = m.Bind(entity.KindTrigger, "10", "200", "Click")
	_ = m.Bind(entity.KindTrigger, "11", "201", "Scroll")

	mapped, warnings := m.RemapIDList(entity.KindTrigger, []string{"10", "12", "11"})
	if want := []string{"200", "12", "201"}; !reflect.DeepEqual(mapped, want) {
		t.Errorf("mapped = %v, want %v", mapped, want)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "12") {
		t.Errorf("warnings = %v, want one mentioning id 12", warnings)
	}
}

func TestRemapIDListEmpty(t *testing.T) {
	m := New()
	mapped, warnings := m.RemapIDList(entity.KindTrigger, nil)
	if mapped != nil || warnings != nil {
		t.Errorf("RemapIDList(nil) = %v, %v; want nil, nil", mapped, warnings)
	}
}

func TestTemplateTypeRemap(t *testing.T) {
	m := New()
	if err := m.BindTemplateType("cvt_210926331_55", "cvt_99887766_7"); err != nil {
		t.Fatal(err)
	}

	got, ok := m.ResolveTemplateType("cvt_210926331_55")
	if !ok || got != "cvt_99887766_7" {
		t.Errorf("ResolveTemplateType = %q, %v", got, ok)
	}
	if _, ok := m.ResolveTemplateType("cvt_210926331_56"); ok {
		t.Error("unexpected resolution for unbound type")
	}

	if err := m.BindTemplateType("cvt_210926331_55", "cvt_99887766_8"); err == nil {
		t.Error("expected error for conflicting type rebind")
	}
}

func TestGallerySentinelNeverRemaps(t *testing.T) {
	m := New()
	if err := m.BindTemplateType(entity.GallerySentinel, "cvt_99887766_7"); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.ResolveTemplateType(entity.GallerySentinel); ok {
		t.Error("gallery sentinel must not remap")
	}
}

func TestEntriesSortedByKindThenSourceID(t *testing.T) {
	m := New()
	_ = m.Bind(entity.KindTag, "2", "102", "B")
	_ = m.Bind(entity.KindTag, "1", "101", "A")
	_ = m.Bind(entity.KindTemplate, "55", "7", "Pixel")
	_ = m.Bind(entity.KindTrigger, "10", "200", "Click")

	entries := m.Entries()
	want := []Entry{
		{Kind: entity.KindTemplate, SourceID: "55", TargetID: "7", TargetName: "Pixel"},
		{Kind: entity.KindTrigger, SourceID: "10", TargetID: "200", TargetName: "Click"},
		{Kind: entity.KindTag, SourceID: "1", TargetID: "101", TargetName: "A"},
		{Kind: entity.KindTag, SourceID: "2", TargetID: "102", TargetName: "B"},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("Entries() = %v, want %v", entries, want)
	}
	if m.Len() != 4 {
		t.Errorf("Len() = %d, want 4", m.Len())
	}
}
