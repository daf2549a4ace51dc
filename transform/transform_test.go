package transform

import (
	"reflect"
	"strings"
	"testing"

	"github.com/c360studio/tagmirror/entity"
	"github.com/c360studio/tagmirror/idmap"
)

func sourceSnapshot() *entity.Snapshot {
	return &entity.Snapshot{
		Workspace: entity.Workspace{AccountID: "acc", ContainerID: "210926331", WorkspaceID: "12"},
		Tags: []*entity.Tag{
			{TagID: "5", Name: "Consent Init", Type: "html"},
		},
	}
}

func TestPrepareTagStripsServerFields(t *testing.T) {
	src := &entity.Tag{
		AccountID: "acc", ContainerID: "210926331", WorkspaceID: "12",
		TagID: "1", Name: "GA4 - Click", Type: "gaawe",
		Fingerprint: "fp-1", Path: "accounts/acc/...",
		TagManagerURL: "https://tagmanager.example/#/...", ParentFolderID: "44",
	}

	out, warnings := PrepareTag(src, sourceSnapshot(), idmap.New())
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if out.TagID != "" || out.AccountID != "" || out.ContainerID != "" ||
		out.WorkspaceID != "" || out.Fingerprint != "" || out.Path != "" ||
		out.TagManagerURL != "" || out.ParentFolderID != "" {
		t.Errorf("server fields not stripped: %+v", out)
	}
	if out.Name != "GA4 - Click" || out.Type != "gaawe" {
		t.Errorf("identity fields lost: %+v", out)
	}
}

func TestPrepareTagRemapsTriggerIds(t *testing.T) {
	m := idmap.New()
	_ = m.Bind(entity.KindTrigger, "10", "200", "Click")

	src := &entity.Tag{
		TagID: "1", Name: "GA4 - Click", Type: "gaawe",
		FiringTriggerID:   []string{"10"},
		BlockingTriggerID: []string{"11"},
	}

	out, warnings := PrepareTag(src, sourceSnapshot(), m)
	if want := []string{"200"}; !reflect.DeepEqual(out.FiringTriggerID, want) {
		t.Errorf("FiringTriggerID = %v, want %v", out.FiringTriggerID, want)
	}
	// Unbound blocking trigger id stays and warns.
	if want := []string{"11"}; !reflect.DeepEqual(out.BlockingTriggerID, want) {
		t.Errorf("BlockingTriggerID = %v, want %v", out.BlockingTriggerID, want)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "11") {
		t.Errorf("warnings = %v, want one for trigger 11", warnings)
	}
}

func TestPrepareTagConvertsSetupTagIDToName(t *testing.T) {
	src := &entity.Tag{
		TagID: "1", Name: "GA4 - Purchase", Type: "gaawe",
		SetupTag:    []entity.TagReference{{TagID: "5", StopOnFailure: true}},
		TeardownTag: []entity.TagReference{{TagName: "Cleanup"}},
	}

	out, _ := PrepareTag(src, sourceSnapshot(), idmap.New())
	if len(out.SetupTag) != 1 || out.SetupTag[0].TagName != "Consent Init" ||
		out.SetupTag[0].TagID != "" || !out.SetupTag[0].StopOnFailure {
		t.Errorf("SetupTag = %+v, want name form of Consent Init", out.SetupTag)
	}
	if len(out.TeardownTag) != 1 || out.TeardownTag[0].TagName != "Cleanup" {
		t.Errorf("TeardownTag = %+v, want pass-through name form", out.TeardownTag)
	}
}

// A renamed chained tag must be referenced by its target name, not its
// source name, in both the id form and the name form.
func TestPrepareTagSetupRefFollowsBoundTargetName(t *testing.T) {
	m := idmap.New()
	_ = m.Bind(entity.KindTag, "5", "105", "[COPY] Consent Init")

	src := &entity.Tag{
		TagID: "1", Name: "GA4 - Purchase", Type: "gaawe",
		SetupTag:    []entity.TagReference{{TagID: "5", StopOnFailure: true}},
		TeardownTag: []entity.TagReference{{TagName: "Consent Init"}},
	}

	out, warnings := PrepareTag(src, sourceSnapshot(), m)
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if len(out.SetupTag) != 1 || out.SetupTag[0].TagName != "[COPY] Consent Init" ||
		out.SetupTag[0].TagID != "" || !out.SetupTag[0].StopOnFailure {
		t.Errorf("SetupTag = %+v, want the bound target name", out.SetupTag)
	}
	if len(out.TeardownTag) != 1 || out.TeardownTag[0].TagName != "[COPY] Consent Init" {
		t.Errorf("TeardownTag = %+v, want the bound target name", out.TeardownTag)
	}
}

func TestPrepareTagRemapsConfigTagID(t *testing.T) {
	m := idmap.New()
	_ = m.Bind(entity.KindTag, "3", "103", "GA4 Config")

	src := &entity.Tag{
		TagID: "1", Name: "GA4 - Event", Type: "gaawe",
		Parameter: []*entity.Parameter{
			{Type: entity.ParameterTypeTemplate, Key: entity.ParamConfigTagID, Value: "3"},
		},
	}

	out, warnings := PrepareTag(src, sourceSnapshot(), m)
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	p := entity.FindParameter(out.Parameter, entity.ParamConfigTagID)
	if p == nil || p.Value != "103" {
		t.Errorf("configTagId = %v, want 103", p)
	}
}

func TestPrepareTagRewritesTemplateType(t *testing.T) {
	m := idmap.New()
	m.BindTemplateType("cvt_210926331_55", "cvt_99887766_7")

	src := &entity.Tag{TagID: "1", Name: "Custom Pixel", Type: "cvt_210926331_55"}
	out, warnings := PrepareTag(src, sourceSnapshot(), m)
	if out.Type != "cvt_99887766_7" {
		t.Errorf("Type = %s, want remapped type", out.Type)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	orphan := &entity.Tag{TagID: "2", Name: "Orphan Pixel", Type: "cvt_210926331_99"}
	out, warnings = PrepareTag(orphan, sourceSnapshot(), m)
	if out.Type != "cvt_210926331_99" {
		t.Errorf("unbound type changed to %s", out.Type)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want one for the unbound type", warnings)
	}
}

// Prepare functions must not mutate their input.
func TestPrepareTagDoesNotMutateSource(t *testing.T) {
	m := idmap.New()
	_ = m.Bind(entity.KindTrigger, "10", "200", "Click")
	_ = m.Bind(entity.KindTag, "3", "103", "GA4 Config")

	src := &entity.Tag{
		TagID: "1", Name: "GA4 - Event", Type: "gaawe",
		FiringTriggerID: []string{"10"},
		SetupTag:        []entity.TagReference{{TagID: "5"}},
		Parameter: []*entity.Parameter{
			{Type: entity.ParameterTypeTemplate, Key: entity.ParamConfigTagID, Value: "3"},
			{Type: entity.ParameterTypeList, Key: "fields", List: []*entity.Parameter{
				{Type: entity.ParameterTypeTemplate, Key: "value", Value: "{{DL - Value}}"},
			}},
		},
	}
	before := *src
	beforeParams := entity.CloneParameters(src.Parameter)

	_, _ = PrepareTag(src, sourceSnapshot(), m)

	if src.FiringTriggerID[0] != "10" || src.SetupTag[0].TagID != "5" {
		t.Error("source tag slices mutated")
	}
	if !reflect.DeepEqual(src.Parameter, beforeParams) {
		t.Error("source parameter tree mutated")
	}
	if src.Name != before.Name || src.Type != before.Type {
		t.Error("source scalar fields mutated")
	}
}

func TestPrepareTriggerStripsAndClones(t *testing.T) {
	src := &entity.Trigger{
		TriggerID: "10", Name: "CE - login", Type: entity.TriggerTypeCustomEvent,
		AccountID: "acc", Fingerprint: "fp", Path: "p",
		CustomEventFilter: []*entity.Condition{{
			Type: "equals",
			Parameter: []*entity.Parameter{
				{Type: entity.ParameterTypeTemplate, Key: "arg1", Value: "login"},
			},
		}},
	}

	out := PrepareTrigger(src)
	if out.TriggerID != "" || out.AccountID != "" || out.Fingerprint != "" || out.Path != "" {
		t.Errorf("server fields not stripped: %+v", out)
	}
	if len(out.CustomEventFilter) != 1 {
		t.Fatal("filter lost")
	}
	out.CustomEventFilter[0].Parameter[0].Value = "changed"
	if src.CustomEventFilter[0].Parameter[0].Value != "login" {
		t.Error("filter not deep-cloned")
	}
}

func TestPrepareVariableRewritesTemplateType(t *testing.T) {
	m := idmap.New()
	m.BindTemplateType("cvt_210926331_56", "cvt_99887766_8")

	out, warnings := PrepareVariable(&entity.Variable{
		VariableID: "30", Name: "Gallery Var", Type: "cvt_210926331_56",
	}, m)
	if out.Type != "cvt_99887766_8" || out.VariableID != "" {
		t.Errorf("prepared variable = %+v", out)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestPrepareTemplateDropsGalleryAndRewritesEmbeddedTypes(t *testing.T) {
	m := idmap.New()
	m.BindTemplateType("cvt_KDDGR", "cvt_99887766_9")

	src := &entity.Template{
		TemplateID: "55", Name: "Gallery Template",
		Fingerprint: "fp", Path: "p",
		GalleryReference: &entity.GalleryReference{
			Host: "github.com", Owner: "vendor", Repository: "template",
		},
		TemplateData: "___INFO___\n{\"id\": \"cvt_KDDGR\", \"paramId\": \"cvt_temp_public_id\"}\n",
	}

	out := PrepareTemplate(src, m)
	if out.TemplateID != "" || out.Fingerprint != "" || out.Path != "" {
		t.Errorf("server fields not stripped: %+v", out)
	}
	if out.GalleryReference != nil {
		t.Error("gallery reference not dropped")
	}
	if !strings.Contains(out.TemplateData, "cvt_99887766_9") {
		t.Errorf("embedded type not rewritten: %s", out.TemplateData)
	}
	if !strings.Contains(out.TemplateData, entity.GallerySentinel) {
		t.Errorf("gallery sentinel was rewritten: %s", out.TemplateData)
	}
	if strings.Contains(src.TemplateData, "cvt_99887766_9") {
		t.Error("source template data mutated")
	}
}
