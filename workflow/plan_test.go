package workflow

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/c360studio/tagmirror/entity"
	"github.com/c360studio/tagmirror/graph"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sourceWorkspace() entity.Workspace {
	return entity.Workspace{AccountID: "acc", ContainerID: "172990757", WorkspaceID: "12"}
}

func targetWorkspace() entity.Workspace {
	return entity.Workspace{AccountID: "acc", ContainerID: "210926331", WorkspaceID: "9"}
}

// chainSource is the two-entity chain: a tag firing on a trigger.
func chainSource() *entity.Snapshot {
	return &entity.Snapshot{
		Workspace: sourceWorkspace(),
		Triggers: []*entity.Trigger{{
			TriggerID: "src-t1", Name: "Click", Type: entity.TriggerTypeCustomEvent,
		}},
		Tags: []*entity.Tag{{
			TagID: "src-a", Name: "GA4 - Click", Type: "gaawe",
			FiringTriggerID: []string{"src-t1"},
		}},
	}
}

func analyze(t *testing.T, src *entity.Snapshot) *graph.Analysis {
	t.Helper()
	a, err := graph.NewResolver(nil, discardLogger()).Analyze(src)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestPlanOrdersCreateSteps(t *testing.T) {
	src := chainSource()
	target := &entity.Snapshot{Workspace: targetWorkspace()}

	plan, err := NewPlanner(discardLogger()).Build(analyze(t, src), src, target, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(plan.Steps))
	}
	if plan.Steps[0].Action != ActionCreate || plan.Steps[0].Entity.Kind != entity.KindTrigger {
		t.Errorf("step 1 = %+v, want CREATE trigger", plan.Steps[0])
	}
	if plan.Steps[1].Action != ActionCreate || plan.Steps[1].Entity.Kind != entity.KindTag {
		t.Errorf("step 2 = %+v, want CREATE tag", plan.Steps[1])
	}
	if plan.CreateCount() != 2 || plan.SkipCount() != 0 {
		t.Errorf("counts = %d create, %d skip", plan.CreateCount(), plan.SkipCount())
	}
}

func TestPlanStepsCarryOrdinalAndDependencies(t *testing.T) {
	src := chainSource()
	target := &entity.Snapshot{Workspace: targetWorkspace()}

	plan, err := NewPlanner(discardLogger()).Build(analyze(t, src), src, target, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range plan.Steps {
		if s.Ordinal != i {
			t.Errorf("step %d ordinal = %d", i, s.Ordinal)
		}
	}
	if len(plan.Steps[0].Dependencies) != 0 {
		t.Errorf("trigger dependencies = %v, want none", plan.Steps[0].Dependencies)
	}
	triggerKey := plan.Steps[0].Entity.Header().Key()
	if deps := plan.Steps[1].Dependencies; len(deps) != 1 || deps[0] != triggerKey {
		t.Errorf("tag dependencies = %v, want [%s]", deps, triggerKey)
	}
}

func TestPlanSkipsExistingByExactName(t *testing.T) {
	src := chainSource()
	target := &entity.Snapshot{
		Workspace: targetWorkspace(),
		Triggers: []*entity.Trigger{{
			TriggerID: "tgt-t1-pre", Name: "Click", Type: entity.TriggerTypeCustomEvent,
		}},
	}

	plan, err := NewPlanner(discardLogger()).Build(analyze(t, src), src, target, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if plan.Steps[0].Action != ActionSkip || plan.Steps[0].TargetID != "tgt-t1-pre" {
		t.Errorf("step 1 = %+v, want SKIP with the pre-existing id", plan.Steps[0])
	}
	if plan.Steps[1].Action != ActionCreate {
		t.Errorf("step 2 = %+v, want CREATE", plan.Steps[1])
	}
	if len(plan.Warnings) != 1 || !strings.Contains(plan.Warnings[0], "Click") {
		t.Errorf("warnings = %v, want one for the skip", plan.Warnings)
	}
}

func TestPlanAllSkip(t *testing.T) {
	src := chainSource()
	target := &entity.Snapshot{
		Workspace: targetWorkspace(),
		Triggers:  []*entity.Trigger{{TriggerID: "t1", Name: "Click", Type: "customEvent"}},
		Tags:      []*entity.Tag{{TagID: "a1", Name: "GA4 - Click", Type: "gaawe"}},
	}

	plan, err := NewPlanner(discardLogger()).Build(analyze(t, src), src, target, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if plan.CreateCount() != 0 || plan.SkipCount() != 2 {
		t.Errorf("counts = %d create, %d skip; want all-skip plan", plan.CreateCount(), plan.SkipCount())
	}
}

func TestPlanSkipDisabled(t *testing.T) {
	src := chainSource()
	target := &entity.Snapshot{
		Workspace: targetWorkspace(),
		Triggers:  []*entity.Trigger{{TriggerID: "t1", Name: "Click", Type: "customEvent"}},
	}

	opts := DefaultOptions()
	opts.SkipExisting = false
	plan, err := NewPlanner(discardLogger()).Build(analyze(t, src), src, target, opts)
	if err != nil {
		t.Fatal(err)
	}
	if plan.CreateCount() != 2 {
		t.Errorf("create count = %d, want 2 with skip disabled", plan.CreateCount())
	}
}

func TestPlanTemplateStepCarriesRemapAnnotation(t *testing.T) {
	src := &entity.Snapshot{
		Workspace: sourceWorkspace(),
		Templates: []*entity.Template{{
			TemplateID: "195", Name: "Pixel",
			TemplateData: "___INFO___\n{\"id\": \"cvt_KDDGR\"}\n",
		}},
	}
	target := &entity.Snapshot{Workspace: targetWorkspace()}

	plan, err := NewPlanner(discardLogger()).Build(analyze(t, src), src, target, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	step := plan.Steps[0]
	if step.Templates == nil {
		t.Fatal("template step missing remap annotation")
	}
	want := map[string]bool{"cvt_172990757_195": true, "cvt_KDDGR": true}
	if len(step.Templates.SourceTypes) != 2 {
		t.Fatalf("source types = %v", step.Templates.SourceTypes)
	}
	for _, s := range step.Templates.SourceTypes {
		if !want[s] {
			t.Errorf("unexpected source type %s", s)
		}
	}
}

func TestPlanHonorsFilters(t *testing.T) {
	src := &entity.Snapshot{
		Workspace: sourceWorkspace(),
		Tags: []*entity.Tag{
			{TagID: "1", Name: "GA4 - Click", Type: "gaawe"},
			{TagID: "2", Name: "Debug Console", Type: "html"},
		},
	}
	target := &entity.Snapshot{Workspace: targetWorkspace()}

	opts := DefaultOptions()
	opts.Exclude = []string{"Debug*"}
	plan, err := NewPlanner(discardLogger()).Build(analyze(t, src), src, target, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Entity.Header().Name != "GA4 - Click" {
		t.Errorf("steps = %+v, want only the GA4 tag", plan.Steps)
	}
}

func TestPlanWarnsOnFilteredOutDependency(t *testing.T) {
	src := chainSource()
	target := &entity.Snapshot{Workspace: targetWorkspace()}

	opts := DefaultOptions()
	opts.Exclude = []string{"Click"}
	plan, err := NewPlanner(discardLogger()).Build(analyze(t, src), src, target, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Entity.Kind != entity.KindTag {
		t.Fatalf("steps = %+v, want only the tag", plan.Steps)
	}
	if len(plan.Warnings) != 1 || !strings.Contains(plan.Warnings[0], "filtered-out") {
		t.Errorf("warnings = %v, want a filtered-out dependency warning", plan.Warnings)
	}
}

// Every dependency of a step appears earlier in the plan or resolves to a
// pre-existing target entity.
func TestPlanDependenciesPrecedeDependents(t *testing.T) {
	src := &entity.Snapshot{
		Workspace: sourceWorkspace(),
		Tags: []*entity.Tag{{
			TagID: "1", Name: "GA4 - Purchase", Type: "gaawe",
			FiringTriggerID: []string{"10"},
			Parameter: []*entity.Parameter{
				{Type: entity.ParameterTypeTemplate, Key: "value", Value: "{{DL - Value}}"},
			},
		}},
		Triggers: []*entity.Trigger{{
			TriggerID: "10", Name: "Purchase Event", Type: "customEvent",
		}},
		Variables: []*entity.Variable{{
			VariableID: "20", Name: "DL - Value", Type: "v",
		}},
	}
	target := &entity.Snapshot{Workspace: targetWorkspace()}

	analysis := analyze(t, src)
	plan, err := NewPlanner(discardLogger()).Build(analysis, src, target, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	position := make(map[string]int)
	for i, s := range plan.Steps {
		position[s.Entity.Header().Key()] = i
	}
	for _, s := range plan.Steps {
		key := s.Entity.Header().Key()
		for _, dep := range analysis.Graph.Dependencies(key) {
			depPos, ok := position[dep]
			if !ok {
				t.Errorf("dependency %s of %s absent from plan", dep, key)
				continue
			}
			if depPos >= position[key] {
				t.Errorf("dependency %s does not precede %s", dep, key)
			}
		}
	}
}
