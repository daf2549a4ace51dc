package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/c360studio/tagmirror/backend"
	"github.com/c360studio/tagmirror/entity"
)

func newPipeline(t *testing.T, src, tgt *entity.Snapshot, opts Options) (*Orchestrator, *backend.InMemory) {
	t.Helper()
	source := backend.NewInMemory(sourceWorkspace(), "src")
	source.Seed(src)
	target := backend.NewInMemory(targetWorkspace(), "tgt")
	if tgt != nil {
		target.Seed(tgt)
	}
	return NewOrchestrator(source, target, nil, opts, nil, discardLogger()), target
}

func targetSnapshot(t *testing.T, target *backend.InMemory) *entity.Snapshot {
	t.Helper()
	snap, err := backend.Snapshot(context.Background(), target, backend.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestRunReplicatesChain(t *testing.T) {
	o, target := newPipeline(t, chainSource(), nil, fastOptions())

	result := o.Run(context.Background())
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	if result.Summary.CreatedCount != 2 || result.Summary.SkippedCount != 0 {
		t.Fatalf("summary = %+v, want 2 created", result.Summary)
	}
	if result.SessionID == "" {
		t.Error("session id missing from result")
	}
	if len(result.IDMapping) != 2 {
		t.Errorf("id mapping = %v, want 2 entries", result.IDMapping)
	}

	snap := targetSnapshot(t, target)
	var triggerID string
	for _, tr := range snap.Triggers {
		if tr.Name == "Click" {
			triggerID = tr.TriggerID
		}
	}
	if triggerID == "" {
		t.Fatal("trigger not created in target")
	}
	for _, tag := range snap.Tags {
		if tag.Name != "GA4 - Click" {
			continue
		}
		if len(tag.FiringTriggerID) != 1 || tag.FiringTriggerID[0] != triggerID {
			t.Errorf("firing triggers = %v, want [%s]", tag.FiringTriggerID, triggerID)
		}
		return
	}
	t.Fatal("tag not created in target")
}

func TestRunSkipsExistingAndRewires(t *testing.T) {
	pre := &entity.Snapshot{
		Workspace: targetWorkspace(),
		Triggers: []*entity.Trigger{{
			TriggerID: "tgt-t1-pre", Name: "Click", Type: entity.TriggerTypeCustomEvent,
		}},
	}
	o, target := newPipeline(t, chainSource(), pre, fastOptions())

	result := o.Run(context.Background())
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	if result.Summary.CreatedCount != 1 || result.Summary.SkippedCount != 1 {
		t.Fatalf("summary = %+v, want 1 created 1 skipped", result.Summary)
	}

	snap := targetSnapshot(t, target)
	for _, tag := range snap.Tags {
		if len(tag.FiringTriggerID) != 1 || tag.FiringTriggerID[0] != "tgt-t1-pre" {
			t.Errorf("firing triggers = %v, want the pre-existing trigger id", tag.FiringTriggerID)
		}
	}
}

func TestRunTemplateTypeRemapEndToEnd(t *testing.T) {
	src := &entity.Snapshot{
		Workspace: sourceWorkspace(),
		Templates: []*entity.Template{{
			TemplateID: "195", Name: "Pixel",
			TemplateData: "___INFO___\n{\"id\": \"cvt_KDDGR\"}\n",
		}},
		Tags: []*entity.Tag{{
			TagID: "src-a", Name: "Pixel - Purchase", Type: "cvt_172990757_195",
		}},
	}
	o, target := newPipeline(t, src, nil, fastOptions())

	result := o.Run(context.Background())
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}

	snap := targetSnapshot(t, target)
	if len(snap.Templates) != 1 {
		t.Fatalf("templates = %d, want 1", len(snap.Templates))
	}
	want := entity.TypeString("210926331", snap.Templates[0].TemplateID)
	for _, tag := range snap.Tags {
		if tag.Type != want {
			t.Errorf("tag type = %s, want %s", tag.Type, want)
		}
	}
}

func TestRunCycleFailsAnalysis(t *testing.T) {
	src := &entity.Snapshot{
		Workspace: sourceWorkspace(),
		Tags: []*entity.Tag{
			{TagID: "1", Name: "Tag A", Type: "html",
				SetupTag: []entity.TagReference{{TagName: "Tag B"}}},
			{TagID: "2", Name: "Tag B", Type: "html",
				SetupTag: []entity.TagReference{{TagName: "Tag A"}}},
		},
	}
	o, target := newPipeline(t, src, nil, fastOptions())

	result := o.Run(context.Background())
	if result.Success {
		t.Fatal("cycle accepted")
	}
	if len(result.Errors) != 1 || result.Errors[0].Kind != ErrCircularDependency {
		t.Fatalf("errors = %v, want one circular_dependency", result.Errors)
	}
	if !strings.Contains(result.Errors[0].Message, "Tag A") {
		t.Errorf("error message %q does not name the cycle", result.Errors[0].Message)
	}
	if snap := targetSnapshot(t, target); snap.Count() != 0 {
		t.Errorf("target has %d entities, want none after failed analysis", snap.Count())
	}
}

// A run whose only error is a recoverable duplicate still succeeds.
func TestRunDuplicateNameStillSucceeds(t *testing.T) {
	opts := fastOptions()
	opts.SkipExisting = false
	o, _ := newPipeline(t, chainSource(), &entity.Snapshot{
		Workspace: targetWorkspace(),
		Triggers: []*entity.Trigger{{
			TriggerID: "tgt-t1-pre", Name: "Click", Type: entity.TriggerTypeCustomEvent,
		}},
	}, opts)

	result := o.Run(context.Background())
	if !result.Success {
		t.Fatalf("success = false with only recoverable errors: %+v", result.Errors)
	}
	if len(result.Errors) != 1 || result.Errors[0].Kind != ErrDuplicateName || !result.Errors[0].Recoverable {
		t.Fatalf("errors = %+v, want one recoverable duplicate_name", result.Errors)
	}
	if result.Summary.CreatedCount != 1 {
		t.Errorf("created = %d, want only the tag", result.Summary.CreatedCount)
	}
}

func TestRunDryRunPlansWithoutCreating(t *testing.T) {
	opts := fastOptions()
	opts.DryRun = true
	o, target := newPipeline(t, chainSource(), nil, opts)

	result := o.Run(context.Background())
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	if result.Plan == nil || result.Plan.CreateCount() != 2 {
		t.Fatalf("plan = %+v, want 2 creates", result.Plan)
	}
	if result.Summary.ExpectedCount != 2 || result.Summary.CreatedCount != 0 {
		t.Errorf("summary = %+v, want expected=2 created=0", result.Summary)
	}
	if snap := targetSnapshot(t, target); snap.Count() != 0 {
		t.Errorf("dry run created %d entities", snap.Count())
	}
}

func TestRunValidationReport(t *testing.T) {
	opts := fastOptions()
	opts.Validate = true
	o, _ := newPipeline(t, chainSource(), nil, opts)

	result := o.Run(context.Background())
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	if result.ValidationReport == nil {
		t.Fatal("validation report missing")
	}
	if !result.ValidationReport.Success {
		t.Errorf("report = %+v, want pass", result.ValidationReport)
	}
	if result.ValidationReport.Summary.ExpectedCount != 2 ||
		result.ValidationReport.Summary.ActualCount != 2 {
		t.Errorf("report summary = %+v", result.ValidationReport.Summary)
	}
}

func TestRunNamingDegradesOnEmptyTarget(t *testing.T) {
	opts := fastOptions()
	opts.LearnNaming = true
	o, _ := newPipeline(t, chainSource(), nil, opts)

	result := o.Run(context.Background())
	if !result.Success {
		t.Fatalf("result = %+v, want success despite unlearnable convention", result)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "naming convention") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want a naming degradation notice", result.Warnings)
	}
}

func TestRunRejectsTemplatePlanWhenUnsupported(t *testing.T) {
	src := &entity.Snapshot{
		Workspace: sourceWorkspace(),
		Templates: []*entity.Template{{TemplateID: "195", Name: "Pixel"}},
	}
	source := backend.NewInMemory(sourceWorkspace(), "src")
	source.Seed(src)
	target := backend.NewInMemory(targetWorkspace(), "tgt")
	target.DisableTemplates()
	o := NewOrchestrator(source, target, nil, fastOptions(), nil, discardLogger())

	result := o.Run(context.Background())
	if result.Success {
		t.Fatal("template plan accepted against incapable target")
	}
	if len(result.Errors) != 1 || result.Errors[0].Kind != ErrInvalidInput {
		t.Fatalf("errors = %v, want one invalid_input", result.Errors)
	}
}

func TestRunCancelledContext(t *testing.T) {
	o, target := newPipeline(t, chainSource(), nil, fastOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := o.Run(ctx)
	if result.Success {
		t.Fatal("cancelled run reported success")
	}
	if len(result.Errors) != 1 || result.Errors[0].Kind != ErrWorkflowAborted {
		t.Fatalf("errors = %v, want one workflow_aborted", result.Errors)
	}
	if snap := targetSnapshot(t, target); snap.Count() != 0 {
		t.Errorf("cancelled run created %d entities", snap.Count())
	}
}
