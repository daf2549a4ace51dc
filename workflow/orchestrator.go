package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/c360studio/tagmirror/backend"
	"github.com/c360studio/tagmirror/entity"
	"github.com/c360studio/tagmirror/graph"
	"github.com/c360studio/tagmirror/idmap"
	"github.com/c360studio/tagmirror/metrics"
	"github.com/c360studio/tagmirror/naming"
	"github.com/c360studio/tagmirror/workflow/validation"
)

// Summary carries the headline counts of a replication run.
type Summary struct {
	ExpectedCount int `json:"expectedCount"`
	CreatedCount  int `json:"createdCount"`
	SkippedCount  int `json:"skippedCount"`
	FailedCount   int `json:"failedCount"`
}

// Result is the final outcome of a replication session.
type Result struct {
	Success          bool               `json:"success"`
	SessionID        string             `json:"sessionId"`
	SourceWorkspace  string             `json:"sourceWorkspace"`
	TargetWorkspace  string             `json:"targetWorkspace"`
	Duration         time.Duration      `json:"duration"`
	Summary          Summary            `json:"summary"`
	Created          []CreatedEntity    `json:"createdEntities"`
	IDMapping        []idmap.Entry      `json:"idMapping,omitempty"`
	Plan             *Plan              `json:"plan,omitempty"`
	ValidationReport *validation.Report `json:"validationReport,omitempty"`
	Errors           []*Error           `json:"errors,omitempty"`
	Warnings         []string           `json:"warnings,omitempty"`
}

// Orchestrator drives one replication session through its phases.
type Orchestrator struct {
	source  backend.Backend
	target  backend.Backend
	catalog *entity.Catalog
	opts    Options
	sink    EventSink
	logger  *slog.Logger

	sessions *Registry
	mappers  *idmap.Registry
}

// NewOrchestrator wires an orchestrator. A nil catalog falls back to the
// built-in event table; a nil sink disables event emission.
func NewOrchestrator(source, target backend.Backend, catalog *entity.Catalog, opts Options, sink EventSink, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if catalog == nil {
		catalog = entity.NewCatalog(logger)
	}
	return &Orchestrator{
		source:   source,
		target:   target,
		catalog:  catalog,
		opts:     opts.normalize(),
		sink:     sink,
		logger:   logger,
		sessions: DefaultRegistry,
		mappers:  idmap.DefaultRegistry,
	}
}

// Run executes the pipeline: preload, analyze, optionally learn naming,
// plan, build, optionally validate. Fatal errors move the session to the
// error phase and produce an error-shaped result.
func (o *Orchestrator) Run(ctx context.Context) *Result {
	session := NewSession()
	o.sessions.Add(session)
	mapper := o.mappers.For(session.ID())
	defer func() {
		o.sessions.Remove(session.ID())
		o.mappers.Release(session.ID())
	}()

	emitter := NewEmitter(o.sink, session.ID(), o.logger)
	result := &Result{
		SessionID:       session.ID(),
		SourceWorkspace: o.source.Workspace().Path(),
		TargetWorkspace: o.target.Workspace().Path(),
	}

	metrics.SessionStarted()
	emitter.Emit(ctx, EventWorkflowStarted, map[string]any{
		"source": result.SourceWorkspace,
		"target": result.TargetWorkspace,
	})

	o.logger.Info("replication started",
		"session_id", session.ID(),
		"source", result.SourceWorkspace,
		"target", result.TargetWorkspace)

	run := func() *Error {
		// Preload both workspaces once; the builder and planner work
		// against these snapshots.
		src, err := backend.Snapshot(ctx, o.source, backend.ListOptions{})
		if err != nil {
			return WrapError("orchestrator", err)
		}
		target, err := backend.Snapshot(ctx, o.target, backend.ListOptions{Refresh: true})
		if err != nil {
			return WrapError("orchestrator", err)
		}

		analysis, werr := o.analyzePhase(ctx, session, emitter, src, result)
		if werr != nil {
			return werr
		}

		if o.opts.LearnNaming {
			if werr := o.namingPhase(ctx, session, emitter, src, target, result); werr != nil {
				return werr
			}
		}

		plan, werr := o.planPhase(ctx, session, emitter, analysis, src, target, result)
		if werr != nil {
			return werr
		}
		result.Plan = plan
		result.Summary.ExpectedCount = len(plan.Steps)

		if o.opts.DryRun {
			o.logger.Info("dry run, stopping after planning", "session_id", session.ID())
			return nil
		}

		if werr := o.buildPhase(ctx, session, emitter, mapper, plan, src, result); werr != nil {
			return werr
		}

		if o.opts.Validate {
			if werr := o.validatePhase(ctx, session, emitter, mapper, src, result); werr != nil {
				return werr
			}
		}
		return nil
	}

	if werr := run(); werr != nil {
		session.Fail(werr)
		result.Errors = append(result.Errors, werr)
		result.Success = false
		result.Warnings = append(result.Warnings, session.Warnings()...)
		result.Duration = session.Duration()
		result.IDMapping = mapper.Entries()
		metrics.SessionFinished("error")
		emitter.Emit(ctx, EventWorkflowFailed, map[string]any{
			"error": werr.Error(),
			"kind":  string(werr.Kind),
		})
		o.logger.Error("replication failed",
			"session_id", session.ID(),
			"kind", string(werr.Kind),
			"error", werr.Message)
		return result
	}

	if err := session.Transition(PhaseCompleted); err != nil {
		o.logger.Warn("completion transition rejected", "error", err.Error())
	}
	// Recoverable errors (duplicate names) are record-and-continue; only
	// fatal errors fail the run.
	fatal := 0
	for _, e := range result.Errors {
		if !e.Recoverable {
			fatal++
		}
	}
	result.Success = fatal == 0
	result.Warnings = append(result.Warnings, session.Warnings()...)
	result.Duration = session.Duration()
	result.IDMapping = mapper.Entries()

	outcome := "success"
	if !result.Success {
		outcome = "error"
	}
	metrics.SessionFinished(outcome)
	emitter.Emit(ctx, EventWorkflowCompleted, map[string]any{
		"created": result.Summary.CreatedCount,
		"skipped": result.Summary.SkippedCount,
		"failed":  result.Summary.FailedCount,
	})
	o.logger.Info("replication finished",
		"session_id", session.ID(),
		"success", result.Success,
		"created", result.Summary.CreatedCount,
		"skipped", result.Summary.SkippedCount,
		"duration", result.Duration.String())
	return result
}

// enterPhase transitions the session, emits the change, and returns a
// closure observing the phase duration.
func (o *Orchestrator) enterPhase(ctx context.Context, session *Session, emitter *Emitter, next Phase) (func(), *Error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(ErrWorkflowAborted, "orchestrator", "cancelled: "+err.Error())
	}
	from := session.Phase()
	if err := session.Transition(next); err != nil {
		var we *Error
		if e, ok := err.(*Error); ok {
			we = e
		} else {
			we = NewError(ErrStateInvalid, "orchestrator", err.Error())
		}
		return nil, we
	}
	emitter.PhaseChanged(ctx, from, next)
	emitter.Progress(ctx, session.Progress())
	start := time.Now()
	return func() {
		metrics.PhaseObserved(next.String(), time.Since(start).Seconds())
	}, nil
}

func (o *Orchestrator) analyzePhase(ctx context.Context, session *Session, emitter *Emitter, src *entity.Snapshot, result *Result) (*graph.Analysis, *Error) {
	done, werr := o.enterPhase(ctx, session, emitter, PhaseAnalyzing)
	if werr != nil {
		return nil, werr
	}
	defer done()

	session.SetSteps(0, src.Count(), "resolving dependencies")
	analysis, err := graph.NewResolver(o.catalog, o.logger).Analyze(src)
	if err != nil {
		kind := ErrAnalysisFailed
		var cyc *graph.CycleError
		if errors.As(err, &cyc) {
			kind = ErrCircularDependency
		}
		return nil, NewError(kind, "resolver", err.Error())
	}
	session.AddWarnings(analysis.Warnings)
	session.SetSteps(src.Count(), src.Count(), "dependencies resolved")
	emitter.Progress(ctx, session.Progress())
	o.logger.Info("analysis complete",
		"session_id", session.ID(),
		"entities", src.Count(),
		"edges", analysis.Graph.EdgeCount(),
		"warnings", len(analysis.Warnings))
	return analysis, nil
}

// namingPhase learns the target's naming convention and derives overrides
// for source names that do not conform. Unlearnable conventions degrade to
// keeping source names.
func (o *Orchestrator) namingPhase(ctx context.Context, session *Session, emitter *Emitter, src, target *entity.Snapshot, result *Result) *Error {
	done, werr := o.enterPhase(ctx, session, emitter, PhaseNaming)
	if werr != nil {
		return werr
	}
	defer done()

	targetNames := make([]string, 0, len(target.Tags))
	for _, t := range target.Tags {
		targetNames = append(targetNames, t.Name)
	}
	if len(targetNames) == 0 {
		session.AddWarning("target has no tags to learn a naming convention from")
		return nil
	}

	targetPattern := naming.ExtractPattern(targetNames)
	if targetPattern.Confidence < 1.0 {
		session.AddWarning("target naming convention is inconsistent, keeping source names")
		return nil
	}

	sourceNames := make([]string, 0, len(src.Tags))
	for _, t := range src.Tags {
		sourceNames = append(sourceNames, t.Name)
	}
	sourcePattern := naming.ExtractPattern(sourceNames)

	if o.opts.NameOverrides == nil {
		o.opts.NameOverrides = make(map[string]string)
	}
	restyled := 0
	for _, t := range src.Tags {
		if _, ok := o.opts.NameOverrides[t.Name]; ok {
			continue
		}
		if targetPattern.Validate(t.Name) {
			continue
		}
		values, err := sourcePattern.ExtractVariables(t.Name)
		if err != nil {
			continue
		}
		styled, err := targetPattern.Generate(values)
		if err != nil || !targetPattern.Validate(styled) {
			continue
		}
		o.opts.NameOverrides[t.Name] = styled
		restyled++
	}
	o.logger.Info("naming convention learned",
		"session_id", session.ID(),
		"template", targetPattern.Template(),
		"restyled", restyled)
	return nil
}

func (o *Orchestrator) planPhase(ctx context.Context, session *Session, emitter *Emitter, analysis *graph.Analysis, src, target *entity.Snapshot, result *Result) (*Plan, *Error) {
	done, werr := o.enterPhase(ctx, session, emitter, PhasePlanning)
	if werr != nil {
		return nil, werr
	}
	defer done()

	plan, err := NewPlanner(o.logger).Build(analysis, src, target, o.opts)
	if err != nil {
		return nil, WrapError("planner", err)
	}
	session.AddWarnings(plan.Warnings)

	if plan.CreateCount() > 0 && !o.target.CanCreateTemplates() {
		for _, s := range plan.Steps {
			if s.Action == ActionCreate && s.Entity.Kind == entity.KindTemplate {
				return nil, NewError(ErrInvalidInput, "planner",
					"target backend cannot create templates but the plan requires it")
			}
		}
	}
	return plan, nil
}

func (o *Orchestrator) buildPhase(ctx context.Context, session *Session, emitter *Emitter, mapper *idmap.Mapper, plan *Plan, src *entity.Snapshot, result *Result) *Error {
	done, werr := o.enterPhase(ctx, session, emitter, PhaseBuilding)
	if werr != nil {
		return werr
	}
	defer done()

	builder := NewBuilder(o.target, mapper, o.opts, emitter, o.logger)
	builder.OnProgress(func(current, total int, description string) {
		session.SetSteps(current, total, description)
		emitter.Progress(ctx, session.Progress())
	})

	buildResult := builder.Execute(ctx, plan, src)
	result.Created = buildResult.Created
	result.Summary.CreatedCount = len(buildResult.Created)
	result.Summary.SkippedCount = buildResult.Skipped
	result.Summary.FailedCount = len(buildResult.Errors)
	result.Warnings = append(result.Warnings, buildResult.Warnings...)

	for _, e := range buildResult.Errors {
		if e.Recoverable {
			result.Errors = append(result.Errors, e)
		}
	}
	if !buildResult.Success {
		for _, e := range buildResult.Errors {
			if !e.Recoverable {
				if buildResult.Rollback != nil {
					e.Details = map[string]any{
						"rollback": buildResult.Rollback,
					}
				}
				return e
			}
		}
		return NewError(ErrCreationFailed, "builder", "build failed")
	}
	return nil
}

func (o *Orchestrator) validatePhase(ctx context.Context, session *Session, emitter *Emitter, mapper *idmap.Mapper, src *entity.Snapshot, result *Result) *Error {
	done, werr := o.enterPhase(ctx, session, emitter, PhaseValidating)
	if werr != nil {
		return werr
	}
	defer done()

	fresh, err := backend.Snapshot(ctx, o.target, backend.ListOptions{Refresh: true})
	if err != nil {
		return WrapError("validator", err)
	}
	report := validation.PostValidate(src, fresh, mapper)
	report.Warnings = append(report.Warnings, session.Warnings()...)
	result.ValidationReport = report
	if !report.Success {
		return NewError(ErrValidationFailed, "validator",
			"post-build validation found missing entities or broken references")
	}
	return nil
}
