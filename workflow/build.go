package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360studio/tagmirror/backend"
	"github.com/c360studio/tagmirror/entity"
	"github.com/c360studio/tagmirror/idmap"
	"github.com/c360studio/tagmirror/metrics"
	"github.com/c360studio/tagmirror/transform"
)

// CreatedEntity records one successful creation.
type CreatedEntity struct {
	Kind     entity.Kind `json:"kind"`
	SourceID string      `json:"sourceId"`
	TargetID string      `json:"targetId"`
	Name     string      `json:"name"`
}

// RollbackFailure is one delete that failed during rollback.
type RollbackFailure struct {
	EntityID string      `json:"entityId"`
	Kind     entity.Kind `json:"kind"`
	Error    string      `json:"error"`
}

// RollbackResult summarizes a rollback pass.
type RollbackResult struct {
	Attempted int               `json:"attempted"`
	Succeeded int               `json:"succeeded"`
	Failed    []RollbackFailure `json:"failed,omitempty"`
	IsPartial bool              `json:"isPartial"`
}

// BuildResult is the outcome of executing a plan.
type BuildResult struct {
	Success        bool            `json:"success"`
	PartialSuccess bool            `json:"partialSuccess"`
	Created        []CreatedEntity `json:"created"`
	Skipped        int             `json:"skipped"`
	Errors         []*Error        `json:"errors,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
	Rollback       *RollbackResult `json:"rollback,omitempty"`
}

// Builder executes a plan against the target backend, one create at a
// time, pacing requests to stay under the backend's rate limit.
type Builder struct {
	backend backend.Backend
	mapper  *idmap.Mapper
	opts    Options
	limiter *rate.Limiter
	emitter *Emitter
	logger  *slog.Logger

	// sleep is the backoff wait, injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error

	// progress is invoked after every step; may be nil.
	progress func(current, total int, description string)
}

// NewBuilder builds a builder. The limiter starts with one free token, so
// the first create incurs no delay.
func NewBuilder(b backend.Backend, mapper *idmap.Mapper, opts Options, emitter *Emitter, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.normalize()
	return &Builder{
		backend: b,
		mapper:  mapper,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.RequestDelay), 1),
		emitter: emitter,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// OnProgress registers a per-step progress callback. Callbacks run
// synchronously and must not block.
func (b *Builder) OnProgress(fn func(current, total int, description string)) {
	b.progress = fn
}

// Execute runs the plan in order. Duplicate-name conflicts are recorded
// and skipped; exhausted rate-limit retries abort without rollback; any
// other creation failure rolls back everything created in this run.
func (b *Builder) Execute(ctx context.Context, plan *Plan, src *entity.Snapshot) *BuildResult {
	result := &BuildResult{}
	total := len(plan.Steps)

	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			b.logger.Warn("build cancelled", "step", i+1, "total", total)
			result.Rollback = b.rollback(result.Created)
			result.Created = nil
			result.Errors = append(result.Errors, NewError(ErrWorkflowAborted, "builder",
				"build cancelled: "+err.Error()))
			return finish(result)
		}

		desc := fmt.Sprintf("%s %s %q", step.Action, step.Entity.Kind, step.NewName)
		if b.progress != nil {
			b.progress(i+1, total, desc)
		}

		if step.Action == ActionSkip {
			b.applySkip(ctx, step, result)
			continue
		}

		abort := b.applyCreate(ctx, step, src, result)
		if abort {
			return finish(result)
		}
	}

	return finish(result)
}

// finish derives the summary flags.
func finish(r *BuildResult) *BuildResult {
	fatal := 0
	for _, e := range r.Errors {
		if !e.Recoverable {
			fatal++
		}
	}
	r.Success = fatal == 0
	r.PartialSuccess = len(r.Created) > 0 && len(r.Errors) > 0
	return r
}

// applySkip binds the reused target entity. SKIP without a target id is
// logged and binds nothing.
func (b *Builder) applySkip(ctx context.Context, step Step, result *BuildResult) {
	h := step.Entity.Header()
	if step.TargetID == "" {
		b.logger.Warn("skip step without target id", "kind", h.Kind.String(), "name", h.Name)
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"%s %q skipped without a target binding", h.Kind, h.Name))
		return
	}

	if err := b.mapper.Bind(h.Kind, h.ID, step.TargetID, step.NewName); err != nil {
		result.Warnings = append(result.Warnings, err.Error())
		return
	}
	if h.Kind == entity.KindTemplate {
		b.registerTemplateTypes(step, step.TargetID, result)
	}
	result.Skipped++
	b.emitter.Emit(ctx, EventEntitySkipped, map[string]any{
		"kind":     h.Kind.String(),
		"name":     step.NewName,
		"targetId": step.TargetID,
	})
}

// applyCreate transforms and creates one entity. The returned flag tells
// the caller to abort the build.
func (b *Builder) applyCreate(ctx context.Context, step Step, src *entity.Snapshot, result *BuildResult) (abort bool) {
	h := step.Entity.Header()

	payload, warnings := b.preparePayload(step, src)
	result.Warnings = append(result.Warnings, warnings...)

	// Duplicate probe against the live target before spending a create.
	existing, found, err := backend.FindByName(ctx, b.backend, h.Kind, step.NewName)
	if err != nil {
		result.Errors = append(result.Errors, WrapError("builder", err))
		result.Rollback = b.rollback(result.Created)
		result.Created = nil
		return true
	}
	if found {
		b.logger.Warn("duplicate name in target, skipping create",
			"kind", h.Kind.String(), "name", step.NewName, "target_id", existing)
		result.Errors = append(result.Errors, &Error{
			Kind:        ErrDuplicateName,
			Component:   "builder",
			Message:     fmt.Sprintf("%s %q already exists in target", h.Kind, step.NewName),
			Recoverable: true,
		})
		return false
	}

	created, err := b.createWithRetry(ctx, h.Kind, payload)
	if err != nil {
		result.Errors = append(result.Errors, WrapError("builder", err))
		b.emitter.Emit(ctx, EventEntityFailed, map[string]any{
			"kind":  h.Kind.String(),
			"name":  step.NewName,
			"error": err.Error(),
		})
		if backend.IsRateLimit(err) {
			// No rollback: the partial result lets the operator resume
			// once the quota recovers.
			b.logger.Error("rate limit retries exhausted, aborting build",
				"kind", h.Kind.String(), "name", step.NewName)
			return true
		}
		result.Rollback = b.rollback(result.Created)
		result.Created = nil
		return true
	}

	targetID := created.Header().ID
	if err := b.mapper.Bind(h.Kind, h.ID, targetID, step.NewName); err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	}
	if h.Kind == entity.KindTemplate {
		b.registerTemplateTypes(step, targetID, result)
	}

	result.Created = append(result.Created, CreatedEntity{
		Kind: h.Kind, SourceID: h.ID, TargetID: targetID, Name: step.NewName,
	})
	metrics.EntityCreated(h.Kind.String())
	b.emitter.Emit(ctx, EventEntityCreated, map[string]any{
		"kind":     h.Kind.String(),
		"name":     step.NewName,
		"sourceId": h.ID,
		"targetId": targetID,
	})
	return false
}

// preparePayload runs the per-kind transform and applies the target name.
func (b *Builder) preparePayload(step Step, src *entity.Snapshot) (entity.Entity, []string) {
	var warnings []string
	switch step.Entity.Kind {
	case entity.KindTag:
		tag, w := transform.PrepareTag(step.Entity.Tag, src, b.mapper)
		tag.Name = step.NewName
		return entity.FromTag(tag), w
	case entity.KindTrigger:
		trigger := transform.PrepareTrigger(step.Entity.Trigger)
		trigger.Name = step.NewName
		return entity.FromTrigger(trigger), nil
	case entity.KindVariable:
		v, w := transform.PrepareVariable(step.Entity.Variable, b.mapper)
		v.Name = step.NewName
		return entity.FromVariable(v), w
	case entity.KindTemplate:
		tpl := transform.PrepareTemplate(step.Entity.Template, b.mapper)
		tpl.Name = step.NewName
		return entity.FromTemplate(tpl), nil
	}
	return step.Entity, warnings
}

// createWithRetry paces the create call and retries rate-limit responses
// with exponential backoff.
func (b *Builder) createWithRetry(ctx context.Context, kind entity.Kind, payload entity.Entity) (entity.Entity, error) {
	var lastErr error
	for attempt := 0; attempt <= b.opts.MaxRetries; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return entity.Entity{}, err
		}

		created, err := backend.CreateEntity(ctx, b.backend, payload)
		if err == nil {
			return created, nil
		}
		lastErr = err
		if !backend.IsRateLimit(err) {
			return entity.Entity{}, err
		}
		metrics.RateLimitHit()
		if attempt == b.opts.MaxRetries {
			break
		}

		backoff := b.opts.BackoffBase << attempt
		if backoff > MaxBackoff {
			backoff = MaxBackoff
		}
		b.logger.Warn("rate limited, backing off",
			"kind", kind.String(),
			"attempt", attempt+1,
			"backoff", backoff.String())
		if err := b.sleep(ctx, backoff); err != nil {
			return entity.Entity{}, err
		}
	}
	return entity.Entity{}, lastErr
}

// registerTemplateTypes binds every annotated source type string to the
// target's container-scoped form.
func (b *Builder) registerTemplateTypes(step Step, targetID string, result *BuildResult) {
	if step.Templates == nil {
		return
	}
	targetForm := entity.TypeString(b.backend.Workspace().ContainerID, targetID)
	for _, sourceType := range step.Templates.SourceTypes {
		if sourceType == targetForm {
			continue
		}
		if err := b.mapper.BindTemplateType(sourceType, targetForm); err != nil {
			result.Warnings = append(result.Warnings, err.Error())
		}
	}
}

// rollback deletes created entities in reverse creation order. Failures
// are collected; a partial rollback is reported, not retried.
func (b *Builder) rollback(created []CreatedEntity) *RollbackResult {
	result := &RollbackResult{Attempted: len(created)}
	if len(created) == 0 {
		return result
	}
	b.logger.Warn("rolling back created entities", "count", len(created))
	metrics.RollbackTriggered()

	// Deletes run under a fresh context: rollback must proceed even when
	// the build was cancelled.
	ctx := context.Background()
	for i := len(created) - 1; i >= 0; i-- {
		c := created[i]
		if err := backend.DeleteEntity(ctx, b.backend, c.Kind, c.TargetID); err != nil {
			b.logger.Error("rollback delete failed",
				"kind", c.Kind.String(), "target_id", c.TargetID, "error", err.Error())
			result.Failed = append(result.Failed, RollbackFailure{
				EntityID: c.TargetID, Kind: c.Kind, Error: err.Error(),
			})
			continue
		}
		result.Succeeded++
	}
	result.IsPartial = len(result.Failed) > 0
	return result
}

// BuildSingle creates one entity outside a plan run: same duplicate probe,
// transform, and pacing, but failures never roll back peers.
func (b *Builder) BuildSingle(ctx context.Context, e entity.Entity, newName string, src *entity.Snapshot) (*CreatedEntity, error) {
	h := e.Header()
	if newName == "" {
		newName = h.Name
	}
	step := Step{Action: ActionCreate, Entity: e, NewName: newName}
	if h.Kind == entity.KindTemplate {
		step.Templates = templateRemap(src.Workspace.ContainerID, e.Template)
	}

	_, found, err := backend.FindByName(ctx, b.backend, h.Kind, newName)
	if err != nil {
		return nil, WrapError("builder", err)
	}
	if found {
		return nil, &Error{
			Kind:        ErrDuplicateName,
			Component:   "builder",
			Message:     fmt.Sprintf("%s %q already exists in target", h.Kind, newName),
			Recoverable: true,
		}
	}

	payload, _ := b.preparePayload(step, src)
	created, err := b.createWithRetry(ctx, h.Kind, payload)
	if err != nil {
		return nil, WrapError("builder", err)
	}

	targetID := created.Header().ID
	if err := b.mapper.Bind(h.Kind, h.ID, targetID, newName); err != nil {
		return nil, WrapError("builder", err)
	}
	if h.Kind == entity.KindTemplate {
		b.registerTemplateTypes(step, targetID, &BuildResult{})
	}
	metrics.EntityCreated(h.Kind.String())
	return &CreatedEntity{Kind: h.Kind, SourceID: h.ID, TargetID: targetID, Name: newName}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
