package workflow

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Progress is a point-in-time view of how far a session has got.
type Progress struct {
	Phase       Phase  `json:"phase"`
	CurrentStep int    `json:"currentStep"`
	TotalSteps  int    `json:"totalSteps"`
	Description string `json:"description"`
	Percentage  int    `json:"percentage"`
}

// Session tracks one replication run: its phase, step counters, and the
// errors and warnings accumulated along the way. All methods are safe for
// concurrent use.
type Session struct {
	mu          sync.RWMutex
	id          string
	phase       Phase
	startedAt   time.Time
	currentStep int
	totalSteps  int
	description string
	errors      []*Error
	warnings    []string
}

// NewSession starts an idle session with a fresh id.
func NewSession() *Session {
	return &Session{
		id:        uuid.NewString(),
		phase:     PhaseIdle,
		startedAt: time.Now(),
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Transition moves the session forward. Illegal transitions are rejected
// with a state_invalid error and leave the session unchanged. A successful
// transition resets the step counters.
func (s *Session) Transition(next Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.phase.CanTransitionTo(next) {
		return NewError(ErrStateInvalid, "session",
			fmt.Sprintf("cannot transition from %s to %s", s.phase, next))
	}
	s.phase = next
	s.currentStep = 0
	s.totalSteps = 0
	s.description = ""
	return nil
}

// Fail records a fatal error and moves the session to the error phase.
func (s *Session) Fail(err *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.CanTransitionTo(PhaseError) {
		s.phase = PhaseError
	}
	s.errors = append(s.errors, err)
}

// SetSteps updates the step counters inside the current phase.
func (s *Session) SetSteps(current, total int, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentStep = current
	s.totalSteps = total
	s.description = description
}

// AddWarning records one warning.
func (s *Session) AddWarning(warning string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, warning)
}

// AddWarnings records a batch of warnings.
func (s *Session) AddWarnings(warnings []string) {
	if len(warnings) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, warnings...)
}

// Errors returns a copy of the recorded errors.
func (s *Session) Errors() []*Error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Error(nil), s.errors...)
}

// Warnings returns a copy of the recorded warnings.
func (s *Session) Warnings() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.warnings...)
}

// Duration returns the elapsed time since the session started.
func (s *Session) Duration() time.Duration {
	return time.Since(s.startedAt)
}

// Progress computes the session-wide completion percentage from the phase
// weights and the in-phase step fraction.
func (s *Session) Progress() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fraction := 0.0
	if s.totalSteps > 0 {
		fraction = float64(s.currentStep) / float64(s.totalSteps)
	}
	return Progress{
		Phase:       s.phase,
		CurrentStep: s.currentStep,
		TotalSteps:  s.totalSteps,
		Description: s.description,
		Percentage:  percentComplete(s.phase, fraction),
	}
}

// Registry tracks live sessions by id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
}

// Get looks a session up by id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove drops a session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// IDs returns the ids of all live sessions.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// DefaultRegistry is the process-wide session registry.
var DefaultRegistry = NewRegistry()
