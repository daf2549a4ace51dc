package workflow

import (
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// DefaultRequestDelay spaces create calls to stay under write quotas.
	DefaultRequestDelay = 4 * time.Second
	// DefaultMaxRetries bounds retries of a rate-limited create.
	DefaultMaxRetries = 3
	// DefaultBackoffBase is the first retry delay; later retries double it.
	DefaultBackoffBase = time.Second
	// MaxBackoff caps the exponential backoff.
	MaxBackoff = 60 * time.Second
)

// Options tune one replication run.
type Options struct {
	// SkipExisting reuses target entities whose exact name already exists
	// instead of creating duplicates.
	SkipExisting bool `json:"skipExisting"`
	// LearnNaming restyles created names to the target's convention.
	LearnNaming bool `json:"learnNaming"`
	// Validate re-reads the target after the build and verifies the result.
	Validate bool `json:"validate"`
	// DryRun stops after planning.
	DryRun bool `json:"dryRun"`

	// NameOverrides maps source names to explicit target names. Overrides
	// win over prefix and suffix.
	NameOverrides map[string]string `json:"nameOverrides,omitempty"`
	// NamePrefix is prepended to every created entity name.
	NamePrefix string `json:"namePrefix,omitempty"`
	// NameSuffix is appended to every created entity name.
	NameSuffix string `json:"nameSuffix,omitempty"`

	// Include restricts replication to entities whose name matches one of
	// these glob patterns. Empty means all.
	Include []string `json:"include,omitempty"`
	// Exclude drops entities whose name matches one of these glob
	// patterns. Exclude wins over include.
	Exclude []string `json:"exclude,omitempty"`

	// RequestDelay is the minimum spacing between create calls.
	RequestDelay time.Duration `json:"requestDelay"`
	// MaxRetries bounds rate-limit retries per create.
	MaxRetries int `json:"maxRetries"`
	// BackoffBase is the first rate-limit backoff.
	BackoffBase time.Duration `json:"backoffBase"`
}

// DefaultOptions returns the standard run options.
func DefaultOptions() Options {
	return Options{
		SkipExisting: true,
		RequestDelay: DefaultRequestDelay,
		MaxRetries:   DefaultMaxRetries,
		BackoffBase:  DefaultBackoffBase,
	}
}

// normalize fills zero-valued pacing fields with the defaults.
func (o Options) normalize() Options {
	if o.RequestDelay <= 0 {
		o.RequestDelay = DefaultRequestDelay
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = DefaultBackoffBase
	}
	return o
}

// ValidatePatterns rejects malformed include and exclude globs up front,
// before any pattern silently matches nothing.
func (o Options) ValidatePatterns() error {
	for _, p := range o.Include {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid include pattern %q", p)
		}
	}
	for _, p := range o.Exclude {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	return nil
}

// Selects reports whether an entity name passes the include and exclude
// filters. Exclude wins; an empty include list admits everything.
func (o Options) Selects(name string) bool {
	for _, p := range o.Exclude {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return false
		}
	}
	if len(o.Include) == 0 {
		return true
	}
	for _, p := range o.Include {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// TargetName derives the name an entity will carry in the target: an
// explicit override when present, otherwise prefix + name + suffix.
func (o Options) TargetName(sourceName string) string {
	if override, ok := o.NameOverrides[sourceName]; ok {
		return override
	}
	return o.NamePrefix + sourceName + o.NameSuffix
}
