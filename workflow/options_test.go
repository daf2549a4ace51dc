package workflow

import "testing"

func TestOptionsSelects(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
		entity  string
		want    bool
	}{
		{"no filters", nil, nil, "GA4 - Click", true},
		{"include match", []string{"GA4*"}, nil, "GA4 - Click", true},
		{"include miss", []string{"GA4*"}, nil, "FB - Click", false},
		{"exclude wins", []string{"GA4*"}, []string{"*Staging*"}, "GA4 - Staging - Click", false},
		{"exclude only", nil, []string{"Debug*"}, "Debug Console", false},
		{"exclude only pass", nil, []string{"Debug*"}, "GA4 - Click", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Options{Include: tt.include, Exclude: tt.exclude}
			if got := o.Selects(tt.entity); got != tt.want {
				t.Errorf("Selects(%q) = %v, want %v", tt.entity, got, tt.want)
			}
		})
	}
}

func TestOptionsValidatePatterns(t *testing.T) {
	o := Options{Include: []string{"GA4*"}, Exclude: []string{"[bad"}}
	if err := o.ValidatePatterns(); err == nil {
		t.Error("invalid glob accepted")
	}
	o = Options{Include: []string{"**/GA4*"}}
	if err := o.ValidatePatterns(); err != nil {
		t.Errorf("valid glob rejected: %v", err)
	}
}

func TestOptionsTargetName(t *testing.T) {
	o := Options{
		NameOverrides: map[string]string{"GA4 - Click": "GA4 - Click v2"},
		NamePrefix:    "[copy] ",
		NameSuffix:    " (mirrored)",
	}
	if got := o.TargetName("GA4 - Click"); got != "GA4 - Click v2" {
		t.Errorf("override lost: %q", got)
	}
	if got := o.TargetName("FB - Click"); got != "[copy] FB - Click (mirrored)" {
		t.Errorf("prefix/suffix form = %q", got)
	}
	if got := (Options{}).TargetName("Plain"); got != "Plain" {
		t.Errorf("unchanged form = %q", got)
	}
}

func TestOptionsNormalizeDefaults(t *testing.T) {
	o := Options{}.normalize()
	if o.RequestDelay != DefaultRequestDelay || o.MaxRetries != DefaultMaxRetries || o.BackoffBase != DefaultBackoffBase {
		t.Errorf("normalize() = %+v", o)
	}
}
