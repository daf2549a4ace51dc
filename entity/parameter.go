package entity

import (
	"fmt"
	"regexp"
)

// Parameter node kinds.
const (
	ParameterTypeTemplate = "template"
	ParameterTypeBoolean  = "boolean"
	ParameterTypeInteger  = "integer"
	ParameterTypeList     = "list"
	ParameterTypeMap      = "map"
)

// MaxParameterDepth is the maximum allowed nesting of list/map parameters.
// Deeper input is rejected at snapshot load time.
const MaxParameterDepth = 3

// Parameter is one node of the recursive parameter tree. Value strings may
// contain {{variable-name}} substitutions; those are name-based and are
// carried through replication untouched.
type Parameter struct {
	Type  string       `json:"type,omitempty"`
	Key   string       `json:"key,omitempty"`
	Value string       `json:"value,omitempty"`
	List  []*Parameter `json:"list,omitempty"`
	Map   []*Parameter `json:"map,omitempty"`
}

// Clone returns a deep copy of the parameter subtree.
func (p *Parameter) Clone() *Parameter {
	if p == nil {
		return nil
	}
	out := &Parameter{Type: p.Type, Key: p.Key, Value: p.Value}
	for _, c := range p.List {
		out.List = append(out.List, c.Clone())
	}
	for _, c := range p.Map {
		out.Map = append(out.Map, c.Clone())
	}
	return out
}

// CloneParameters deep-copies a parameter list.
func CloneParameters(params []*Parameter) []*Parameter {
	if params == nil {
		return nil
	}
	out := make([]*Parameter, 0, len(params))
	for _, p := range params {
		out = append(out, p.Clone())
	}
	return out
}

// WalkParameters visits every node of the parameter forest, parents before
// children.
func WalkParameters(params []*Parameter, fn func(*Parameter)) {
	for _, p := range params {
		if p == nil {
			continue
		}
		fn(p)
		WalkParameters(p.List, fn)
		WalkParameters(p.Map, fn)
	}
}

// FindParameter returns the first top-level parameter with the given key,
// or nil.
func FindParameter(params []*Parameter, key string) *Parameter {
	for _, p := range params {
		if p != nil && p.Key == key {
			return p
		}
	}
	return nil
}

// ValidateParameterDepth rejects parameter trees nested deeper than
// MaxParameterDepth. A flat parameter is depth 1.
func ValidateParameterDepth(params []*Parameter) error {
	return validateDepth(params, 1)
}

func validateDepth(params []*Parameter, depth int) error {
	for _, p := range params {
		if p == nil {
			continue
		}
		if depth > MaxParameterDepth {
			return fmt.Errorf("parameter %q exceeds maximum nesting depth %d", p.Key, MaxParameterDepth)
		}
		if len(p.List) > 0 {
			if err := validateDepth(p.List, depth+1); err != nil {
				return err
			}
		}
		if len(p.Map) > 0 {
			if err := validateDepth(p.Map, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// variableRefRe matches {{variable-name}} substitutions in literal values.
var variableRefRe = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// VariableRefs extracts the variable names referenced by a literal value.
// Duplicates are collapsed, order of first appearance is preserved.
func VariableRefs(value string) []string {
	matches := variableRefRe.FindAllStringSubmatch(value, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var names []string
	for _, m := range matches {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// ParameterVariableRefs collects every {{name}} reference found in a
// parameter forest, including filter condition parameters.
func ParameterVariableRefs(params []*Parameter) []string {
	seen := make(map[string]struct{})
	var names []string
	WalkParameters(params, func(p *Parameter) {
		for _, name := range VariableRefs(p.Value) {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	})
	return names
}

// ConditionVariableRefs collects {{name}} references from trigger filter
// predicates.
func ConditionVariableRefs(conds []*Condition) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, c := range conds {
		if c == nil {
			continue
		}
		for _, name := range ParameterVariableRefs(c.Parameter) {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}
