package entity

import (
	"reflect"
	"testing"
)

func nested(depth int) *Parameter {
	p := &Parameter{Type: ParameterTypeTemplate, Key: "leaf", Value: "v"}
	for i := 1; i < depth; i++ {
		p = &Parameter{Type: ParameterTypeList, Key: "level", List: []*Parameter{p}}
	}
	return p
}

func TestValidateParameterDepth(t *testing.T) {
	tests := []struct {
		name    string
		params  []*Parameter
		wantErr bool
	}{
		{
			name:    "flat parameters",
			params:  []*Parameter{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}},
			wantErr: false,
		},
		{
			name:    "depth exactly three",
			params:  []*Parameter{nested(3)},
			wantErr: false,
		},
		{
			name:    "depth four rejected",
			params:  []*Parameter{nested(4)},
			wantErr: true,
		},
		{
			name: "map children count toward depth",
			params: []*Parameter{{
				Type: ParameterTypeMap,
				Key:  "outer",
				Map: []*Parameter{{
					Type: ParameterTypeList,
					Key:  "middle",
					List: []*Parameter{{
						Type: ParameterTypeMap,
						Key:  "inner",
						Map:  []*Parameter{{Key: "leaf"}},
					}},
				}},
			}},
			wantErr: true,
		},
		{
			name:    "nil parameters",
			params:  nil,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateParameterDepth(tt.params)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateParameterDepth() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVariableRefs(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"no refs", "plain value", nil},
		{"single ref", "{{Page URL}}", []string{"Page URL"}},
		{"multiple refs", "{{Click ID}}-{{Page Path}}", []string{"Click ID", "Page Path"}},
		{"duplicates collapsed", "{{A}} and {{A}} and {{B}}", []string{"A", "B"}},
		{"unbalanced braces ignored", "{{open and }close}", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VariableRefs(tt.value)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("VariableRefs(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestParameterCloneIsDeep(t *testing.T) {
	orig := &Parameter{
		Type: ParameterTypeList,
		Key:  "outer",
		List: []*Parameter{{Key: "inner", Value: "before"}},
	}

	clone := orig.Clone()
	clone.List[0].Value = "after"

	if orig.List[0].Value != "before" {
		t.Errorf("clone mutated original: got %q", orig.List[0].Value)
	}
}

func TestConditionVariableRefs(t *testing.T) {
	conds := []*Condition{
		{Type: "equals", Parameter: []*Parameter{
			{Key: "arg0", Value: "{{Click Classes}}"},
			{Key: "arg1", Value: "cta-button"},
		}},
		{Type: "contains", Parameter: []*Parameter{
			{Key: "arg0", Value: "{{Page Path}}"},
			{Key: "arg1", Value: "{{Click Classes}}"},
		}},
	}

	got := ConditionVariableRefs(conds)
	want := []string{"Click Classes", "Page Path"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ConditionVariableRefs() = %v, want %v", got, want)
	}
}
