package entity

import (
	"strings"
	"testing"
)

func TestSnapshotValidateFilterConditionDepth(t *testing.T) {
	snap := &Snapshot{
		Triggers: []*Trigger{{
			TriggerID: "10", Name: "Click", Type: "click",
			Filter: []*Condition{{
				Type:      "equals",
				Parameter: []*Parameter{nested(4)},
			}},
		}},
	}

	err := snap.Validate()
	if err == nil {
		t.Fatal("depth-4 tree inside a filter condition accepted")
	}
	if !strings.Contains(err.Error(), "Click") {
		t.Errorf("error = %v, want the trigger named", err)
	}

	snap.Triggers[0].Filter[0].Parameter = []*Parameter{nested(3)}
	if err := snap.Validate(); err != nil {
		t.Errorf("depth-3 filter tree rejected: %v", err)
	}
}
