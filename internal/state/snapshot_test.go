package state_test

import (
	"testing"

	"github.com/hazz-dev/healthwatch/internal/checker"
	"github.com/hazz-dev/healthwatch/internal/state"
)

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]*checker.Result // nil result = never checked
		want    state.Overall
	}{
		{
			name:    "all up",
			results: map[string]*checker.Result{"a": ptr(okResult("a")), "b": ptr(okResult("b"))},
			want:    state.OverallUp,
		},
		{
			name:    "all down",
			results: map[string]*checker.Result{"a": ptr(timeoutResult("a")), "b": ptr(statusResult("b", 500))},
			want:    state.OverallDown,
		},
		{
			name:    "two up one down",
			results: map[string]*checker.Result{"a": ptr(okResult("a")), "b": ptr(okResult("b")), "c": ptr(timeoutResult("c"))},
			want:    state.OverallDegraded,
		},
		{
			name:    "one up one unknown",
			results: map[string]*checker.Result{"a": ptr(okResult("a")), "b": nil},
			want:    state.OverallDegraded,
		},
		{
			name:    "all unknown",
			results: map[string]*checker.Result{"a": nil, "b": nil},
			want:    state.OverallDown,
		},
		{
			name:    "down and unknown",
			results: map[string]*checker.Result{"a": ptr(timeoutResult("a")), "b": nil},
			want:    state.OverallDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := make([]string, 0, len(tt.results))
			for n := range tt.results {
				names = append(names, n)
			}
			s := state.New(makeTargets(names...))
			for _, res := range tt.results {
				if res != nil {
					mustApply(t, s, *res)
				}
			}

			if got := s.Snapshot(checkedAt).Overall(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestOverallStatus_Empty(t *testing.T) {
	if got := state.OverallStatus(nil); got != state.OverallDown {
		t.Errorf("expected down for empty set, got %q", got)
	}
}

func ptr(r checker.Result) *checker.Result {
	return &r
}
