package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteIsTotal(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		comparison bool
		want       Branch
	}{
		{"negative count", -1, false, BranchNoTargets},
		{"negative count comparison", -1, true, BranchNoTargets},
		{"zero targets", 0, false, BranchNoTargets},
		{"zero targets comparison flag ignored", 0, true, BranchNoTargets},
		{"one target", 1, false, BranchSingleTarget},
		{"one target comparison flag ignored", 1, true, BranchSingleTarget},
		{"two targets", 2, false, BranchMultiTargetFanout},
		{"two targets comparison", 2, true, BranchMultiTargetComparison},
		{"many targets", 7, false, BranchMultiTargetFanout},
		{"many targets comparison", 7, true, BranchMultiTargetComparison},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Route(tt.count, tt.comparison))
		})
	}
}

func TestComparisonRequiresMultipleTargets(t *testing.T) {
	for count := -2; count <= 10; count++ {
		got := Route(count, true)
		if count > 1 {
			assert.Equal(t, BranchMultiTargetComparison, got, "count=%d", count)
		} else {
			assert.NotEqual(t, BranchMultiTargetComparison, got, "count=%d", count)
		}
	}
}

func TestBranchString(t *testing.T) {
	assert.Equal(t, "no_targets", BranchNoTargets.String())
	assert.Equal(t, "single_target", BranchSingleTarget.String())
	assert.Equal(t, "multi_target_comparison", BranchMultiTargetComparison.String())
	assert.Equal(t, "multi_target_fanout", BranchMultiTargetFanout.String())
	assert.Equal(t, "unknown", Branch(42).String())
}
