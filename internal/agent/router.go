package agent

// Branch is the execution path selected for one turn.
type Branch int

const (
	// BranchNoTargets answers generically without party grounding.
	BranchNoTargets Branch = iota
	// BranchSingleTarget answers for exactly one party.
	BranchSingleTarget
	// BranchMultiTargetComparison produces one directly contrasting answer.
	BranchMultiTargetComparison
	// BranchMultiTargetFanout runs an independent single-target sub-flow per
	// party; results meet again only at the title stage.
	BranchMultiTargetFanout
)

func (b Branch) String() string {
	switch b {
	case BranchNoTargets:
		return "no_targets"
	case BranchSingleTarget:
		return "single_target"
	case BranchMultiTargetComparison:
		return "multi_target_comparison"
	case BranchMultiTargetFanout:
		return "multi_target_fanout"
	default:
		return "unknown"
	}
}

// Route selects the branch for a turn. It is total: every (count, comparison)
// pair maps to exactly one branch, and comparison only matters with more than
// one target.
func Route(targetCount int, comparison bool) Branch {
	switch {
	case targetCount <= 0:
		return BranchNoTargets
	case targetCount == 1:
		return BranchSingleTarget
	case comparison:
		return BranchMultiTargetComparison
	default:
		return BranchMultiTargetFanout
	}
}
