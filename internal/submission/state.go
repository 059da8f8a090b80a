package submission

// State is a step of one submission.
type State int

const (
	StatePendingPrimary State = iota
	StatePendingDependents
	StatePendingAttachments
	StatePendingLinks
	StateCommitted

	StateRollbackPrimary
	StateRollbackDependentsAndPrimary
	StateRollbackAttachmentsAndAncestors
	StateFailed
)

var stateNames = [...]string{
	StatePendingPrimary:                  "PendingPrimary",
	StatePendingDependents:               "PendingDependents",
	StatePendingAttachments:              "PendingAttachments",
	StatePendingLinks:                    "PendingLinks",
	StateCommitted:                       "Committed",
	StateRollbackPrimary:                 "RollbackPrimary",
	StateRollbackDependentsAndPrimary:    "RollbackDependentsAndPrimary",
	StateRollbackAttachmentsAndAncestors: "RollbackAttachmentsAndAncestors",
	StateFailed:                          "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateFailed
}
