package workflow

// State represents a liquidation status in the review lifecycle
type State string

const (
	StateDraft                State = "draft"
	StateForInitialReview     State = "for_initial_review"
	StateReturnedToHEI        State = "returned_to_hei"
	StateEndorsedToAccounting State = "endorsed_to_accounting"
	StateReturnedToRC         State = "returned_to_rc"
	StateEndorsedToCOA        State = "endorsed_to_coa"
	StateApproved             State = "approved"
	StateRejected             State = "rejected"
)

var validStates = map[State]bool{
	StateDraft:                true,
	StateForInitialReview:     true,
	StateReturnedToHEI:        true,
	StateEndorsedToAccounting: true,
	StateReturnedToRC:         true,
	StateEndorsedToCOA:        true,
	StateApproved:             true,
	StateRejected:             true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// AllStates lists every state in lifecycle order
func AllStates() []State {
	return []State{
		StateDraft,
		StateForInitialReview,
		StateReturnedToHEI,
		StateEndorsedToAccounting,
		StateReturnedToRC,
		StateEndorsedToCOA,
		StateApproved,
		StateRejected,
	}
}

// ParseState converts a stored status string into a State
func ParseState(s string) (State, error) {
	state := State(s)
	if !state.IsValid() {
		return "", ErrInvalidState
	}
	return state, nil
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}

// IsSubmitted reports whether the liquidation has left the HEI's hands at least once
func (s State) IsSubmitted() bool {
	return s != StateDraft && s.IsValid()
}
