package workflow

// BuildLiquidationStateMachine creates a state machine configured with the
// liquidation review graph. It is the only place edges are declared.
func BuildLiquidationStateMachine(initialState State) StateMachine {
	builder := NewBuilder()

	builder.Configure(StateDraft).
		Permit(TriggerSubmit, StateForInitialReview)

	builder.Configure(StateReturnedToHEI).
		Permit(TriggerResubmit, StateForInitialReview)

	// RC stage: first review and re-review after accounting sends it back
	builder.Configure(StateForInitialReview).
		Permit(TriggerEndorseToAccounting, StateEndorsedToAccounting).
		Permit(TriggerReturnToHEI, StateReturnedToHEI)

	builder.Configure(StateReturnedToRC).
		Permit(TriggerEndorseToAccounting, StateEndorsedToAccounting).
		Permit(TriggerReturnToHEI, StateReturnedToHEI)

	// Accountant stage
	builder.Configure(StateEndorsedToAccounting).
		Permit(TriggerEndorseToCOA, StateEndorsedToCOA).
		Permit(TriggerReturnToRC, StateReturnedToRC)

	// endorsed_to_coa waits on the external audit body; approved and rejected are terminal

	return builder.Build(initialState)
}

// SubmitTrigger picks the submit trigger that applies to the given state
func SubmitTrigger(current State) Trigger {
	if current == StateReturnedToHEI {
		return TriggerResubmit
	}
	return TriggerSubmit
}
