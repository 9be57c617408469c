package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateDraft, false},
		{StateForInitialReview, false},
		{StateReturnedToHEI, false},
		{StateEndorsedToAccounting, false},
		{StateReturnedToRC, false},
		{StateEndorsedToCOA, false},
		{StateApproved, true},
		{StateRejected, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseState(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    State
		wantErr bool
	}{
		{"draft", "draft", StateDraft, false},
		{"coa", "endorsed_to_coa", StateEndorsedToCOA, false},
		{"wrong case", "DRAFT", "", true},
		{"empty", "", "", true},
		{"unknown", "submitted", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseState(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidState) {
					t.Errorf("ParseState(%q) error = %v, want %v", tt.input, err, ErrInvalidState)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseState(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseState(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestBuilder_ConfigureReturnsSameConfig(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StateDraft)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}

	if config2 := builder.Configure(StateDraft); config != config2 {
		t.Error("Configure() should return same config for same state")
	}
}

func TestBuilder_PanicsOnInvalidStates(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"configure", func() { NewBuilder().Configure(State("INVALID")) }},
		{"build", func() { NewBuilder().Build(State("INVALID")) }},
		{"permit", func() { NewBuilder().Configure(StateDraft).Permit(TriggerSubmit, State("INVALID")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("%s should panic on invalid state", tt.name)
				}
			}()
			tt.fn()
		})
	}
}

func TestStateConfiguration_PermitIf_GuardFails(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).
		PermitIf(TriggerSubmit, StateForInitialReview, func(ctx context.Context) bool {
			return false
		})

	machine := builder.Build(StateDraft)

	err := machine.Fire(context.Background(), TriggerSubmit)
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}

	if machine.State() != StateDraft {
		t.Errorf("State should remain %v after failed Fire(), got %v", StateDraft, machine.State())
	}
}

func TestStateMachine_Peek_DoesNotTransition(t *testing.T) {
	machine := BuildLiquidationStateMachine(StateForInitialReview)

	next, err := machine.Peek(context.Background(), TriggerReturnToHEI)
	if err != nil {
		t.Fatalf("Peek() failed: %v", err)
	}
	if next != StateReturnedToHEI {
		t.Errorf("Peek() = %v, want %v", next, StateReturnedToHEI)
	}
	if machine.State() != StateForInitialReview {
		t.Errorf("Peek() changed state to %v", machine.State())
	}
}

func TestStateMachine_Immutability(t *testing.T) {
	machine1 := BuildLiquidationStateMachine(StateDraft)
	machine2 := BuildLiquidationStateMachine(StateDraft)

	if err := machine1.Fire(context.Background(), TriggerSubmit); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}

	if machine2.State() != StateDraft {
		t.Errorf("machine2 state = %v, want %v (machines should be independent)", machine2.State(), StateDraft)
	}
}

func TestBuildLiquidationStateMachine_Edges(t *testing.T) {
	type edge struct {
		from    State
		trigger Trigger
		to      State
	}
	legal := []edge{
		{StateDraft, TriggerSubmit, StateForInitialReview},
		{StateReturnedToHEI, TriggerResubmit, StateForInitialReview},
		{StateForInitialReview, TriggerEndorseToAccounting, StateEndorsedToAccounting},
		{StateReturnedToRC, TriggerEndorseToAccounting, StateEndorsedToAccounting},
		{StateForInitialReview, TriggerReturnToHEI, StateReturnedToHEI},
		{StateReturnedToRC, TriggerReturnToHEI, StateReturnedToHEI},
		{StateEndorsedToAccounting, TriggerEndorseToCOA, StateEndorsedToCOA},
		{StateEndorsedToAccounting, TriggerReturnToRC, StateReturnedToRC},
	}

	isLegal := func(from State, trigger Trigger) (State, bool) {
		for _, e := range legal {
			if e.from == from && e.trigger == trigger {
				return e.to, true
			}
		}
		return "", false
	}

	triggers := []Trigger{
		TriggerSubmit, TriggerResubmit, TriggerEndorseToAccounting,
		TriggerReturnToHEI, TriggerEndorseToCOA, TriggerReturnToRC,
	}

	// Exhaustive: every (state, trigger) pair is either an edge or rejected
	for _, from := range AllStates() {
		for _, trigger := range triggers {
			machine := BuildLiquidationStateMachine(from)
			want, ok := isLegal(from, trigger)
			err := machine.Fire(context.Background(), trigger)

			if ok {
				if err != nil {
					t.Errorf("%s --%s--> unexpected error: %v", from, trigger, err)
				}
				if machine.State() != want {
					t.Errorf("%s --%s--> %s, want %s", from, trigger, machine.State(), want)
				}
				continue
			}

			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s --%s--> error = %v, want %v", from, trigger, err, ErrInvalidTransition)
			}
			if machine.State() != from {
				t.Errorf("%s --%s--> state changed to %s on rejected trigger", from, trigger, machine.State())
			}
		}
	}
}

func TestBuildLiquidationStateMachine_TerminalStatesHaveNoTriggers(t *testing.T) {
	for _, state := range []State{StateApproved, StateRejected} {
		machine := BuildLiquidationStateMachine(state)
		if got := machine.PermittedTriggers(); len(got) != 0 {
			t.Errorf("%s permitted triggers = %v, want none", state, got)
		}
	}
}

func TestStateMachine_PermittedTriggersSorted(t *testing.T) {
	machine := BuildLiquidationStateMachine(StateForInitialReview)

	got := machine.PermittedTriggers()
	want := []Trigger{TriggerEndorseToAccounting, TriggerReturnToHEI}
	if len(got) != len(want) {
		t.Fatalf("PermittedTriggers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PermittedTriggers()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStateMachine_ReworkLoop(t *testing.T) {
	machine := BuildLiquidationStateMachine(StateDraft)

	steps := []struct {
		trigger       Trigger
		expectedState State
	}{
		{TriggerSubmit, StateForInitialReview},
		{TriggerReturnToHEI, StateReturnedToHEI},
		{TriggerResubmit, StateForInitialReview},
		{TriggerEndorseToAccounting, StateEndorsedToAccounting},
		{TriggerReturnToRC, StateReturnedToRC},
		{TriggerEndorseToAccounting, StateEndorsedToAccounting},
		{TriggerEndorseToCOA, StateEndorsedToCOA},
	}

	for i, step := range steps {
		if err := machine.Fire(context.Background(), step.trigger); err != nil {
			t.Fatalf("Step %d: Fire(%v) failed: %v", i, step.trigger, err)
		}
		if machine.State() != step.expectedState {
			t.Errorf("Step %d: State after Fire(%v) = %v, want %v", i, step.trigger, machine.State(), step.expectedState)
		}
	}
}

func TestSubmitTrigger(t *testing.T) {
	if got := SubmitTrigger(StateDraft); got != TriggerSubmit {
		t.Errorf("SubmitTrigger(draft) = %v, want %v", got, TriggerSubmit)
	}
	if got := SubmitTrigger(StateReturnedToHEI); got != TriggerResubmit {
		t.Errorf("SubmitTrigger(returned_to_hei) = %v, want %v", got, TriggerResubmit)
	}
}
