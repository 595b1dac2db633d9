package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsDone(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateLocked, false},
		{StateUnlocked, false},
		{StateReadyForConsensus, false},
		{StateConsensusCreated, true},
		{StateCompleted, true},
		{StateQualityFailed, true},
		{StateBlocked, false},
		{StateRework, false},
		{StateFlagged, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsDone(); got != tt.expected {
				t.Errorf("State.IsDone() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	for _, s := range AllStates() {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if State("LOCKED").IsValid() {
		t.Error("status values are lower case")
	}
	if State("").IsValid() {
		t.Error("empty state should be invalid")
	}
}

func TestRequiredAnnotators(t *testing.T) {
	if got := RequiredAnnotators(1); got != 3 {
		t.Errorf("task 1 quorum = %d, want 3", got)
	}
	if got := RequiredAnnotators(2); got != 3 {
		t.Errorf("task 2 quorum = %d, want 3", got)
	}
	if got := RequiredAnnotators(3); got != 5 {
		t.Errorf("task 3 quorum = %d, want 5", got)
	}
}

func TestStateMachine_Fire(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateLocked).Permit(TriggerUnlock, StateUnlocked)
	builder.Configure(StateUnlocked).Permit(TriggerFlagRework, StateRework)

	machine := builder.Build(StateLocked)
	ctx := context.Background()

	if err := machine.Fire(ctx, TriggerUnlock); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if machine.State() != StateUnlocked {
		t.Errorf("State() = %s, want %s", machine.State(), StateUnlocked)
	}

	err := machine.Fire(ctx, TriggerUnlock)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want ErrInvalidTransition", err)
	}
	if machine.State() != StateUnlocked {
		t.Error("failed fire must not move the machine")
	}
}

func TestStateMachine_Guards(t *testing.T) {
	quorum := false
	builder := NewBuilder()
	builder.Configure(StateUnlocked).
		PermitIf(TriggerReachQuorum, StateReadyForConsensus, func(context.Context) bool { return quorum })

	machine := builder.Build(StateUnlocked)
	ctx := context.Background()

	if err := machine.Fire(ctx, TriggerReachQuorum); !errors.Is(err, ErrGuardFailed) {
		t.Fatalf("Fire() error = %v, want ErrGuardFailed", err)
	}

	quorum = true
	next, err := machine.Peek(ctx, TriggerReachQuorum)
	if err != nil || next != StateReadyForConsensus {
		t.Fatalf("Peek() = %s, %v", next, err)
	}
	if machine.State() != StateUnlocked {
		t.Error("Peek must not move the machine")
	}
}

func TestBuilder_BuildIsolatesConfiguration(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateLocked).Permit(TriggerUnlock, StateUnlocked)
	first := builder.Build(StateLocked)

	builder.Configure(StateLocked).Permit(TriggerFlag, StateFlagged)

	if first.CanFire(TriggerFlag) {
		t.Error("machine built earlier must not see later configuration")
	}
	if got := builder.Build(StateLocked).PermittedTriggers(); len(got) != 2 {
		t.Errorf("PermittedTriggers() = %v, want 2 triggers", got)
	}
}

func TestBuilder_PanicsOnInvalidState(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Configure with invalid state should panic")
		}
	}()
	NewBuilder().Configure(State("bogus"))
}
