package workflow

import "context"

// StateMachine tracks one task slot's state and validates explicit actions against it
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if any transition is configured for the trigger in the current state
	CanFire(trigger Trigger) bool

	// Peek resolves the target state of a trigger without moving the machine
	Peek(ctx context.Context, trigger Trigger) (State, error)

	// Fire executes the trigger and moves to the resolved state
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns the triggers configured for the current state
	PermittedTriggers() []Trigger
}
