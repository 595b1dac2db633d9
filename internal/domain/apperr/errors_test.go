package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("boom"), KindUnknown},
		{"not found", NotFound("op", "discussion %s", "a"), KindNotFound},
		{"wrapped conflict", fmt.Errorf("outer: %w", Conflict("op", "last admin")), KindConflict},
		{"store", Store("op", errors.New("disk")), KindStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestWrapKeepsExistingKind(t *testing.T) {
	inner := Permission("consensus.override", "admin required")
	err := Wrap(KindStore, "outer", inner)

	assert.True(t, Is(err, KindPermission))
	assert.Nil(t, Wrap(KindStore, "outer", nil))
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("database is locked")
	err := Store("slot.set_status", cause)

	assert.Equal(t, "slot.set_status: store failure: database is locked", err.Error())
	assert.ErrorIs(t, err, cause)
}
