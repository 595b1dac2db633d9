package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"lead@example.com", false},
		{"first.last+review@sub.example.org", false},
		{"no-at-sign.example.com", true},
		{"missing@tld", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Widget rollout", SanitizeString("Widget \x00\trollout"))
	assert.Equal(t, "plain", SanitizeString("plain"))
}
