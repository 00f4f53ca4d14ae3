package mime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeContentID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"<id-123>", "id-123"},
		{"cid:id-456", "id-456"},
		{"cid:<image@insurance.com>", "image@insurance.com"},
		{" <0b83cd6b-af15-45d2-bbda-23895de2a73d> ", "0b83cd6b-af15-45d2-bbda-23895de2a73d"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeContentID(tt.input))
		})
	}
}

func TestAddContentIDBrackets(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"id-123", "<id-123>"},
		{"<id-456>", "<id-456>"},
		{"<id-789", "<id-789>"},
		{"id-abc>", "<id-abc>"},
		{"", "<>"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, AddContentIDBrackets(tt.input))
		})
	}
}
