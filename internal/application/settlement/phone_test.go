package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"local format", "0712345678", "254712345678", false},
		{"international with plus", "+254712345678", "254712345678", false},
		{"international bare", "254712345678", "254712345678", false},
		{"bare subscriber number", "712345678", "254712345678", false},
		{"spaces and dashes stripped", "0712 345-678", "254712345678", false},
		{"too short", "07123", "", true},
		{"too long", "2547123456789", "", true},
		{"letters", "07one23456", "", true},
		{"wrong country code", "255712345678", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
