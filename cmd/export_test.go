package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFilter(t *testing.T) {
	f, err := buildFilter("2024-01-01", "2024-01-31", "i", " XAXX010101000 ", "usd", time.UTC)
	require.NoError(t, err)

	require.NotNil(t, f.DateFrom)
	require.NotNil(t, f.DateTo)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *f.DateFrom)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999_000_000, time.UTC), *f.DateTo)
	assert.Equal(t, "I", f.DocumentType)
	assert.Equal(t, "XAXX010101000", f.ReceiverTaxID)
	assert.Equal(t, "usd", f.Currency)
	assert.False(t, f.IsEmpty())
}

func TestBuildFilterEmpty(t *testing.T) {
	f, err := buildFilter("", "", "", "", "", time.UTC)
	require.NoError(t, err)
	assert.True(t, f.IsEmpty())
}

func TestBuildFilterSameDay(t *testing.T) {
	f, err := buildFilter("2024-03-05", "2024-03-05", "", "", "", time.UTC)
	require.NoError(t, err)
	assert.True(t, f.DateTo.After(*f.DateFrom))
}

func TestBuildFilterErrors(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		typeCode string
	}{
		{"bad from", "01/02/2024", "", ""},
		{"bad to", "", "2024-13-01", ""},
		{"to before from", "2024-02-01", "2024-01-31", ""},
		{"unknown type", "", "", "X"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildFilter(tt.from, tt.to, tt.typeCode, "", "", time.UTC)
			assert.Error(t, err)
		})
	}
}
