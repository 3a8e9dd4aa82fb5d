package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name        string
		uri         string
		expected    Location
		expectError bool
	}{
		{
			name:     "nested key",
			uri:      "s3://inbox/2024/03/invoice.pdf",
			expected: Location{Bucket: "inbox", Key: "2024/03/invoice.pdf"},
		},
		{
			name:     "top level key",
			uri:      "s3://inbox/invoice.pdf",
			expected: Location{Bucket: "inbox", Key: "invoice.pdf"},
		},
		{name: "wrong scheme", uri: "https://inbox/invoice.pdf", expectError: true},
		{name: "bucket only", uri: "s3://inbox", expectError: true},
		{name: "empty key", uri: "s3://inbox/", expectError: true},
		{name: "empty bucket", uri: "s3:///invoice.pdf", expectError: true},
		{name: "empty", uri: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := ParseLocation(tt.uri)
			if tt.expectError {
				require.ErrorIs(t, err, ErrInvalidLocation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, loc)
			assert.Equal(t, tt.uri, loc.String())
		})
	}
}

func TestLocationBaseName(t *testing.T) {
	loc := Location{Bucket: "inbox", Key: "2024/03/invoice.pdf"}
	assert.Equal(t, "invoice.pdf", loc.BaseName())
}
