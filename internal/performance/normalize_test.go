package performance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{
			name:     "guid id lookup",
			key:      "role:id:3fae2c1b-8c0d-4c36-9a55-0e4f1f7c2b10",
			expected: "role:id:{guid}",
		},
		{
			name:     "paged listing",
			key:      "tokens:paged:2:20",
			expected: "tokens:paged:{num}:{num}",
		},
		{
			name:     "email lookup",
			key:      "users:email:jane.doe+ops@example.co.uk",
			expected: "users:email:{email}",
		},
		{
			name:     "guid with digits only segments",
			key:      "tokens:user:12345678-1234-1234-1234-123456789012:count",
			expected: "tokens:user:{guid}:count",
		},
		{
			name:     "digits inside words are kept",
			key:      "roles:v2:all",
			expected: "roles:v2:all",
		},
		{
			name:     "token digest",
			key:      "tokens:value:9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
			expected: "tokens:value:{hash}",
		},
		{
			name:     "search term",
			key:      "roles:paged:1:20:true:q=admin 42",
			expected: "roles:paged:{num}:{num}:true:q={term}",
		},
		{
			name:     "search term with separators",
			key:      "roles:paged:3:50:false:q=ops:*@example.com",
			expected: "roles:paged:{num}:{num}:false:q={term}",
		},
		{
			name:     "empty search term",
			key:      "roles:paged:1:20:true:q=",
			expected: "roles:paged:{num}:{num}:true:q=",
		},
		{
			name:     "short hex stays",
			key:      "roles:name:cafe",
			expected: "roles:name:cafe",
		},
		{
			name:     "no identifiers",
			key:      "system:metadata",
			expected: "system:metadata",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeKey(tt.key))
		})
	}
}

func TestDifferentGUIDsShareAPattern(t *testing.T) {
	a := NormalizeKey("role:id:3fae2c1b-8c0d-4c36-9a55-0e4f1f7c2b10")
	b := NormalizeKey("role:id:9bda4e02-71f3-4a8e-b0c2-5d6e7f809a1b")
	assert.Equal(t, a, b)
}

func TestGlobMatches(t *testing.T) {
	assert.True(t, globMatches("roles:paged:*", "roles:paged:{num}:{num}:true:q={term}"))
	assert.True(t, globMatches("tokens:user:*:count", "tokens:user:{guid}:count"))
	assert.False(t, globMatches("roles:paged:*", "roles:id:{guid}"))
	assert.False(t, globMatches("roles:[", "roles:["))
	assert.True(t, isGlob("roles:*"))
	assert.False(t, isGlob("roles:all"))
}
