package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected float64
	}{
		{
			name:     "identical names",
			a:        "Robert Smith",
			b:        "Robert Smith",
			expected: 1.0,
		},
		{
			name:     "identical after case folding",
			a:        "robert smith",
			b:        "ROBERT SMITH",
			expected: 1.0,
		},
		{
			name:     "identical after trimming",
			a:        "  Robert Smith  ",
			b:        "Robert Smith",
			expected: 1.0,
		},
		{
			name:     "two of three words shared",
			a:        "Robert James Smith",
			b:        "Robert Smith",
			expected: 2.0 / 3.0,
		},
		{
			name:     "one of three words shared",
			a:        "Robert Smith",
			b:        "Robert Jones",
			expected: 1.0 / 3.0,
		},
		{
			name:     "no words shared",
			a:        "Robert Smith",
			b:        "Alice Jones",
			expected: 0.0,
		},
		{
			name:     "empty first name",
			a:        "",
			b:        "Robert Smith",
			expected: 0.0,
		},
		{
			name:     "empty second name",
			a:        "Robert Smith",
			b:        "",
			expected: 0.0,
		},
		{
			name:     "both empty",
			a:        "",
			b:        "",
			expected: 0.0,
		},
		{
			name:     "whitespace only",
			a:        "   ",
			b:        "Robert Smith",
			expected: 0.0,
		},
		{
			name:     "repeated words count once",
			a:        "Bob Bob Smith",
			b:        "Bob Jones",
			expected: 1.0 / 3.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Name(tt.a, tt.b), 0.0001)
		})
	}
}

func TestName_Symmetric(t *testing.T) {
	assert.Equal(t, Name("Robert James Smith", "Robert Smith"), Name("Robert Smith", "Robert James Smith"))
}
