package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseReplicaURLs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "postgres://replica1/shelf", []string{"postgres://replica1/shelf"}},
		{
			"multiple with whitespace",
			"postgres://replica1/shelf, postgres://replica2/shelf ,",
			[]string{"postgres://replica1/shelf", "postgres://replica2/shelf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseReplicaURLs(tt.input))
		})
	}
}
