package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISO8601Duration(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"PT33S", 33},
		{"PT15M33S", 933},
		{"PT1H", 3600},
		{"PT1H2M3S", 3723},
		{"P1DT2H", 93600},
		{"PT0S", 0},
		{"PT90M", 5400},
	}
	for _, tc := range cases {
		got, err := ParseISO8601Duration(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseISO8601DurationRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "15M", "P", "PT", "PTM", "PT5X", "P3M", "PT12", "PT1H2"} {
		_, err := ParseISO8601Duration(in)
		assert.Error(t, err, "input %q", in)
	}
}
