package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParseCronErrors(t *testing.T) {
	for _, expr := range []string{
		"",
		"* * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 8",
		"*/0 * * * *",
		"5-1 * * * *",
		"5/10 * * * *",
		"1,,2 * * * *",
		"* * * foo *",
	} {
		_, err := ParseCron(expr)
		assert.Error(t, err, expr)
	}
}

func TestCronMatches(t *testing.T) {
	tests := []struct {
		expr string
		at   string
		want bool
	}{
		{"* * * * *", "2024-03-01 12:34", true},
		{"*/15 * * * *", "2024-03-01 12:45", true},
		{"*/15 * * * *", "2024-03-01 12:46", false},
		{"0 4 * * *", "2024-03-01 04:00", true},
		{"0 4 * * *", "2024-03-01 05:00", false},
		{"30 2 * * mon-fri", "2024-03-04 02:30", true}, // Monday
		{"30 2 * * mon-fri", "2024-03-03 02:30", false},
		{"0 0 * * 7", "2024-03-03 00:00", true}, // Sunday
		{"0 0 1 jan *", "2024-01-01 00:00", true},
		{"0 0 1-10/3 * *", "2024-03-07 00:00", true},
		{"0 0 1-10/3 * *", "2024-03-08 00:00", false},
		// Both day fields restricted: either matches.
		{"0 0 15 * sun", "2024-03-15 00:00", true},
		{"0 0 15 * sun", "2024-03-17 00:00", true},
		{"0 0 15 * sun", "2024-03-16 00:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr+"@"+tt.at, func(t *testing.T) {
			c, err := ParseCron(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Matches(at(tt.at)))
		})
	}
}

func TestCronNext(t *testing.T) {
	tests := []struct {
		expr, from, want string
	}{
		{"* * * * *", "2024-03-01 12:34", "2024-03-01 12:35"},
		{"0 4 * * *", "2024-03-01 12:34", "2024-03-02 04:00"},
		{"*/20 * * * *", "2024-03-01 23:50", "2024-03-02 00:00"},
		{"0 0 1 * *", "2024-12-15 08:00", "2025-01-01 00:00"},
		{"0 0 29 2 *", "2024-03-01 00:00", "2028-02-29 00:00"},
	}
	for _, tt := range tests {
		c, err := ParseCron(tt.expr)
		require.NoError(t, err)
		next, ok := c.Next(at(tt.from))
		require.True(t, ok, tt.expr)
		assert.Equal(t, at(tt.want), next, tt.expr)
	}

	c, err := ParseCron("0 0 31 2 *")
	require.NoError(t, err)
	_, ok := c.Next(at("2024-01-01 00:00"))
	assert.False(t, ok)
}
