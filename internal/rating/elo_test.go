package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpectedScore(t *testing.T) {
	assert.InDelta(t, 0.5, ExpectedScore(1500, 1500), 1e-9)
	assert.InDelta(t, 1.0, ExpectedScore(1900, 1500)+ExpectedScore(1500, 1900), 1e-9)
	assert.Greater(t, ExpectedScore(1600, 1500), 0.5)
}

func TestIncrease(t *testing.T) {
	tests := []struct {
		name   string
		winner int
		loser  int
		want   int
	}{
		{"equal ratings", 1500, 1500, 21},
		{"favourite wins", 1900, 1500, 3},
		{"underdog wins", 1500, 1900, 38},
		{"small gap", 1550, 1500, 17},
		{"small gap reversed", 1500, 1550, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Increase(tt.winner, tt.loser))
		})
	}
}

func TestShiftsSymmetricAtEqualRating(t *testing.T) {
	aWins, bWins := Shifts(1500, 1500)
	assert.Equal(t, 21, aWins)
	assert.Equal(t, aWins, bWins)
}

func TestShiftsNotNegated(t *testing.T) {
	aWins, bWins := Shifts(1700, 1500)
	assert.NotEqual(t, aWins, -bWins)
	assert.Less(t, aWins, bWins)
}
