// Package rating computes ELO rank shifts for ranked matches.
//
// A ranked match always has one winner and one loser, so the shift stored for
// the winner is the amount the loser drops as well.
package rating

import "math"

// KFactor is the fixed K used for every ranked match.
const KFactor = 42

// Default is the rating of a player with no ranked history.
const Default = 1500

// ExpectedScore returns the probability that a player rated ra beats a player
// rated rb.
func ExpectedScore(ra, rb float64) float64 {
	pa := math.Pow(10, ra/400)
	pb := math.Pow(10, rb/400)
	return pa / (pa + pb)
}

// Increase is the rating gained by winner when beating loser.
func Increase(winner, loser int) int {
	expected := ExpectedScore(float64(winner), float64(loser))
	return int(math.Floor(KFactor * (1 - expected)))
}

// Shifts returns the rank shift applied when a wins and when b wins.
func Shifts(a, b int) (aWins, bWins int) {
	return Increase(a, b), Increase(b, a)
}
