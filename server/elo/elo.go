// Package elo implements the arena's rating update: classic Elo with a fixed
// K-factor over a single win/lose/tie/both-lose outcome.
package elo

import "math"

const (
	// InitialRating is assigned to a model the first time it is seen.
	InitialRating = 1000
	// K scales how far one battle can move a rating.
	K = 32
)

// Tag is the canonical winner of a resolved battle.
type Tag string

const (
	WinA Tag = "A"    // Assistant A's model won
	WinB Tag = "B"    // Assistant B's model won
	Tie  Tag = "TIE"  // split decision
	Flag Tag = "FLAG" // both lose (flagged battle)
)

// Slot labels shown to the caller in place of real model names.
const (
	LabelA = "Assistant A"
	LabelB = "Assistant B"
)

// WinnerFromSignal normalizes a caller-submitted winner list to a Tag.
// An empty list means both models lose; a single exact slot label picks that
// side; anything else counts as a tie.
func WinnerFromSignal(signal []string) Tag {
	if len(signal) == 0 {
		return Flag
	}
	if len(signal) == 1 {
		switch signal[0] {
		case LabelA:
			return WinA
		case LabelB:
			return WinB
		}
	}
	return Tie
}

func expected(ra, rb int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(rb-ra)/400.0))
}

// Update computes both new ratings for one resolved battle.
//
// Expected scores are computed symmetrically from the formula on each side
// rather than deriving one from the other. Results round half away from zero
// (math.Round); the choice only matters when K*(score-expected) lands on an
// exact half.
//
// An unrecognized tag returns the inputs unchanged with ok=false; callers
// treat that as a logged anomaly, not a failure.
func Update(ratingA, ratingB int, winner Tag) (newA, newB int, ok bool) {
	var scoreA, scoreB float64
	switch winner {
	case WinA:
		scoreA, scoreB = 1, 0
	case WinB:
		scoreA, scoreB = 0, 1
	case Tie:
		scoreA, scoreB = 0.5, 0.5
	case Flag:
		scoreA, scoreB = 0, 0
	default:
		return ratingA, ratingB, false
	}

	ea := expected(ratingA, ratingB)
	eb := expected(ratingB, ratingA)

	newA = int(math.Round(float64(ratingA) + K*(scoreA-ea)))
	newB = int(math.Round(float64(ratingB) + K*(scoreB-eb)))
	return newA, newB, true
}
