// Package rewards computes the credits and experience granted for a
// completed training session.
package rewards

import (
	"math"

	"github.com/okian/echelon/internal/domain/model"
)

const (
	accuracyDivisor = 100.0
	levelStep       = 0.1
)

// Base is the reward a drill grants before performance multipliers.
type Base struct {
	Credits int64
	XP      int64
}

// BaseOf returns the base reward of a drill.
func BaseOf(d model.Drill) Base {
	return Base{Credits: d.BaseCredits, XP: d.BaseXP}
}

// Result is the reward earned by one session.
type Result struct {
	Credits            int64   `json:"credits_earned"`
	XP                 int64   `json:"xp_earned"`
	AccuracyMultiplier float64 `json:"accuracy_multiplier"`
	LevelMultiplier    float64 `json:"level_multiplier"`
}

// AccuracyMultiplier is 1 + accuracy/100. It is not clamped.
func AccuracyMultiplier(accuracy float64) float64 {
	return 1 + accuracy/accuracyDivisor
}

// LevelMultiplier is 1 + level*0.1. It is not clamped.
func LevelMultiplier(level int) float64 {
	return 1 + float64(level)*levelStep
}

// Compute applies the accuracy and level multipliers to base and rounds
// to the nearest integer. It has no side effects.
func Compute(base Base, perf model.Performance) Result {
	am := AccuracyMultiplier(perf.Accuracy)
	lm := LevelMultiplier(perf.Level)
	return Result{
		Credits:            int64(math.Round(float64(base.Credits) * am * lm)),
		XP:                 int64(math.Round(float64(base.XP) * am * lm)),
		AccuracyMultiplier: am,
		LevelMultiplier:    lm,
	}
}

// DefaultEstimateBase is used for offline estimates when the drill's base
// reward is unknown to the client.
var DefaultEstimateBase = Base{Credits: 50, XP: 25}

// Estimate is Compute for a client that could not reach the backend. A zero
// base falls back to DefaultEstimateBase.
func Estimate(base Base, perf model.Performance) Result {
	if base.Credits == 0 && base.XP == 0 {
		base = DefaultEstimateBase
	}
	return Compute(base, perf)
}
