package simulate

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/okian/echelon/internal/domain/model"
)

// Score and performance ranges of generated plays.
const (
	maxScore        = 10_000
	maxLevel        = 10
	maxRounds       = 20
	minReactionMs   = 150
	reactionRangeMs = 600
)

// Tiers shape the accuracy distribution. Most players are average.
const (
	tierCount    = 8
	tierElite    = 0
	tierLow      = 1
	tierHigh     = 2
	eliteMin     = 90.0
	eliteRange   = 10.0
	lowMin       = 5.0
	lowRange     = 35.0
	highMin      = 70.0
	highRange    = 20.0
	averageMin   = 40.0
	averageRange = 30.0
)

// randIntn returns a uniform int in [0, n). n must be positive.
func randIntn(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func randFloat() float64 {
	return float64(randIntn(1_000_000)) / 1_000_000
}

// newWallet returns a unique hex wallet-like address.
func newWallet() string {
	return "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// generateAccuracy draws an accuracy in [0, 100].
func generateAccuracy() float64 {
	switch randIntn(tierCount) {
	case tierElite:
		return eliteMin + randFloat()*eliteRange
	case tierLow:
		return lowMin + randFloat()*lowRange
	case tierHigh:
		return highMin + randFloat()*highRange
	default:
		return averageMin + randFloat()*averageRange
	}
}

// generatePlay draws a score and a consistent performance snapshot.
func generatePlay() (int64, model.Performance) {
	acc := generateAccuracy()
	total := 1 + randIntn(maxRounds)
	perfect := int(float64(total) * acc / 100)
	perf := model.Performance{
		Accuracy:      acc,
		ReactionTime:  float64(minReactionMs + randIntn(reactionRangeMs)),
		Level:         randIntn(maxLevel + 1),
		PerfectRounds: perfect,
		TotalRounds:   total,
	}
	score := int64(float64(randIntn(maxScore)) * (0.5 + acc/200))
	return score, perf
}
