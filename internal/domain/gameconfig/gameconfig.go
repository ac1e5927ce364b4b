// Package gameconfig maps drills to mini-games and supplies the
// configuration a client needs to start playing.
package gameconfig

import (
	"github.com/okian/echelon/internal/domain/model"
)

// DefaultLives is granted by every fallback configuration.
const DefaultLives = 3

// Config is what a client needs to render a mini-game for a drill.
type Config struct {
	DrillID    string         `json:"drill_id"`
	GameType   model.GameType `json:"game_type"`
	GridSize   int            `json:"grid_size"`
	TimeLimit  int            `json:"time_limit"` // seconds
	Lives      int            `json:"lives"`
	Difficulty string         `json:"difficulty"`
	Tuning     Tuning         `json:"tuning,omitempty"`
	Stored     bool           `json:"stored"` // false when built from defaults
}

// GameTypeFor returns the mini-game a drill category is played as.
// Unknown categories play as pattern matrix.
func GameTypeFor(c model.Category) model.GameType {
	switch c {
	case model.CategoryCognition:
		return model.GamePatternMatrix
	case model.CategoryReflex:
		return model.GameReactionGrid
	case model.CategoryAccuracy:
		return model.GamePrecisionTarget
	case model.CategoryEndurance:
		return model.GameStaminaRush
	default:
		return model.GamePatternMatrix
	}
}

type defaults struct {
	gridSize  int
	timeLimit int
}

var categoryDefaults = map[model.Category]defaults{
	model.CategoryCognition: {gridSize: 4, timeLimit: 60},
	model.CategoryReflex:    {gridSize: 5, timeLimit: 45},
	model.CategoryAccuracy:  {gridSize: 6, timeLimit: 60},
	model.CategoryEndurance: {gridSize: 4, timeLimit: 120},
}

var fallbackDefaults = defaults{gridSize: 4, timeLimit: 60}

// Default builds the hardcoded configuration for a drill that has no
// stored configuration.
func Default(d model.Drill) Config {
	def, ok := categoryDefaults[d.Category]
	if !ok {
		def = fallbackDefaults
	}
	gt := GameTypeFor(d.Category)
	return Config{
		DrillID:    d.ID,
		GameType:   gt,
		GridSize:   def.gridSize,
		TimeLimit:  def.timeLimit,
		Lives:      DefaultLives,
		Difficulty: d.Difficulty,
		Tuning:     DefaultTuning(gt),
	}
}

// Resolve returns stored when present, else the category default.
func Resolve(d model.Drill, stored *Config) Config {
	if stored == nil {
		return Default(d)
	}
	cfg := *stored
	cfg.DrillID = d.ID
	cfg.GameType = GameTypeFor(d.Category)
	cfg.Stored = true
	if cfg.Difficulty == "" {
		cfg.Difficulty = d.Difficulty
	}
	return cfg
}
