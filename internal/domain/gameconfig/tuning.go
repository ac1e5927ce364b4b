package gameconfig

import (
	"encoding/json"
	"fmt"

	"github.com/okian/echelon/internal/domain/model"
)

// Tuning holds the per-mini-game knobs of a configuration. The concrete
// variants are closed; RawTuning carries payloads of kinds this build
// does not know.
type Tuning interface {
	Kind() string
	isTuning()
}

// PatternMatrixTuning tunes the memory grid game.
type PatternMatrixTuning struct {
	PatternLength int `json:"pattern_length"`
	RevealMillis  int `json:"reveal_ms"`
}

// ReactionGridTuning tunes the reaction game.
type ReactionGridTuning struct {
	MinDelayMillis int `json:"min_delay_ms"`
	MaxDelayMillis int `json:"max_delay_ms"`
	Targets        int `json:"targets"`
}

// PrecisionTargetTuning tunes the aiming game.
type PrecisionTargetTuning struct {
	TargetRadius int     `json:"target_radius"`
	ShrinkRate   float64 `json:"shrink_rate"`
}

// StaminaRushTuning tunes the endurance game.
type StaminaRushTuning struct {
	Waves        int     `json:"waves"`
	SpeedRampPct float64 `json:"speed_ramp_pct"`
}

// RawTuning is the untyped fallback for unknown kinds.
type RawTuning struct {
	KindName string          `json:"-"`
	Payload  json.RawMessage `json:"-"`
}

func (PatternMatrixTuning) Kind() string   { return string(model.GamePatternMatrix) }
func (ReactionGridTuning) Kind() string    { return string(model.GameReactionGrid) }
func (PrecisionTargetTuning) Kind() string { return string(model.GamePrecisionTarget) }
func (StaminaRushTuning) Kind() string     { return string(model.GameStaminaRush) }
func (r RawTuning) Kind() string           { return r.KindName }

func (PatternMatrixTuning) isTuning()   {}
func (ReactionGridTuning) isTuning()    {}
func (PrecisionTargetTuning) isTuning() {}
func (StaminaRushTuning) isTuning()     {}
func (RawTuning) isTuning()             {}

// DefaultTuning returns the built-in knobs for a mini-game.
func DefaultTuning(g model.GameType) Tuning {
	switch g {
	case model.GameReactionGrid:
		return ReactionGridTuning{MinDelayMillis: 400, MaxDelayMillis: 1500, Targets: 20}
	case model.GamePrecisionTarget:
		return PrecisionTargetTuning{TargetRadius: 32, ShrinkRate: 0.05}
	case model.GameStaminaRush:
		return StaminaRushTuning{Waves: 10, SpeedRampPct: 8}
	default:
		return PatternMatrixTuning{PatternLength: 4, RevealMillis: 1200}
	}
}

type kindEnvelope struct {
	Kind string `json:"kind"`
}

// MarshalTuning encodes t as a flat object tagged with "kind".
func MarshalTuning(t Tuning) ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}
	if raw, ok := t.(RawTuning); ok {
		return marshalRaw(raw)
	}
	body, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal %s tuning: %w", t.Kind(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("marshal %s tuning: %w", t.Kind(), err)
	}
	kind, _ := json.Marshal(t.Kind())
	fields["kind"] = kind
	return json.Marshal(fields)
}

func marshalRaw(r RawTuning) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &fields); err != nil {
			return nil, fmt.Errorf("marshal raw tuning: %w", err)
		}
	}
	kind, _ := json.Marshal(r.KindName)
	fields["kind"] = kind
	return json.Marshal(fields)
}

// UnmarshalTuning decodes a "kind"-tagged object. Unknown kinds become
// RawTuning with the payload preserved.
func UnmarshalTuning(data []byte) (Tuning, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var env kindEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: tuning: %w", model.ErrValidation, err)
	}

	var (
		t   Tuning
		err error
	)
	switch model.GameType(env.Kind) {
	case model.GamePatternMatrix:
		var v PatternMatrixTuning
		err = json.Unmarshal(data, &v)
		t = v
	case model.GameReactionGrid:
		var v ReactionGridTuning
		err = json.Unmarshal(data, &v)
		t = v
	case model.GamePrecisionTarget:
		var v PrecisionTargetTuning
		err = json.Unmarshal(data, &v)
		t = v
	case model.GameStaminaRush:
		var v StaminaRushTuning
		err = json.Unmarshal(data, &v)
		t = v
	default:
		fields := map[string]json.RawMessage{}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("%w: tuning: %w", model.ErrValidation, err)
		}
		delete(fields, "kind")
		payload, _ := json.Marshal(fields)
		return RawTuning{KindName: env.Kind, Payload: payload}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s tuning: %w", model.ErrValidation, env.Kind, err)
	}
	return t, nil
}

type configJSON struct {
	DrillID    string          `json:"drill_id"`
	GameType   model.GameType  `json:"game_type"`
	GridSize   int             `json:"grid_size"`
	TimeLimit  int             `json:"time_limit"`
	Lives      int             `json:"lives"`
	Difficulty string          `json:"difficulty"`
	Tuning     json.RawMessage `json:"tuning,omitempty"`
	Stored     bool            `json:"stored"`
}

// MarshalJSON encodes the tuning variant with its kind tag.
func (c Config) MarshalJSON() ([]byte, error) {
	out := configJSON{
		DrillID:    c.DrillID,
		GameType:   c.GameType,
		GridSize:   c.GridSize,
		TimeLimit:  c.TimeLimit,
		Lives:      c.Lives,
		Difficulty: c.Difficulty,
		Stored:     c.Stored,
	}
	if c.Tuning != nil {
		raw, err := MarshalTuning(c.Tuning)
		if err != nil {
			return nil, err
		}
		out.Tuning = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the tuning variant by its kind tag.
func (c *Config) UnmarshalJSON(data []byte) error {
	var in configJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	t, err := UnmarshalTuning(in.Tuning)
	if err != nil {
		return err
	}
	*c = Config{
		DrillID:    in.DrillID,
		GameType:   in.GameType,
		GridSize:   in.GridSize,
		TimeLimit:  in.TimeLimit,
		Lives:      in.Lives,
		Difficulty: in.Difficulty,
		Tuning:     t,
		Stored:     in.Stored,
	}
	return nil
}
