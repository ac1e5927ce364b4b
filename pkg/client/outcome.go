package client

import (
	"context"

	"github.com/okian/echelon/internal/domain/model"
	"github.com/okian/echelon/internal/domain/rewards"
	"github.com/okian/echelon/internal/domain/types"
	"github.com/okian/echelon/pkg/metrics"
)

// OutcomeKind tells whether the server accepted a play.
type OutcomeKind int

const (
	// OutcomeCompleted carries server-computed rewards.
	OutcomeCompleted OutcomeKind = iota + 1
	// OutcomeOffline carries a local estimate and the error that forced it.
	OutcomeOffline
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Play is one finished mini-game as the player experienced it.
type Play struct {
	DrillID     string
	GameType    model.GameType
	FinalScore  int64
	Performance model.Performance
	// Base is the drill's reward base when the client knows it. The zero
	// value estimates with rewards.DefaultEstimateBase.
	Base rewards.Base
}

// Outcome is the result of PlaySession. Exactly one of Completion or
// Estimate is meaningful, chosen by Kind.
type Outcome struct {
	Kind       OutcomeKind
	SessionID  string // empty when the session could not be started
	Completion types.Completion
	Estimate   rewards.Result
	Err        error
}

// Credits returns the credits to show the player.
func (o Outcome) Credits() int64 {
	if o.Kind == OutcomeCompleted {
		return o.Completion.CreditsEarned
	}
	return o.Estimate.Credits
}

// XP returns the experience to show the player.
func (o Outcome) XP() int64 {
	if o.Kind == OutcomeCompleted {
		return o.Completion.XPEarned
	}
	return o.Estimate.XP
}

// PlaySession starts and completes a session for p. Any failure yields an
// OutcomeOffline with a local reward estimate; nothing is retried.
func (c *Client) PlaySession(ctx context.Context, p Play) Outcome {
	id, err := c.StartSession(ctx, p.DrillID, p.GameType)
	if err != nil {
		return offline("", p, err)
	}
	done, err := c.CompleteSession(ctx, id, p.FinalScore, p.Performance)
	if err != nil {
		return offline(id, p, err)
	}
	return Outcome{Kind: OutcomeCompleted, SessionID: id, Completion: done}
}

func offline(sessionID string, p Play, err error) Outcome {
	metrics.RecordOfflineEstimate()
	return Outcome{
		Kind:      OutcomeOffline,
		SessionID: sessionID,
		Estimate:  rewards.Estimate(p.Base, p.Performance),
		Err:       err,
	}
}
