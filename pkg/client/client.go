// Package client is a typed HTTP client for the training API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/echelon/internal/domain/gameconfig"
	"github.com/okian/echelon/internal/domain/model"
	"github.com/okian/echelon/internal/domain/types"
	"github.com/okian/echelon/internal/identity"
)

// DefaultTimeout bounds each request when no http.Client is supplied.
const DefaultTimeout = 10 * time.Second

// Client calls one API base URL on behalf of one caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	wallet     string
	token      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithWallet identifies the caller by wallet header. Servers running
// with an auth secret ignore it.
func WithWallet(wallet string) Option {
	return func(c *Client) { c.wallet = wallet }
}

// WithToken identifies the caller by bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New returns a Client for baseURL, e.g. "http://localhost:9080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wallet returns the wallet this client sends in the identity header.
func (c *Client) Wallet() string { return c.wallet }

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(raw)
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.wallet != "" {
		req.Header.Set(identity.WalletHeader, c.wallet)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// StartSession opens a pending session and returns its id.
func (c *Client) StartSession(ctx context.Context, drillID string, gameType model.GameType) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	in := map[string]string{"drill_id": drillID, "game_type": string(gameType)}
	if err := c.do(ctx, http.MethodPost, "/sessions", nil, in, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// CompleteSession finalizes a session and returns the server rewards.
func (c *Client) CompleteSession(ctx context.Context, sessionID string, finalScore int64, perf model.Performance) (types.Completion, error) {
	in := struct {
		FinalScore  int64             `json:"final_score"`
		Performance model.Performance `json:"performance"`
	}{finalScore, perf}
	var out types.Completion
	err := c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(sessionID)+"/complete", nil, in, &out)
	return out, err
}

// GameConfig fetches the configuration of a drill.
func (c *Client) GameConfig(ctx context.Context, drillID string) (gameconfig.Config, error) {
	var out gameconfig.Config
	err := c.do(ctx, http.MethodGet, "/drills/"+url.PathEscape(drillID)+"/config", nil, nil, &out)
	return out, err
}

// Leaderboard fetches ranked rows. limit 0 uses the server default.
func (c *Client) Leaderboard(ctx context.Context, drillID string, gameType model.GameType, limit int) ([]types.LeaderboardRow, error) {
	q := url.Values{"drill_id": {drillID}, "game_type": {string(gameType)}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []types.LeaderboardRow
	err := c.do(ctx, http.MethodGet, "/leaderboard", q, nil, &out)
	return out, err
}

// Me fetches the caller's profile, creating it on first use.
func (c *Client) Me(ctx context.Context) (model.Player, error) {
	var out model.Player
	err := c.do(ctx, http.MethodGet, "/players/me", nil, nil, &out)
	return out, err
}

// History lists the caller's completed sessions. Empty drillID lists all.
func (c *Client) History(ctx context.Context, drillID string, limit int) ([]model.GameSession, error) {
	q := url.Values{}
	if drillID != "" {
		q.Set("drill_id", drillID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []model.GameSession
	err := c.do(ctx, http.MethodGet, "/players/me/history", q, nil, &out)
	return out, err
}

// Stats fetches the caller's aggregates for one game type.
func (c *Client) Stats(ctx context.Context, gameType model.GameType) (types.GameStats, error) {
	var out types.GameStats
	err := c.do(ctx, http.MethodGet, "/players/me/stats", url.Values{"game_type": {string(gameType)}}, nil, &out)
	return out, err
}

// Healthy reports an error unless GET /healthz answers 200.
func (c *Client) Healthy(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}
