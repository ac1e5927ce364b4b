package repository

import "time"

type options struct {
	now       func() time.Time
	maxConns  int32
	keyPrefix string
}

func defaultOptions() options {
	return options{
		now:       time.Now,
		keyPrefix: "leaderboard",
	}
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithClock overrides the time source used for created-at timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMaxConns caps the Postgres pool size.
func WithMaxConns(n int32) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConns = n
		}
	}
}

// WithKeyPrefix sets the Redis sorted-set key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}
