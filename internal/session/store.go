// Package session caches dry-run results between the dry run and the commit.
//
// A session is single-use: Consume removes it atomically, so two commits
// racing on the same id see exactly one winner. Backends are interchangeable
// behind Store; the server picks one from configuration.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

const (
	// DefaultTTL is how long a dry run stays committable.
	DefaultTTL = 5 * time.Minute

	// DefaultReapInterval is how often the memory store drops expired sessions.
	DefaultReapInterval = time.Minute

	// DefaultMaxSessions caps live sessions held in memory.
	DefaultMaxSessions = 100
)

// Store holds import sessions.
type Store interface {
	// Put assigns a fresh id and expiry to s and caches it. The id is also
	// stamped on s.Result.
	Put(ctx context.Context, s *core.ImportSession) (*core.ImportSession, error)

	// Get returns a session without consuming it.
	Get(ctx context.Context, id string) (*core.ImportSession, error)

	// Extend restarts the session window at now + d.
	Extend(ctx context.Context, id string, d time.Duration) (*core.ImportSession, error)

	// Consume returns the session and removes it in one step.
	Consume(ctx context.Context, id string) (*core.ImportSession, error)
}

// Options tunes a store. Zero values fall back to the defaults.
type Options struct {
	TTL          time.Duration
	ReapInterval time.Duration
	MaxSessions  int
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.ReapInterval <= 0 {
		o.ReapInterval = DefaultReapInterval
	}
	if o.MaxSessions <= 0 {
		o.MaxSessions = DefaultMaxSessions
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// NewID returns a random session id.
func NewID() string {
	return uuid.NewString()
}

// stamp fills the identity and window of a session about to be stored.
func stamp(s *core.ImportSession, now time.Time, ttl time.Duration) {
	s.ID = NewID()
	s.CreatedAt = now
	s.ExpiresAt = now.Add(ttl)
	if s.Result == nil {
		s.Result = &core.DryRunResult{}
	}
	s.Result.SessionID = s.ID
}
