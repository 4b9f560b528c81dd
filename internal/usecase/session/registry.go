package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"bitguardian/pkg/id"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrNotFound = errors.New("session not found")

// refreshParallelism bounds concurrent directory fetches in RefreshConnected.
const refreshParallelism = 4

type entry struct {
	ctl      *Controller
	lastUsed time.Time
}

// Registry owns one Controller per session.
type Registry struct {
	wallet    WalletConnector
	gateway   LendingGateway
	directory LoanDirectory
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewRegistry(w WalletConnector, g LendingGateway, d LoanDirectory) *Registry {
	return &Registry{wallet: w, gateway: g, directory: d, now: time.Now, sessions: map[string]*entry{}}
}

func (r *Registry) Create() *Controller {
	c := NewController(id.NewID32(), r.wallet, r.gateway, r.directory)
	r.mu.Lock()
	r.sessions[c.ID()] = &entry{ctl: c, lastUsed: r.now()}
	r.mu.Unlock()
	return c
}

// Get returns the session's controller and marks the session as used.
func (r *Registry) Get(sessionID string) (*Controller, error) {
	if !id.Valid(sessionID) {
		return nil, ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastUsed = r.now()
	return e.ctl, nil
}

// Close removes the session and tears its controller down.
func (r *Registry) Close(sessionID string) error {
	r.mu.Lock()
	e, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	e.ctl.Close()
	return nil
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = map[string]*entry{}
	r.mu.Unlock()
	for _, e := range all {
		e.ctl.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EvictIdle closes every session not used through Get for longer than ttl and
// returns how many were closed.
func (r *Registry) EvictIdle(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)
	var idle []*Controller
	r.mu.Lock()
	for sid, e := range r.sessions {
		if e.lastUsed.Before(cutoff) {
			idle = append(idle, e.ctl)
			delete(r.sessions, sid)
		}
	}
	r.mu.Unlock()
	for _, c := range idle {
		c.Close()
	}
	if len(idle) > 0 {
		log.Info().Int("sessions", len(idle)).Dur("idle_ttl", ttl).Msg("evicted idle sessions")
	}
	return len(idle)
}

// RefreshConnected syncs the loan list of every session with a connected
// account and returns how many were synced. It runs in the background, so it
// never touches a session's error or loading state.
func (r *Registry) RefreshConnected(ctx context.Context) int {
	r.mu.Lock()
	targets := make([]*Controller, 0, len(r.sessions))
	for _, e := range r.sessions {
		if e.ctl.Account() != "" {
			targets = append(targets, e.ctl)
		}
	}
	r.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(refreshParallelism)
	for _, c := range targets {
		c := c
		g.Go(func() error {
			_ = c.SyncLoans(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return len(targets)
}
