// Package session owns the in-memory user/profile state for one logical
// client session: it reconciles session-change events from the auth layer
// with the profile store and publishes a read-only snapshot to consumers.
package session

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
)

// ProfileStore resolves and provisions profiles for session users.
// FetchProfile returns sql.ErrNoRows when no row exists for the id.
// ProvisionProfile must be idempotent: racing a concurrent insert for the
// same id resolves to the existing row instead of failing.
type ProfileStore interface {
	FetchProfile(ctx context.Context, userID string) (*models.Profile, error)
	ProvisionProfile(ctx context.Context, user models.SessionUser) (*models.Profile, error)
}

// EventType labels a session-change event.
type EventType string

const (
	EventSignedIn       EventType = "signed_in"
	EventSignedOut      EventType = "signed_out"
	EventTokenRefreshed EventType = "token_refreshed"
)

// Event is a session-change notification from the auth transport.
type Event struct {
	Type EventType
	User *models.SessionUser
}

// Snapshot is the read-only view consumers receive. Profile may be nil while
// User is set; that means "profile unavailable", not "unauthenticated".
type Snapshot struct {
	User      *models.SessionUser
	Profile   *models.Profile
	IsLoading bool
	IsAdmin   bool
}

// Provider is the single source of truth for "who is the current actor".
// Every session-change event restarts the profile pipeline; resolutions are
// keyed by an epoch so a slow fetch for a previous user can never overwrite
// state that belongs to a later one.
type Provider struct {
	store  ProfileStore
	logger *zap.Logger

	mu        sync.Mutex
	user      *models.SessionUser
	profile   *models.Profile
	isLoading bool
	epoch     uint64

	subs    map[int]func(Snapshot)
	nextSub int

	wg sync.WaitGroup
}

// NewProvider constructs a Provider in its initial loading state.
func NewProvider(store ProfileStore, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		store:     store,
		logger:    logger,
		isLoading: true,
		subs:      make(map[int]func(Snapshot)),
	}
}

// Start performs the one-time session probe. A nil user from the probe leaves
// the provider in the signed-out state with loading finished.
func (p *Provider) Start(ctx context.Context, probe func(context.Context) (*models.SessionUser, error)) {
	user, err := probe(ctx)
	if err != nil {
		p.logger.Warn("session probe failed", zap.Error(err))
		user = nil
	}
	if user == nil {
		p.applySignedOut()
		return
	}
	p.HandleSessionChange(ctx, Event{Type: EventSignedIn, User: user})
}

// HandleSessionChange re-enters the user to profile pipeline for any
// sign-in, sign-out, or token refresh event.
func (p *Provider) HandleSessionChange(ctx context.Context, ev Event) {
	if ev.Type == EventSignedOut || ev.User == nil {
		p.applySignedOut()
		return
	}

	p.mu.Lock()
	userChanged := p.user == nil || p.user.ID != ev.User.ID
	u := *ev.User
	p.user = &u
	if userChanged {
		// Never let one user's gated view render with another user's role.
		p.profile = nil
	}
	p.isLoading = true
	p.epoch++
	epoch := p.epoch
	p.mu.Unlock()
	p.notify()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		profile, degraded := p.resolveProfile(ctx, u)
		p.applyResolution(epoch, u.ID, profile, degraded)
	}()
}

// Snapshot returns a copy of the current state.
func (p *Provider) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Subscribe registers an observer invoked on every state change. The returned
// function removes the subscription.
func (p *Provider) Subscribe(fn func(Snapshot)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Wait blocks until all in-flight profile resolutions settle. Intended for
// shutdown and tests.
func (p *Provider) Wait() {
	p.wg.Wait()
}

func (p *Provider) resolveProfile(ctx context.Context, user models.SessionUser) (*models.Profile, bool) {
	profile, err := p.store.FetchProfile(ctx, user.ID)
	if err == nil {
		return profile, false
	}
	if !errors.Is(err, sql.ErrNoRows) {
		p.logger.Warn("profile fetch failed", zap.String("user_id", user.ID), zap.Error(err))
		return nil, true
	}

	provisioned, err := p.store.ProvisionProfile(ctx, user)
	if err != nil {
		p.logger.Warn("profile provisioning failed", zap.String("user_id", user.ID), zap.Error(err))
		return nil, true
	}
	return provisioned, false
}

func (p *Provider) applyResolution(epoch uint64, userID string, profile *models.Profile, degraded bool) {
	p.mu.Lock()
	stale := epoch != p.epoch || p.user == nil || p.user.ID != userID
	if stale {
		p.mu.Unlock()
		p.logger.Debug("discarding stale profile resolution", zap.String("user_id", userID))
		return
	}
	if degraded {
		p.profile = nil
	} else {
		p.profile = profile
	}
	p.isLoading = false
	p.mu.Unlock()
	p.notify()
}

func (p *Provider) applySignedOut() {
	p.mu.Lock()
	p.user = nil
	p.profile = nil
	p.isLoading = false
	p.epoch++
	p.mu.Unlock()
	p.notify()
}

func (p *Provider) snapshotLocked() Snapshot {
	snap := Snapshot{IsLoading: p.isLoading}
	if p.user != nil {
		u := *p.user
		snap.User = &u
	}
	if p.profile != nil {
		prof := *p.profile
		snap.Profile = &prof
		snap.IsAdmin = prof.Role == models.RoleAdmin
	}
	return snap
}

func (p *Provider) notify() {
	p.mu.Lock()
	snap := p.snapshotLocked()
	observers := make([]func(Snapshot), 0, len(p.subs))
	for _, fn := range p.subs {
		observers = append(observers, fn)
	}
	p.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}
