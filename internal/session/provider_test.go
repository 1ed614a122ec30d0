package session

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
)

type stubStore struct {
	mu          sync.Mutex
	profiles    map[string]*models.Profile
	fetchErr    map[string]error
	gates       map[string]chan struct{}
	provisioned []models.SessionUser
	provisionFn func(user models.SessionUser) (*models.Profile, error)
}

func newStubStore() *stubStore {
	return &stubStore{
		profiles: make(map[string]*models.Profile),
		fetchErr: make(map[string]error),
		gates:    make(map[string]chan struct{}),
	}
}

func (s *stubStore) FetchProfile(ctx context.Context, userID string) (*models.Profile, error) {
	s.mu.Lock()
	gate := s.gates[userID]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fetchErr[userID]; ok {
		return nil, err
	}
	if profile, ok := s.profiles[userID]; ok {
		copy := *profile
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubStore) ProvisionProfile(ctx context.Context, user models.SessionUser) (*models.Profile, error) {
	s.mu.Lock()
	s.provisioned = append(s.provisioned, user)
	fn := s.provisionFn
	s.mu.Unlock()
	if fn != nil {
		return fn(user)
	}
	profile := &models.Profile{
		ID:             user.ID,
		Email:          user.Email,
		Role:           models.RoleStudent,
		ApprovalStatus: models.ApprovalPending,
	}
	s.mu.Lock()
	s.profiles[user.ID] = profile
	s.mu.Unlock()
	copy := *profile
	return &copy, nil
}

func waitReady(t *testing.T, p *Provider) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return !p.Snapshot().IsLoading
	}, time.Second, 2*time.Millisecond)
	return p.Snapshot()
}

func TestStartWithoutSession(t *testing.T) {
	p := NewProvider(newStubStore(), zap.NewNop())
	assert.True(t, p.Snapshot().IsLoading)

	p.Start(context.Background(), func(context.Context) (*models.SessionUser, error) {
		return nil, nil
	})

	snap := p.Snapshot()
	assert.False(t, snap.IsLoading)
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Profile)
}

func TestStartWithLiveSession(t *testing.T) {
	store := newStubStore()
	store.profiles["u1"] = &models.Profile{ID: "u1", Email: "u1@example.com", Role: models.RoleAdmin, ApprovalStatus: models.ApprovalApproved}
	p := NewProvider(store, zap.NewNop())

	p.Start(context.Background(), func(context.Context) (*models.SessionUser, error) {
		return &models.SessionUser{ID: "u1", Email: "u1@example.com"}, nil
	})
	p.Wait()

	snap := p.Snapshot()
	assert.False(t, snap.IsLoading)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "u1", snap.Profile.ID)
	assert.True(t, snap.IsAdmin)
}

func TestMissingProfileIsProvisioned(t *testing.T) {
	store := newStubStore()
	p := NewProvider(store, zap.NewNop())

	p.HandleSessionChange(context.Background(), Event{Type: EventSignedIn, User: &models.SessionUser{ID: "u1", Email: "new@example.com"}})
	p.Wait()

	snap := p.Snapshot()
	require.NotNil(t, snap.Profile)
	assert.Equal(t, models.RoleStudent, snap.Profile.Role)
	assert.Equal(t, models.ApprovalPending, snap.Profile.ApprovalStatus)
	assert.Len(t, store.provisioned, 1)
}

func TestProvisionFailureDegrades(t *testing.T) {
	store := newStubStore()
	store.provisionFn = func(models.SessionUser) (*models.Profile, error) {
		return nil, errors.New("insert failed")
	}
	p := NewProvider(store, zap.NewNop())

	p.HandleSessionChange(context.Background(), Event{Type: EventSignedIn, User: &models.SessionUser{ID: "u1", Email: "u1@example.com"}})
	p.Wait()

	snap := p.Snapshot()
	assert.False(t, snap.IsLoading)
	require.NotNil(t, snap.User)
	assert.Nil(t, snap.Profile)
}

func TestFetchErrorDegrades(t *testing.T) {
	store := newStubStore()
	store.fetchErr["u1"] = errors.New("connection reset")
	p := NewProvider(store, zap.NewNop())

	p.HandleSessionChange(context.Background(), Event{Type: EventSignedIn, User: &models.SessionUser{ID: "u1", Email: "u1@example.com"}})
	p.Wait()

	snap := p.Snapshot()
	require.NotNil(t, snap.User)
	assert.Nil(t, snap.Profile)
	assert.False(t, snap.IsLoading)
	assert.Empty(t, store.provisioned)
}

func TestSlowFetchForPreviousUserIsDiscarded(t *testing.T) {
	store := newStubStore()
	store.profiles["u1"] = &models.Profile{ID: "u1", Email: "u1@example.com", Role: models.RoleAdmin, ApprovalStatus: models.ApprovalApproved}
	store.profiles["u2"] = &models.Profile{ID: "u2", Email: "u2@example.com", Role: models.RoleStudent, ApprovalStatus: models.ApprovalApproved}
	gate := make(chan struct{})
	store.gates["u1"] = gate

	p := NewProvider(store, zap.NewNop())
	ctx := context.Background()

	p.HandleSessionChange(ctx, Event{Type: EventSignedIn, User: &models.SessionUser{ID: "u1", Email: "u1@example.com"}})
	p.HandleSessionChange(ctx, Event{Type: EventSignedIn, User: &models.SessionUser{ID: "u2", Email: "u2@example.com"}})

	snap := waitReady(t, p)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "u2", snap.Profile.ID)

	// Let u1's fetch resolve late; it must not clobber u2's state.
	close(gate)
	p.Wait()

	snap = p.Snapshot()
	require.NotNil(t, snap.User)
	assert.Equal(t, "u2", snap.User.ID)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "u2", snap.Profile.ID)
	assert.False(t, snap.IsAdmin)
}

func TestSignOutDuringFetch(t *testing.T) {
	store := newStubStore()
	store.profiles["u1"] = &models.Profile{ID: "u1", Email: "u1@example.com", Role: models.RoleStudent, ApprovalStatus: models.ApprovalApproved}
	gate := make(chan struct{})
	store.gates["u1"] = gate

	p := NewProvider(store, zap.NewNop())
	ctx := context.Background()

	p.HandleSessionChange(ctx, Event{Type: EventSignedIn, User: &models.SessionUser{ID: "u1", Email: "u1@example.com"}})
	p.HandleSessionChange(ctx, Event{Type: EventSignedOut})
	close(gate)
	p.Wait()

	snap := p.Snapshot()
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Profile)
	assert.False(t, snap.IsLoading)
}

func TestUserChangeResetsProfileBeforeFetchResolves(t *testing.T) {
	store := newStubStore()
	store.profiles["u1"] = &models.Profile{ID: "u1", Email: "u1@example.com", Role: models.RoleAdmin, ApprovalStatus: models.ApprovalApproved}
	store.profiles["u2"] = &models.Profile{ID: "u2", Email: "u2@example.com", Role: models.RoleStudent, ApprovalStatus: models.ApprovalApproved}
	p := NewProvider(store, zap.NewNop())
	ctx := context.Background()

	p.HandleSessionChange(ctx, Event{Type: EventSignedIn, User: &models.SessionUser{ID: "u1", Email: "u1@example.com"}})
	p.Wait()
	require.NotNil(t, p.Snapshot().Profile)

	gate := make(chan struct{})
	store.mu.Lock()
	store.gates["u2"] = gate
	store.mu.Unlock()

	p.HandleSessionChange(ctx, Event{Type: EventSignedIn, User: &models.SessionUser{ID: "u2", Email: "u2@example.com"}})

	snap := p.Snapshot()
	assert.True(t, snap.IsLoading)
	assert.Nil(t, snap.Profile, "stale profile must not survive a user change")
	require.NotNil(t, snap.User)
	assert.Equal(t, "u2", snap.User.ID)

	close(gate)
	p.Wait()
	snap = p.Snapshot()
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "u2", snap.Profile.ID)
}

func TestTokenRefreshKeepsProfilePipeline(t *testing.T) {
	store := newStubStore()
	store.profiles["u1"] = &models.Profile{ID: "u1", Email: "u1@example.com", Role: models.RoleStudent, ApprovalStatus: models.ApprovalApproved}
	p := NewProvider(store, zap.NewNop())
	ctx := context.Background()

	p.HandleSessionChange(ctx, Event{Type: EventSignedIn, User: &models.SessionUser{ID: "u1", Email: "u1@example.com"}})
	p.Wait()
	p.HandleSessionChange(ctx, Event{Type: EventTokenRefreshed, User: &models.SessionUser{ID: "u1", Email: "u1@example.com"}})
	p.Wait()

	snap := p.Snapshot()
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "u1", snap.Profile.ID)
	assert.False(t, snap.IsLoading)
}

func TestSubscribeNotifications(t *testing.T) {
	store := newStubStore()
	store.profiles["u1"] = &models.Profile{ID: "u1", Email: "u1@example.com", Role: models.RoleStudent, ApprovalStatus: models.ApprovalApproved}
	p := NewProvider(store, zap.NewNop())

	var mu sync.Mutex
	var seen []Snapshot
	unsubscribe := p.Subscribe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	p.HandleSessionChange(context.Background(), Event{Type: EventSignedIn, User: &models.SessionUser{ID: "u1", Email: "u1@example.com"}})
	p.Wait()

	mu.Lock()
	count := len(seen)
	last := seen[count-1]
	mu.Unlock()
	require.GreaterOrEqual(t, count, 2)
	assert.False(t, last.IsLoading)
	require.NotNil(t, last.Profile)

	unsubscribe()
	p.HandleSessionChange(context.Background(), Event{Type: EventSignedOut})
	mu.Lock()
	assert.Equal(t, count, len(seen))
	mu.Unlock()
}
