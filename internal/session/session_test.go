package session

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-student-records/internal/models"
)

type hubSignOuter struct {
	hub   *Hub
	calls []string
}

func (s *hubSignOuter) SignOut(ctx context.Context, userID string) {
	s.calls = append(s.calls, userID)
	_ = s.hub.Publish(ctx, userID, nil)
}

func staff() *models.Principal {
	return &models.Principal{UserID: "u1", Email: "staff@example.com", Role: models.RoleStaff}
}

func TestHubDeliversOnlyToUser(t *testing.T) {
	hub := NewHub(nil, "identity", nil)
	var got []*models.Principal
	var other int
	hub.Subscribe("u1", func(p *models.Principal) { got = append(got, p) })
	hub.Subscribe("u2", func(p *models.Principal) { other++ })

	require.NoError(t, hub.Publish(context.Background(), "u1", staff()))
	require.NoError(t, hub.Publish(context.Background(), "u1", nil))

	require.Len(t, got, 2)
	assert.Equal(t, "staff@example.com", got[0].Email)
	assert.Nil(t, got[1])
	assert.Zero(t, other)
}

func TestHubUnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub(nil, "identity", nil)
	calls := 0
	unsubscribe := hub.Subscribe("u1", func(*models.Principal) { calls++ })
	assert.Equal(t, 1, hub.Subscribers("u1"))

	unsubscribe()
	unsubscribe()
	require.NoError(t, hub.Publish(context.Background(), "u1", staff()))

	assert.Zero(t, calls)
	assert.Zero(t, hub.Subscribers("u1"))
}

func TestHubRunWithoutRedisStopsWithContext(t *testing.T) {
	hub := NewHub(nil, "identity", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.Run(ctx)
}

func TestGateResolve(t *testing.T) {
	signedIn := NewGate("u1", staff(), nil, nil)
	signedOut := NewGate("u1", nil, nil, nil)

	cases := []struct {
		name string
		gate *Gate
		path string
		want Decision
	}{
		{"root signed out", signedOut, "/", Decision{Path: PathLogin, Redirect: true, Found: true}},
		{"root signed in", signedIn, "/", Decision{Path: PathStudents, Redirect: true, Found: true}},
		{"login signed out", signedOut, "/login", Decision{Path: PathLogin, Found: true}},
		{"login signed in", signedIn, "/login", Decision{Path: PathStudents, Redirect: true, Found: true}},
		{"dashboard signed out", signedOut, "/dashboard/students", Decision{Path: PathLogin, Redirect: true, Found: true}},
		{"dashboard signed in", signedIn, "/dashboard", Decision{Path: PathDashboard, Found: true}},
		{"trailing slash", signedIn, "/dashboard/students/", Decision{Path: PathStudents, Found: true}},
		{"unknown page", signedIn, "/dashboard/courses", Decision{Path: "/dashboard/courses"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.gate.Resolve(tc.path))
		})
	}
}

func TestGateFollowsPushedIdentity(t *testing.T) {
	hub := NewHub(nil, "identity", nil)
	gate := NewGate("u1", nil, hub, nil)
	defer gate.Close()

	assert.False(t, gate.Authenticated())
	require.NoError(t, hub.Publish(context.Background(), "u1", staff()))
	require.True(t, gate.Authenticated())
	assert.Equal(t, "staff@example.com", gate.Current().Email)

	current := gate.Current()
	current.Email = "mutated@example.com"
	assert.Equal(t, "staff@example.com", gate.Current().Email)
}

func TestGateSignOutRunsHooksOnce(t *testing.T) {
	hub := NewHub(nil, "identity", nil)
	identity := &hubSignOuter{hub: hub}
	gate := NewGate("u1", staff(), hub, identity)
	hooks := 0
	gate.OnSignedOut(func() {
		hooks++
		gate.Close()
	})

	gate.SignOut(context.Background())

	assert.Equal(t, []string{"u1"}, identity.calls)
	assert.False(t, gate.Authenticated())
	assert.Equal(t, 1, hooks)
	assert.Zero(t, hub.Subscribers("u1"))
}

func TestGateCloseStopsUpdates(t *testing.T) {
	hub := NewHub(nil, "identity", nil)
	gate := NewGate("u1", nil, hub, nil)
	gate.Close()

	require.NoError(t, hub.Publish(context.Background(), "u1", staff()))
	assert.False(t, gate.Authenticated())
}

func TestHubWatchersSeeEveryUser(t *testing.T) {
	hub := NewHub(nil, "identity", nil)
	at := time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC)
	hub.now = func() time.Time { return at }

	type seen struct {
		userID string
		authed bool
		at     time.Time
	}
	var got []seen
	stop := hub.Watch(func(userID string, p *models.Principal, when time.Time) {
		got = append(got, seen{userID: userID, authed: p != nil, at: when})
	})

	require.NoError(t, hub.Publish(context.Background(), "u1", staff()))
	require.NoError(t, hub.Publish(context.Background(), "u2", nil))
	stop()
	stop()
	require.NoError(t, hub.Publish(context.Background(), "u3", nil))

	assert.Equal(t, []seen{{"u1", true, at}, {"u2", false, at}}, got)
}

func TestHubHandleRelayedPayload(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	hub := NewHub(nil, "identity", zap.New(core))
	revocations := NewRevocations(time.Hour)
	hub.Watch(revocations.Observe)
	var got []*models.Principal
	hub.Subscribe("u1", func(p *models.Principal) { got = append(got, p) })

	hub.handle(`{"user_id":"u1","principal":null,"at":"` + time.Now().UTC().Format(time.RFC3339Nano) + `"}`)
	hub.handle(`not json`)

	require.Len(t, got, 1)
	assert.Nil(t, got[0])
	assert.Equal(t, 1, revocations.Len())
	assert.Equal(t, 1, logs.FilterMessage("discarding malformed identity event").Len())
}

func TestHubRunRetriesUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	core, logs := observer.New(zap.WarnLevel)
	hub := NewHub(client, "identity", zap.New(core))
	hub.retryMin = 5 * time.Millisecond
	hub.retryMax = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop with its context")
	}
	assert.GreaterOrEqual(t, logs.FilterMessage("identity relay interrupted, retrying").Len(), 2)
}

func TestRevocations(t *testing.T) {
	now := time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC)
	revocations := NewRevocations(time.Hour)
	revocations.now = func() time.Time { return now }

	signedOut := now.Add(-10 * time.Minute)
	revocations.Observe("u1", staff(), signedOut)
	assert.False(t, revocations.Revoked("u1", signedOut.Add(-time.Minute)))

	revocations.Observe("u1", nil, signedOut)
	assert.True(t, revocations.Revoked("u1", signedOut.Add(-time.Minute)))
	assert.True(t, revocations.Revoked("u1", signedOut))
	assert.True(t, revocations.Revoked("u1", time.Time{}))
	assert.False(t, revocations.Revoked("u1", signedOut.Add(time.Millisecond)))
	assert.False(t, revocations.Revoked("u2", signedOut.Add(-time.Minute)))

	revocations.Revoke("u1", signedOut.Add(-time.Minute))
	assert.True(t, revocations.Revoked("u1", signedOut), "an earlier sign-out must not replace a later one")

	now = now.Add(2 * time.Hour)
	assert.False(t, revocations.Revoked("u1", signedOut.Add(-time.Minute)))
	revocations.Revoke("u2", now)
	assert.Equal(t, 1, revocations.Len())
}

func TestResolveWithoutGate(t *testing.T) {
	assert.Equal(t, Decision{Path: PathLogin, Redirect: true, Found: true}, Resolve(false, "/dashboard"))
	assert.Equal(t, Decision{Path: PathStudents, Found: true}, Resolve(true, "/dashboard/students/"))
}
