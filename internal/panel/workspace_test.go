package panel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-student-records/internal/models"
	"github.com/noah-isme/sma-student-records/internal/session"
)

type hubIdentity struct {
	hub *session.Hub
}

func (h hubIdentity) SignOut(ctx context.Context, userID string) {
	_ = h.hub.Publish(ctx, userID, nil)
}

type countingObserver struct {
	opened, closed int
}

func (c *countingObserver) WorkspaceOpened() { c.opened++ }
func (c *countingObserver) WorkspaceClosed() { c.closed++ }

func principal(id, email string) *models.Principal {
	return &models.Principal{UserID: id, Email: email, Role: models.RoleStaff}
}

func TestRegistryAcquireLoadsOnce(t *testing.T) {
	store := seededStore()
	hub := session.NewHub(nil, "identity", nil)
	metrics := &countingObserver{}
	registry := NewRegistry(store, hub, hubIdentity{hub: hub}, metrics, nil)

	first := registry.Acquire(context.Background(), principal("u1", "ann@x.com"))
	second := registry.Acquire(context.Background(), principal("u1", "ann@x.com"))

	assert.Same(t, first, second)
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, 1, metrics.opened)
	assert.Equal(t, []string{"list"}, store.calls)
	assert.Len(t, first.Controller.Visible(), 2)
	assert.True(t, first.Gate.Authenticated())
}

func TestRegistryWorkspacesAreIsolated(t *testing.T) {
	hub := session.NewHub(nil, "identity", nil)
	registry := NewRegistry(seededStore(), hub, hubIdentity{hub: hub}, nil, nil)

	ann := registry.Acquire(context.Background(), principal("u1", "ann@x.com"))
	bob := registry.Acquire(context.Background(), principal("u2", "bob@x.com"))

	ann.Theme.Toggle()
	ann.Controller.SetSearch("bob")

	assert.Equal(t, ThemeLight, bob.Theme.Mode())
	assert.Len(t, bob.Controller.Visible(), 2)
}

func TestRegistryTearsDownOnSignOut(t *testing.T) {
	hub := session.NewHub(nil, "identity", nil)
	metrics := &countingObserver{}
	registry := NewRegistry(seededStore(), hub, hubIdentity{hub: hub}, metrics, nil)

	ws := registry.Acquire(context.Background(), principal("u1", "ann@x.com"))
	require.Equal(t, 1, hub.Subscribers("u1"))

	ws.Gate.SignOut(context.Background())

	_, ok := registry.Lookup("u1")
	assert.False(t, ok)
	assert.Zero(t, hub.Subscribers("u1"))
	assert.Equal(t, 1, metrics.closed)
	assert.Equal(t, session.Decision{Path: session.PathLogin, Redirect: true, Found: true}, ws.Gate.Resolve("/dashboard/students"))
}

func TestRegistrySignOutPushedFromElsewhere(t *testing.T) {
	hub := session.NewHub(nil, "identity", nil)
	registry := NewRegistry(seededStore(), hub, hubIdentity{hub: hub}, nil, nil)
	registry.Acquire(context.Background(), principal("u1", "ann@x.com"))

	require.NoError(t, hub.Publish(context.Background(), "u1", nil))

	assert.Zero(t, registry.Len())
}

func TestRegistryClose(t *testing.T) {
	hub := session.NewHub(nil, "identity", nil)
	registry := NewRegistry(seededStore(), hub, hubIdentity{hub: hub}, nil, nil)
	registry.Acquire(context.Background(), principal("u1", "ann@x.com"))
	registry.Acquire(context.Background(), principal("u2", "bob@x.com"))

	registry.Close()

	assert.Zero(t, registry.Len())
	assert.Zero(t, hub.Subscribers("u1"))
	assert.Zero(t, hub.Subscribers("u2"))
}

func TestWorkspaceShell(t *testing.T) {
	hub := session.NewHub(nil, "identity", nil)
	registry := NewRegistry(seededStore(), hub, hubIdentity{hub: hub}, nil, nil)
	ws := registry.Acquire(context.Background(), principal("u1", "ann@x.com"))

	shell := ws.Shell()
	assert.Equal(t, "Student Portal", shell.Title)
	assert.Equal(t, "ann@x.com", shell.Email)
	assert.Equal(t, "A", shell.Initial)
	assert.Equal(t, ThemeLight, shell.Theme)
	assert.Equal(t, "#1976d2", shell.Palette.Primary)
	require.Len(t, shell.Nav, 2)
	assert.Equal(t, session.PathStudents, shell.Nav[0].Path)

	assert.Equal(t, ThemeDark, ws.Theme.Toggle())
	assert.Equal(t, "#90caf9", ws.Shell().Palette.Primary)
	assert.Equal(t, ThemeLight, ws.Theme.Toggle())
}
