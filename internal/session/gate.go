package session

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/noah-isme/sma-student-records/internal/models"
)

// Panel routes known to the gate.
const (
	PathRoot      = "/"
	PathLogin     = "/login"
	PathDashboard = "/dashboard"
	PathStudents  = "/dashboard/students"
)

// Subscriber is the push side of the identity collaborator.
type Subscriber interface {
	Subscribe(userID string, fn Listener) func()
}

// SignOuter ends the sessions of a user. Its outcome is not relied upon.
type SignOuter interface {
	SignOut(ctx context.Context, userID string)
}

// Decision is the outcome of guarding a route.
type Decision struct {
	Path     string `json:"path"`
	Redirect bool   `json:"redirect"`
	Found    bool   `json:"found"`
}

// Gate holds the current principal of one staff member. It subscribes to identity changes once at
// construction and must be closed to unsubscribe.
type Gate struct {
	userID   string
	identity SignOuter

	mu          sync.RWMutex
	current     *models.Principal
	onSignedOut []func()
	unsubscribe func()
}

// NewGate creates a gate seeded with the principal known at construction.
func NewGate(userID string, initial *models.Principal, source Subscriber, identity SignOuter) *Gate {
	g := &Gate{userID: userID, identity: identity, current: copyPrincipal(initial)}
	if source != nil {
		g.unsubscribe = source.Subscribe(userID, g.apply)
	}
	return g
}

// UserID returns the user the gate was created for.
func (g *Gate) UserID() string {
	return g.userID
}

// Current returns a copy of the principal, or nil when signed out.
func (g *Gate) Current() *models.Principal {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return copyPrincipal(g.current)
}

// Authenticated reports whether a principal is present.
func (g *Gate) Authenticated() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current != nil
}

// Resolve guards a panel route for the gate's principal.
func (g *Gate) Resolve(requested string) Decision {
	return Resolve(g.Authenticated(), requested)
}

// Resolve guards a panel route. The root sends visitors to the login view or the students page,
// the login view sends signed-in staff to the students page and the dashboard requires a
// principal. Unknown paths resolve unchanged and not found.
func Resolve(authed bool, requested string) Decision {
	p := path.Clean("/" + strings.TrimSpace(requested))

	switch {
	case p == PathRoot:
		if authed {
			return Decision{Path: PathStudents, Redirect: true, Found: true}
		}
		return Decision{Path: PathLogin, Redirect: true, Found: true}
	case p == PathLogin:
		if authed {
			return Decision{Path: PathStudents, Redirect: true, Found: true}
		}
		return Decision{Path: PathLogin, Found: true}
	case p == PathDashboard || p == PathStudents:
		if !authed {
			return Decision{Path: PathLogin, Redirect: true, Found: true}
		}
		return Decision{Path: p, Found: true}
	default:
		return Decision{Path: p}
	}
}

// OnSignedOut registers fn to run once the gate observes the principal going away.
func (g *Gate) OnSignedOut(fn func()) {
	g.mu.Lock()
	g.onSignedOut = append(g.onSignedOut, fn)
	g.mu.Unlock()
}

// SignOut asks the identity collaborator to end the sessions and clears the principal locally.
func (g *Gate) SignOut(ctx context.Context) {
	if g.identity != nil {
		g.identity.SignOut(ctx, g.userID)
	}
	g.apply(nil)
}

// Close unsubscribes from identity changes.
func (g *Gate) Close() {
	g.mu.Lock()
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (g *Gate) apply(principal *models.Principal) {
	g.mu.Lock()
	wasAuthed := g.current != nil
	g.current = copyPrincipal(principal)
	var hooks []func()
	if wasAuthed && principal == nil {
		hooks = append(hooks, g.onSignedOut...)
	}
	g.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func copyPrincipal(p *models.Principal) *models.Principal {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
