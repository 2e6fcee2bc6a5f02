package panel

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-student-records/internal/models"
	"github.com/noah-isme/sma-student-records/internal/session"
)

const shellTitle = "Student Portal"

// NavItem is one entry of the dashboard drawer.
type NavItem struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Path  string `json:"path"`
}

// NavItems are the drawer entries of the dashboard.
var NavItems = []NavItem{
	{Key: "students", Label: "Students", Path: session.PathStudents},
	{Key: "courses", Label: "Courses", Path: "/dashboard/courses"},
}

// Shell is what the app bar and drawer render.
type Shell struct {
	Title       string    `json:"title"`
	Email       string    `json:"email"`
	Initial     string    `json:"initial"`
	Theme       ThemeMode `json:"theme"`
	Palette     Palette   `json:"palette"`
	Nav         []NavItem `json:"nav"`
	SignOutPath string    `json:"sign_out_path"`
}

// Workspace is the server-side panel of one staff member: who is signed in, the record list
// state and the colour mode.
type Workspace struct {
	UserID     string
	Gate       *session.Gate
	Controller *Controller
	Theme      *Theme
}

// Shell describes the dashboard chrome for the current principal.
func (w *Workspace) Shell() Shell {
	var email string
	if principal := w.Gate.Current(); principal != nil {
		email = principal.Email
	}
	nav := make([]NavItem, len(NavItems))
	copy(nav, NavItems)
	return Shell{
		Title:       shellTitle,
		Email:       email,
		Initial:     Initial(email),
		Theme:       w.Theme.Mode(),
		Palette:     w.Theme.Palette(),
		Nav:         nav,
		SignOutPath: session.PathLogin,
	}
}

// Initial is the upper-cased first letter of an email, shown in the avatar.
func Initial(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(email)
	return string(unicode.ToUpper(r))
}

type workspaceObserver interface {
	WorkspaceOpened()
	WorkspaceClosed()
}

// Registry keeps one workspace per signed-in user. A workspace is torn down when its gate observes
// sign-out or when the registry closes.
type Registry struct {
	store    RecordStore
	source   session.Subscriber
	identity session.SignOuter
	metrics  workspaceObserver
	logger   *zap.Logger
	now      func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(store RecordStore, source session.Subscriber, identity session.SignOuter, metrics workspaceObserver, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:      store,
		source:     source,
		identity:   identity,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
		workspaces: make(map[string]*Workspace),
	}
}

// Acquire returns the workspace of the principal, creating it and loading the record list on first
// use.
func (r *Registry) Acquire(ctx context.Context, principal *models.Principal) *Workspace {
	r.mu.Lock()
	if ws, ok := r.workspaces[principal.UserID]; ok {
		r.mu.Unlock()
		return ws
	}

	ws := &Workspace{
		UserID:     principal.UserID,
		Gate:       session.NewGate(principal.UserID, principal, r.source, r.identity),
		Controller: NewController(r.store, r.logger.With(zap.String("user_id", principal.UserID)), r.now),
		Theme:      NewTheme(),
	}
	ws.Gate.OnSignedOut(func() { r.release(ws) })
	r.workspaces[principal.UserID] = ws
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.WorkspaceOpened()
	}
	r.logger.Debug("panel workspace opened", zap.String("user_id", principal.UserID))
	ws.Controller.Load(ctx)
	return ws
}

// Lookup returns the workspace of userID if one is live.
func (r *Registry) Lookup(userID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[userID]
	return ws, ok
}

// Len reports the number of live workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Close tears down every workspace.
func (r *Registry) Close() {
	r.mu.Lock()
	live := make([]*Workspace, 0, len(r.workspaces))
	for _, ws := range r.workspaces {
		live = append(live, ws)
	}
	r.mu.Unlock()

	for _, ws := range live {
		r.release(ws)
	}
}

func (r *Registry) release(ws *Workspace) {
	r.mu.Lock()
	current, ok := r.workspaces[ws.UserID]
	if !ok || current != ws {
		r.mu.Unlock()
		return
	}
	delete(r.workspaces, ws.UserID)
	r.mu.Unlock()

	ws.Gate.Close()
	if r.metrics != nil {
		r.metrics.WorkspaceClosed()
	}
	r.logger.Debug("panel workspace closed", zap.String("user_id", ws.UserID))
}
