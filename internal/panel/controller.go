// Package panel holds the per-user dashboard state: the record form, the list and modal view
// state, the colour theme and the registry of live workspaces.
package panel

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-student-records/internal/models"
	"github.com/noah-isme/sma-student-records/internal/search"
	appErrors "github.com/noah-isme/sma-student-records/pkg/errors"
)

// RecordStore is the student store as seen by the list controller.
type RecordStore interface {
	ListAll(ctx context.Context) ([]models.Student, error)
	Create(ctx context.Context, student models.Student) (*models.Student, error)
	Update(ctx context.Context, id string, student models.Student) (*models.Student, error)
	Delete(ctx context.Context, id string) error
}

// FormState describes the record form modal.
type FormState struct {
	Open  bool            `json:"open"`
	Mode  FormMode        `json:"mode"`
	Draft *models.Student `json:"draft,omitempty"`
}

// DeleteState describes the delete confirmation modal.
type DeleteState struct {
	Open      bool   `json:"open"`
	PendingID string `json:"pending_id,omitempty"`
}

// State is a point-in-time copy of the view state.
type State struct {
	Records       []models.Student `json:"records"`
	Total         int              `json:"total"`
	Search        string           `json:"search"`
	Loading       bool             `json:"loading"`
	Selected      *models.Student  `json:"selected"`
	Form          FormState        `json:"form"`
	DetailOpen    bool             `json:"detail_open"`
	DeleteConfirm DeleteState      `json:"delete_confirm"`
}

// Controller owns the record list and the modal flags of one workspace. Store failures during
// load and writes are logged and swallowed, leaving the displayed list stale. The mutex guards
// state only and is never held across store calls, so concurrent writes race and the last load to
// finish wins.
type Controller struct {
	store  RecordStore
	logger *zap.Logger

	mu         sync.Mutex
	records    []models.Student
	selected   *models.Student
	form       *Form
	detailOpen bool
	deleteOpen bool
	pendingID  string
	search     string
	loading    bool
}

// NewController creates a controller with an empty list. now feeds the form's default dates.
func NewController(store RecordStore, logger *zap.Logger, now func() time.Time) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:   store,
		logger:  logger,
		form:    NewForm(now),
		records: []models.Student{},
	}
}

// Load replaces the list with the store contents. A failure keeps the previous list.
func (c *Controller) Load(ctx context.Context) {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	records, err := c.store.ListAll(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.logger.Error("failed to load students", zap.Error(err))
		return
	}
	c.records = records
}

// Submit updates the selected record or creates a new one, then reloads.
func (c *Controller) Submit(ctx context.Context, record models.Student) {
	c.mu.Lock()
	var id string
	if c.selected != nil {
		id = c.selected.ID
	}
	c.mu.Unlock()

	c.submitTo(ctx, id, record)
}

func (c *Controller) submitTo(ctx context.Context, id string, record models.Student) {
	var err error
	if id != "" {
		_, err = c.store.Update(ctx, id, record)
	} else {
		_, err = c.store.Create(ctx, record)
	}
	if err != nil {
		c.logger.Error("failed to save student", zap.String("student_id", id), zap.Error(err))
	}
	c.Load(ctx)
}

// OpenCreate opens the form with a blank draft and clears any selection. Submitting it always
// creates a new record, even right after View selected another one; it never updates the viewed
// record.
func (c *Controller) OpenCreate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = nil
	c.form.OpenCreate()
}

// Edit selects the record and opens the form on it.
func (c *Controller) Edit(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.find(id)
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	c.selected = &record
	c.form.OpenEdit(record)
	return nil
}

// View selects the record and opens the detail modal.
func (c *Controller) View(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.find(id)
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	c.selected = &record
	c.detailOpen = true
	return nil
}

// CloseForm cancels the form and clears the selection.
func (c *Controller) CloseForm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.Close()
	c.selected = nil
}

// CloseDetail hides the detail modal. The selection survives while the form still uses it.
func (c *Controller) CloseDetail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detailOpen = false
	if !c.form.IsOpen() {
		c.selected = nil
	}
}

// ApplyDraft merges a field edit into the open draft.
func (c *Controller) ApplyDraft(patch DraftPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form.Apply(patch)
}

// ToggleSubject flips one subject of the open draft.
func (c *Controller) ToggleSubject(subject string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form.ToggleSubject(subject)
}

// SubmitForm validates the draft and, when it passes, closes the form before the write is
// issued. Validation failures keep the form open. Store failures are not reported.
func (c *Controller) SubmitForm(ctx context.Context) error {
	c.mu.Lock()
	var id string
	if c.selected != nil {
		id = c.selected.ID
	}
	var record models.Student
	err := c.form.Submit(ctx, func(_ context.Context, r models.Student) { record = r })
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.selected = nil
	c.mu.Unlock()

	c.submitTo(ctx, id, record)
	return nil
}

// RequestDelete opens the confirmation for id.
func (c *Controller) RequestDelete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingID = id
	c.deleteOpen = true
}

// ConfirmDelete deletes the pending record, reloads and closes the confirmation.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	if !c.deleteOpen {
		c.mu.Unlock()
		return appErrors.Clone(appErrors.ErrNoPendingDelete, "")
	}
	id := c.pendingID
	c.mu.Unlock()

	if err := c.store.Delete(ctx, id); err != nil {
		c.logger.Error("failed to delete student", zap.String("student_id", id), zap.Error(err))
	}
	c.Load(ctx)

	c.mu.Lock()
	c.deleteOpen = false
	c.pendingID = ""
	c.mu.Unlock()
	return nil
}

// CancelDelete closes the confirmation without deleting.
func (c *Controller) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteOpen = false
	c.pendingID = ""
}

// SetSearch replaces the search text.
func (c *Controller) SetSearch(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search = query
}

// Visible returns the records matching the search text.
func (c *Controller) Visible() []models.Student {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible()
}

// Record returns a copy of a listed record.
func (c *Controller) Record(id string) (models.Student, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.find(id)
}

// Snapshot copies the whole view state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := State{
		Records:       c.visible(),
		Total:         len(c.records),
		Search:        c.search,
		Loading:       c.loading,
		DetailOpen:    c.detailOpen,
		DeleteConfirm: DeleteState{Open: c.deleteOpen, PendingID: c.pendingID},
		Form:          FormState{Open: c.form.IsOpen(), Mode: c.form.Mode()},
	}
	if c.selected != nil {
		selected := c.selected.Clone()
		state.Selected = &selected
	}
	if draft, ok := c.form.Draft(); ok {
		record := draft.Record()
		state.Form.Draft = &record
	}
	return state
}

func (c *Controller) visible() []models.Student {
	matched := search.Filter(c.records, c.search)
	out := make([]models.Student, len(matched))
	for i, record := range matched {
		out[i] = record.Clone()
	}
	return out
}

func (c *Controller) find(id string) (models.Student, bool) {
	for _, record := range c.records {
		if record.ID == id {
			return record.Clone(), true
		}
	}
	return models.Student{}, false
}
