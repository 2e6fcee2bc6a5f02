package panel

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/noah-isme/sma-student-records/internal/models"
	appErrors "github.com/noah-isme/sma-student-records/pkg/errors"
)

// FormMode is the lifecycle state of the record form.
type FormMode string

const (
	FormClosed FormMode = "closed"
	FormCreate FormMode = "create"
	FormEdit   FormMode = "edit"
)

const minPhoneLength = 10

// Draft is the working copy of a student's fields while the form is open.
type Draft struct {
	FirstName        string
	LastName         string
	Class            int
	Section          string
	RollNumber       int
	DOB              time.Time
	Email            string
	Phone            string
	Address          string
	ParentName       string
	EnrollmentDate   time.Time
	Status           models.StudentStatus
	Subjects         []string
	Gender           models.Gender
	BloodGroup       string
	FeesPaid         bool
	EmergencyContact string
	PreviousSchool   string
	Remarks          string
}

// defaultDraft is the blank record offered when adding a student.
func defaultDraft(today time.Time) Draft {
	return Draft{
		Section:        "A",
		DOB:            today,
		EnrollmentDate: today,
		Status:         models.StudentStatusActive,
		Subjects:       []string{},
		Gender:         models.GenderMale,
	}
}

func draftFromRecord(s models.Student) Draft {
	subjects := append([]string{}, s.Subjects...)
	return Draft{
		FirstName:        s.FirstName,
		LastName:         s.LastName,
		Class:            s.Class,
		Section:          s.Section,
		RollNumber:       s.RollNumber,
		DOB:              parseDate(s.DOB),
		Email:            s.Email,
		Phone:            s.Phone,
		Address:          s.Address,
		ParentName:       s.ParentName,
		EnrollmentDate:   parseDate(s.EnrollmentDate),
		Status:           s.Status,
		Subjects:         subjects,
		Gender:           s.Gender,
		BloodGroup:       s.BloodGroup,
		FeesPaid:         s.FeesPaid,
		EmergencyContact: s.EmergencyContact,
		PreviousSchool:   s.PreviousSchool,
		Remarks:          s.Remarks,
	}
}

// Validate applies the required-field rules of the form. Failure rejects the whole draft
// without saying which field was wrong. Phone length counts code points, so a number written with
// characters outside the Basic Multilingual Plane counts each of them once, and names consisting
// only of U+FEFF are not blank.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.FirstName) == "" ||
		strings.TrimSpace(d.LastName) == "" ||
		!strings.Contains(d.Email, "@") ||
		utf8.RuneCountInString(d.Phone) < minPhoneLength {
		return appErrors.Clone(appErrors.ErrValidationFailed, "")
	}
	return nil
}

// Record renders the draft as a student record with dates in models.DateLayout. Identity and
// creation time are left to the store.
func (d Draft) Record() models.Student {
	return models.Student{
		FirstName:        d.FirstName,
		LastName:         d.LastName,
		Class:            d.Class,
		Section:          d.Section,
		RollNumber:       d.RollNumber,
		DOB:              formatDate(d.DOB),
		Email:            d.Email,
		Phone:            d.Phone,
		Address:          d.Address,
		ParentName:       d.ParentName,
		EnrollmentDate:   formatDate(d.EnrollmentDate),
		Status:           d.Status,
		Subjects:         append([]string{}, d.Subjects...),
		Gender:           d.Gender,
		BloodGroup:       d.BloodGroup,
		FeesPaid:         d.FeesPaid,
		EmergencyContact: d.EmergencyContact,
		PreviousSchool:   d.PreviousSchool,
		Remarks:          d.Remarks,
	}
}

func (d Draft) hasSubject(subject string) bool {
	return contains(d.Subjects, subject)
}

// DraftPatch carries the fields changed by one edit; nil fields are left untouched.
type DraftPatch struct {
	FirstName        *string   `json:"first_name"`
	LastName         *string   `json:"last_name"`
	Class            *int      `json:"class"`
	Section          *string   `json:"section"`
	RollNumber       *int      `json:"roll_number"`
	DOB              *string   `json:"dob"`
	Email            *string   `json:"email"`
	Phone            *string   `json:"phone"`
	Address          *string   `json:"address"`
	ParentName       *string   `json:"parent_name"`
	EnrollmentDate   *string   `json:"enrollment_date"`
	Status           *string   `json:"status"`
	Subjects         *[]string `json:"subjects"`
	Gender           *string   `json:"gender"`
	BloodGroup       *string   `json:"blood_group"`
	FeesPaid         *bool     `json:"fees_paid"`
	EmergencyContact *string   `json:"emergency_contact"`
	PreviousSchool   *string   `json:"previous_school"`
	Remarks          *string   `json:"remarks"`
}

// SubmitFunc receives the normalised record of a successful submission.
type SubmitFunc func(ctx context.Context, record models.Student)

// Form is the record form state machine. It is not safe for concurrent use; Controller guards it.
type Form struct {
	now   func() time.Time
	mode  FormMode
	draft Draft
}

// NewForm creates a closed form. now supplies today's date for new drafts.
func NewForm(now func() time.Time) *Form {
	if now == nil {
		now = time.Now
	}
	return &Form{now: now, mode: FormClosed}
}

// Mode returns the current lifecycle state.
func (f *Form) Mode() FormMode {
	return f.mode
}

// IsOpen reports whether a draft is held.
func (f *Form) IsOpen() bool {
	return f.mode != FormClosed
}

// Draft returns a copy of the working draft. ok is false when the form is closed.
func (f *Form) Draft() (Draft, bool) {
	if !f.IsOpen() {
		return Draft{}, false
	}
	d := f.draft
	d.Subjects = append([]string{}, f.draft.Subjects...)
	return d, true
}

// OpenCreate starts a fresh draft from the defaults.
func (f *Form) OpenCreate() {
	f.mode = FormCreate
	f.draft = defaultDraft(today(f.now()))
}

// OpenEdit starts a draft from an existing record.
func (f *Form) OpenEdit(record models.Student) {
	f.mode = FormEdit
	f.draft = draftFromRecord(record)
}

// Close discards the draft.
func (f *Form) Close() {
	f.mode = FormClosed
	f.draft = Draft{}
}

// Apply merges the changed fields into the draft. Either every field is applied or none is.
func (f *Form) Apply(patch DraftPatch) error {
	if !f.IsOpen() {
		return appErrors.Clone(appErrors.ErrFormClosed, "")
	}
	d := f.draft

	if patch.FirstName != nil {
		d.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		d.LastName = *patch.LastName
	}
	if patch.Class != nil {
		if *patch.Class != 0 && (*patch.Class < models.MinClass || *patch.Class > models.MaxClass) {
			return invalidField("class must be between 1 and 12")
		}
		d.Class = *patch.Class
	}
	if patch.Section != nil {
		if !models.IsSection(*patch.Section) {
			return invalidField("unknown section")
		}
		d.Section = *patch.Section
	}
	if patch.RollNumber != nil {
		if *patch.RollNumber < 0 {
			return invalidField("roll number cannot be negative")
		}
		d.RollNumber = *patch.RollNumber
	}
	if patch.DOB != nil {
		dob, err := parsePatchDate(*patch.DOB)
		if err != nil {
			return err
		}
		d.DOB = dob
	}
	if patch.Email != nil {
		d.Email = *patch.Email
	}
	if patch.Phone != nil {
		d.Phone = *patch.Phone
	}
	if patch.Address != nil {
		d.Address = *patch.Address
	}
	if patch.ParentName != nil {
		d.ParentName = *patch.ParentName
	}
	if patch.EnrollmentDate != nil {
		enrolled, err := parsePatchDate(*patch.EnrollmentDate)
		if err != nil {
			return err
		}
		d.EnrollmentDate = enrolled
	}
	if patch.Status != nil {
		status := models.StudentStatus(*patch.Status)
		if !status.Valid() {
			return invalidField("unknown status")
		}
		d.Status = status
	}
	if patch.Subjects != nil {
		subjects := make([]string, 0, len(*patch.Subjects))
		for _, subject := range *patch.Subjects {
			if !models.IsSubject(subject) {
				return invalidField("unknown subject " + subject)
			}
			if !contains(subjects, subject) {
				subjects = append(subjects, subject)
			}
		}
		d.Subjects = subjects
	}
	if patch.Gender != nil {
		gender := models.Gender(*patch.Gender)
		if !gender.Valid() {
			return invalidField("unknown gender")
		}
		d.Gender = gender
	}
	if patch.BloodGroup != nil {
		if !models.IsBloodGroup(*patch.BloodGroup) {
			return invalidField("unknown blood group")
		}
		d.BloodGroup = *patch.BloodGroup
	}
	if patch.FeesPaid != nil {
		d.FeesPaid = *patch.FeesPaid
	}
	if patch.EmergencyContact != nil {
		d.EmergencyContact = *patch.EmergencyContact
	}
	if patch.PreviousSchool != nil {
		d.PreviousSchool = *patch.PreviousSchool
	}
	if patch.Remarks != nil {
		d.Remarks = *patch.Remarks
	}

	f.draft = d
	return nil
}

// SetSubject adds or removes one catalog subject without duplicating it.
func (f *Form) SetSubject(subject string, checked bool) error {
	if !f.IsOpen() {
		return appErrors.Clone(appErrors.ErrFormClosed, "")
	}
	if !models.IsSubject(subject) {
		return invalidField("unknown subject " + subject)
	}
	has := f.draft.hasSubject(subject)
	switch {
	case checked && !has:
		f.draft.Subjects = append(f.draft.Subjects, subject)
	case !checked && has:
		kept := make([]string, 0, len(f.draft.Subjects))
		for _, s := range f.draft.Subjects {
			if s != subject {
				kept = append(kept, s)
			}
		}
		f.draft.Subjects = kept
	}
	return nil
}

// ToggleSubject flips membership of one subject.
func (f *Form) ToggleSubject(subject string) error {
	if !f.IsOpen() {
		return appErrors.Clone(appErrors.ErrFormClosed, "")
	}
	return f.SetSubject(subject, !f.draft.hasSubject(subject))
}

// Submit validates the draft. On failure the form stays open and ErrValidationFailed is returned;
// on success the normalised record goes to fn and the form closes.
func (f *Form) Submit(ctx context.Context, fn SubmitFunc) error {
	if !f.IsOpen() {
		return appErrors.Clone(appErrors.ErrFormClosed, "")
	}
	if err := f.draft.Validate(); err != nil {
		return err
	}
	record := f.draft.Record()
	if fn != nil {
		fn(ctx, record)
	}
	f.Close()
	return nil
}

func invalidField(message string) error {
	return appErrors.Clone(appErrors.ErrInvalidField, message)
}

func parsePatchDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return time.Time{}, invalidField("dates must use YYYY-MM-DD")
	}
	return t, nil
}

// parseDate reads a persisted date; empty or malformed values become the zero date.
func parseDate(raw string) time.Time {
	t, err := time.Parse(models.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(models.DateLayout)
}

func today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
