package models

import "time"

// StudentStatus enumerates enrolment states.
type StudentStatus string

const (
	StudentStatusActive   StudentStatus = "active"
	StudentStatusInactive StudentStatus = "inactive"
)

// Gender enumerates the genders offered by the record form.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// DateLayout is the persisted form of calendar dates.
const DateLayout = "2006-01-02"

// Grade levels accepted for Class. Zero means the class was never picked.
const (
	MinClass = 1
	MaxClass = 12
)

// Fixed catalogs offered by the record form.
var (
	SubjectCatalog = []string{"Math", "Science", "English", "History", "Geography"}
	Sections       = []string{"A", "B", "C", "D"}
	BloodGroups    = []string{"A+", "A-", "B+", "B-", "O+", "O-", "AB+", "AB-"}
)

// Student is a persisted student record. Dates are calendar dates in DateLayout.
type Student struct {
	ID               string        `db:"id" json:"id" bson:"_id,omitempty"`
	FirstName        string        `db:"first_name" json:"first_name" bson:"first_name"`
	LastName         string        `db:"last_name" json:"last_name" bson:"last_name"`
	Class            int           `db:"class" json:"class" bson:"class" validate:"omitempty,min=1,max=12"`
	Section          string        `db:"section" json:"section" bson:"section" validate:"omitempty,oneof=A B C D"`
	RollNumber       int           `db:"roll_number" json:"roll_number" bson:"roll_number" validate:"min=0"`
	DOB              string        `db:"dob" json:"dob" bson:"dob" validate:"omitempty,datetime=2006-01-02"`
	Email            string        `db:"email" json:"email" bson:"email"`
	Phone            string        `db:"phone" json:"phone" bson:"phone"`
	Address          string        `db:"address" json:"address" bson:"address"`
	ParentName       string        `db:"parent_name" json:"parent_name" bson:"parent_name"`
	EnrollmentDate   string        `db:"enrollment_date" json:"enrollment_date" bson:"enrollment_date" validate:"omitempty,datetime=2006-01-02"`
	Status           StudentStatus `db:"status" json:"status" bson:"status" validate:"required,oneof=active inactive"`
	Subjects         []string      `db:"subjects" json:"subjects" bson:"subjects" validate:"unique,dive,oneof=Math Science English History Geography"`
	Gender           Gender        `db:"gender" json:"gender" bson:"gender" validate:"omitempty,oneof=male female"`
	BloodGroup       string        `db:"blood_group" json:"blood_group" bson:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- O+ O- AB+ AB-"`
	FeesPaid         bool          `db:"fees_paid" json:"fees_paid" bson:"fees_paid"`
	EmergencyContact string        `db:"emergency_contact" json:"emergency_contact" bson:"emergency_contact"`
	PreviousSchool   string        `db:"previous_school" json:"previous_school" bson:"previous_school"`
	Remarks          string        `db:"remarks" json:"remarks" bson:"remarks"`
	CreatedAt        *time.Time    `db:"created_at" json:"created_at,omitempty" bson:"created_at,omitempty"`
}

// DisplayName is the name shown in the record table and matched by search.
func (s Student) DisplayName() string {
	return s.FirstName + " " + s.LastName
}

// Clone returns a deep copy so callers can mutate subjects freely.
func (s Student) Clone() Student {
	clone := s
	if s.Subjects != nil {
		clone.Subjects = append([]string(nil), s.Subjects...)
	}
	if s.CreatedAt != nil {
		ts := *s.CreatedAt
		clone.CreatedAt = &ts
	}
	return clone
}

// IsSubject reports whether subject belongs to SubjectCatalog.
func IsSubject(subject string) bool {
	return contains(SubjectCatalog, subject)
}

// IsSection reports whether section is one of Sections.
func IsSection(section string) bool {
	return contains(Sections, section)
}

// IsBloodGroup accepts the empty string since the blood group is optional.
func IsBloodGroup(group string) bool {
	return group == "" || contains(BloodGroups, group)
}

// Valid reports whether the status is one of the enumerated values.
func (s StudentStatus) Valid() bool {
	return s == StudentStatusActive || s == StudentStatusInactive
}

// Valid reports whether the gender is one of the enumerated values.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
