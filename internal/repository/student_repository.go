package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-student-records/internal/models"
)

const studentColumns = `id, first_name, last_name, class, section, roll_number,
        COALESCE(to_char(dob, 'YYYY-MM-DD'), '') AS dob, email, phone, address, parent_name,
        COALESCE(to_char(enrollment_date, 'YYYY-MM-DD'), '') AS enrollment_date, status, subjects, gender,
        blood_group, fees_paid, emergency_contact, previous_school, remarks, created_at`

// studentRow mirrors the students table; subjects travel as a text[] column.
type studentRow struct {
	ID               string         `db:"id"`
	FirstName        string         `db:"first_name"`
	LastName         string         `db:"last_name"`
	Class            int            `db:"class"`
	Section          string         `db:"section"`
	RollNumber       int            `db:"roll_number"`
	DOB              string         `db:"dob"`
	Email            string         `db:"email"`
	Phone            string         `db:"phone"`
	Address          string         `db:"address"`
	ParentName       string         `db:"parent_name"`
	EnrollmentDate   string         `db:"enrollment_date"`
	Status           string         `db:"status"`
	Subjects         pq.StringArray `db:"subjects"`
	Gender           string         `db:"gender"`
	BloodGroup       string         `db:"blood_group"`
	FeesPaid         bool           `db:"fees_paid"`
	EmergencyContact string         `db:"emergency_contact"`
	PreviousSchool   string         `db:"previous_school"`
	Remarks          string         `db:"remarks"`
	CreatedAt        *time.Time     `db:"created_at"`
}

func newStudentRow(s *models.Student) studentRow {
	subjects := pq.StringArray(s.Subjects)
	if subjects == nil {
		subjects = pq.StringArray{}
	}
	return studentRow{
		ID:               s.ID,
		FirstName:        s.FirstName,
		LastName:         s.LastName,
		Class:            s.Class,
		Section:          s.Section,
		RollNumber:       s.RollNumber,
		DOB:              s.DOB,
		Email:            s.Email,
		Phone:            s.Phone,
		Address:          s.Address,
		ParentName:       s.ParentName,
		EnrollmentDate:   s.EnrollmentDate,
		Status:           string(s.Status),
		Subjects:         subjects,
		Gender:           string(s.Gender),
		BloodGroup:       s.BloodGroup,
		FeesPaid:         s.FeesPaid,
		EmergencyContact: s.EmergencyContact,
		PreviousSchool:   s.PreviousSchool,
		Remarks:          s.Remarks,
		CreatedAt:        s.CreatedAt,
	}
}

func (r studentRow) toModel() models.Student {
	return models.Student{
		ID:               r.ID,
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		Class:            r.Class,
		Section:          r.Section,
		RollNumber:       r.RollNumber,
		DOB:              r.DOB,
		Email:            r.Email,
		Phone:            r.Phone,
		Address:          r.Address,
		ParentName:       r.ParentName,
		EnrollmentDate:   r.EnrollmentDate,
		Status:           models.StudentStatus(r.Status),
		Subjects:         []string(r.Subjects),
		Gender:           models.Gender(r.Gender),
		BloodGroup:       r.BloodGroup,
		FeesPaid:         r.FeesPaid,
		EmergencyContact: r.EmergencyContact,
		PreviousSchool:   r.PreviousSchool,
		Remarks:          r.Remarks,
		CreatedAt:        r.CreatedAt,
	}
}

// StudentRepository stores student records in PostgreSQL.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns every student in creation order.
func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students ORDER BY created_at ASC, id ASC", studentColumns)
	var rows []studentRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	students := make([]models.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.toModel())
	}
	return students, nil
}

// FindByID fetches one student. sql.ErrNoRows is returned unwrapped when missing.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var row studentRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	student := row.toModel()
	return &student, nil
}

// Create inserts a student, assigning its identifier and creation timestamp.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	student.ID = uuid.NewString()
	now := time.Now().UTC()
	student.CreatedAt = &now
	const query = `INSERT INTO students (id, first_name, last_name, class, section, roll_number, dob, email, phone, address,
        parent_name, enrollment_date, status, subjects, gender, blood_group, fees_paid, emergency_contact, previous_school, remarks, created_at)
        VALUES (:id, :first_name, :last_name, :class, :section, :roll_number, CAST(NULLIF(:dob, '') AS DATE), :email, :phone, :address,
        :parent_name, CAST(NULLIF(:enrollment_date, '') AS DATE), :status, :subjects, :gender, :blood_group, :fees_paid,
        :emergency_contact, :previous_school, :remarks, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, newStudentRow(student)); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update overwrites every field of the student except id and created_at.
// A missing id updates nothing and is not reported.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	const query = `UPDATE students SET first_name = :first_name, last_name = :last_name, class = :class, section = :section,
        roll_number = :roll_number, dob = CAST(NULLIF(:dob, '') AS DATE), email = :email, phone = :phone, address = :address,
        parent_name = :parent_name, enrollment_date = CAST(NULLIF(:enrollment_date, '') AS DATE), status = :status,
        subjects = :subjects, gender = :gender, blood_group = :blood_group, fees_paid = :fees_paid,
        emergency_contact = :emergency_contact, previous_school = :previous_school, remarks = :remarks WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, newStudentRow(student)); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Delete removes the student permanently.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM students WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}
