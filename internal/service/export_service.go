package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-student-records/internal/models"
	"github.com/noah-isme/sma-student-records/internal/search"
	"github.com/noah-isme/sma-student-records/pkg/export"
)

type studentReader interface {
	ListAll(ctx context.Context) ([]models.Student, error)
	Get(ctx context.Context, id string) (*models.Student, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type cardRenderer interface {
	RenderCard(card export.Card) ([]byte, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

var studentCSVHeaders = []string{
	"id", "first_name", "last_name", "class", "section", "roll_number", "dob", "email", "phone",
	"address", "parent_name", "enrollment_date", "status", "subjects", "gender", "blood_group",
	"fees_paid", "emergency_contact", "previous_school", "remarks", "created_at",
}

// ExportService renders student records as CSV sheets and PDF cards.
type ExportService struct {
	students studentReader
	csv      csvRenderer
	pdf      cardRenderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(students studentReader, logger *zap.Logger, csv csvRenderer, pdf cardRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{students: students, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// StudentsCSV exports the records whose display name matches query.
func (s *ExportService) StudentsCSV(ctx context.Context, query string) (*ExportFile, error) {
	records, err := s.students.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	records = search.Filter(records, query)

	data := export.Dataset{Headers: studentCSVHeaders, Rows: make([][]string, 0, len(records))}
	for _, r := range records {
		data.Rows = append(data.Rows, studentRow(r))
	}
	body, err := s.csv.Render(data)
	if err != nil {
		s.logger.Error("failed to render students csv", zap.Error(err))
		return nil, err
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("students-%s.csv", s.now().UTC().Format("20060102")),
		ContentType: "text/csv; charset=utf-8",
		Body:        body,
	}, nil
}

// StudentCard renders the detail card of one student.
func (s *ExportService) StudentCard(ctx context.Context, id string) (*ExportFile, error) {
	student, err := s.students.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	body, err := s.pdf.RenderCard(studentCard(*student, s.now()))
	if err != nil {
		s.logger.Error("failed to render student card", zap.String("student_id", id), zap.Error(err))
		return nil, err
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("student-%s.pdf", id),
		ContentType: "application/pdf",
		Body:        body,
	}, nil
}

func studentRow(r models.Student) []string {
	var created string
	if r.CreatedAt != nil {
		created = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		r.ID, r.FirstName, r.LastName, classLabel(r.Class), r.Section, strconv.Itoa(r.RollNumber),
		r.DOB, r.Email, r.Phone, r.Address, r.ParentName, r.EnrollmentDate, string(r.Status),
		strings.Join(r.Subjects, ";"), string(r.Gender), r.BloodGroup, strconv.FormatBool(r.FeesPaid),
		r.EmergencyContact, r.PreviousSchool, r.Remarks, created,
	}
}

func studentCard(r models.Student, now time.Time) export.Card {
	fees := "Pending"
	if r.FeesPaid {
		fees = "Paid"
	}
	subjects := strings.Join(r.Subjects, ", ")
	return export.Card{
		Title:    r.DisplayName(),
		Subtitle: strings.TrimSpace(fmt.Sprintf("Class %s %s", classLabel(r.Class), r.Section)),
		Fields: []export.Field{
			{Label: "Roll number", Value: strconv.Itoa(r.RollNumber)},
			{Label: "Status", Value: string(r.Status)},
			{Label: "Date of birth", Value: r.DOB},
			{Label: "Gender", Value: string(r.Gender)},
			{Label: "Blood group", Value: r.BloodGroup},
			{Label: "Email", Value: r.Email},
			{Label: "Phone", Value: r.Phone},
			{Label: "Address", Value: r.Address},
			{Label: "Parent", Value: r.ParentName},
			{Label: "Emergency contact", Value: r.EmergencyContact},
			{Label: "Enrolled", Value: r.EnrollmentDate},
			{Label: "Previous school", Value: r.PreviousSchool},
			{Label: "Subjects", Value: subjects},
			{Label: "Fees", Value: fees},
			{Label: "Remarks", Value: r.Remarks},
		},
		Footer: "Generated " + now.UTC().Format(time.RFC1123),
	}
}

func classLabel(class int) string {
	if class == 0 {
		return "-"
	}
	return strconv.Itoa(class)
}
