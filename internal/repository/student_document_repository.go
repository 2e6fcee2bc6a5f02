package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/sma-student-records/internal/models"
)

const defaultDocumentTimeout = 10 * time.Second

// StudentDocumentRepository stores student records as documents in a MongoDB collection.
type StudentDocumentRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// NewStudentDocumentRepository wraps the students collection. A non-positive timeout falls back to 10s.
func NewStudentDocumentRepository(coll *mongo.Collection, timeout time.Duration) *StudentDocumentRepository {
	if timeout <= 0 {
		timeout = defaultDocumentTimeout
	}
	return &StudentDocumentRepository{coll: coll, timeout: timeout}
}

// List returns every document ordered by creation time.
func (r *StudentDocumentRepository) List(ctx context.Context) ([]models.Student, error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(queryCtx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find students: %w", err)
	}
	defer cursor.Close(queryCtx)

	students := make([]models.Student, 0)
	if err := cursor.All(queryCtx, &students); err != nil {
		return nil, fmt.Errorf("decode students: %w", err)
	}
	return students, nil
}

// FindByID fetches one document. mongo.ErrNoDocuments is returned unwrapped when missing.
func (r *StudentDocumentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var student models.Student
	if err := r.coll.FindOne(queryCtx, bson.M{"_id": id}).Decode(&student); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, err
		}
		return nil, fmt.Errorf("find student %s: %w", id, err)
	}
	return &student, nil
}

// Create inserts a document with a generated identifier and creation timestamp.
func (r *StudentDocumentRepository) Create(ctx context.Context, student *models.Student) error {
	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	student.ID = uuid.NewString()
	// BSON dates carry millisecond precision.
	now := time.Now().UTC().Truncate(time.Millisecond)
	student.CreatedAt = &now
	if student.Subjects == nil {
		student.Subjects = []string{}
	}
	if _, err := r.coll.InsertOne(queryCtx, student); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

// Update replaces every field but keeps the stored created_at.
// A missing id matches nothing and is not reported.
func (r *StudentDocumentRepository) Update(ctx context.Context, student *models.Student) error {
	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	subjects := student.Subjects
	if subjects == nil {
		subjects = []string{}
	}
	set := bson.M{
		"first_name":        student.FirstName,
		"last_name":         student.LastName,
		"class":             student.Class,
		"section":           student.Section,
		"roll_number":       student.RollNumber,
		"dob":               student.DOB,
		"email":             student.Email,
		"phone":             student.Phone,
		"address":           student.Address,
		"parent_name":       student.ParentName,
		"enrollment_date":   student.EnrollmentDate,
		"status":            student.Status,
		"subjects":          subjects,
		"gender":            student.Gender,
		"blood_group":       student.BloodGroup,
		"fees_paid":         student.FeesPaid,
		"emergency_contact": student.EmergencyContact,
		"previous_school":   student.PreviousSchool,
		"remarks":           student.Remarks,
	}
	if _, err := r.coll.UpdateOne(queryCtx, bson.M{"_id": student.ID}, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("update student %s: %w", student.ID, err)
	}
	return nil
}

// Delete removes the document with the given identifier.
func (r *StudentDocumentRepository) Delete(ctx context.Context, id string) error {
	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.coll.DeleteOne(queryCtx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete student %s: %w", id, err)
	}
	return nil
}
