package service

import (
	"context"
	"iter"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-records/internal/integrity"
	"github.com/noah-isme/sma-records/internal/models"
	"github.com/noah-isme/sma-records/internal/repository"
)

type recordStore interface {
	WithTx(ctx context.Context, fn func(tx *repository.Tx) error) error
	Read(ctx context.Context, kind models.Kind, id string) (models.Entity, error)
	List(ctx context.Context, kind models.Kind) iter.Seq2[models.Entity, error]
}

// CreateStudentRequest holds payload for creating students. ID is optional.
type CreateStudentRequest struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Age                 int      `json:"age"`
	Email               string   `json:"email"`
	RegisteredCourseIDs []string `json:"registered_course_ids"`
}

// CreateInstructorRequest holds payload for creating instructors.
type CreateInstructorRequest struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Age               int      `json:"age"`
	Email             string   `json:"email"`
	AssignedCourseIDs []string `json:"assigned_course_ids"`
}

// CreateCourseRequest holds payload for creating courses.
type CreateCourseRequest struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	InstructorID       string   `json:"instructor_id"`
	EnrolledStudentIDs []string `json:"enrolled_student_ids"`
}

// RecordService runs every create, update and delete through field
// validation, reference validation and the integrity maintainer, then
// persists the primary row and its counterparts in one store transaction.
type RecordService struct {
	store     recordStore
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewRecordService constructs the record service.
func NewRecordService(store recordStore, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *RecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{store: store, validator: RegisterRecordValidations(validate), metrics: metrics, logger: logger}
}

// CreateStudent registers a student and enrolls them in the listed courses.
func (s *RecordService) CreateStudent(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	student, err := models.NewStudent(req.ID, req.Name, req.Age, req.Email, req.RegisteredCourseIDs)
	if err != nil {
		return nil, err
	}
	if _, err := s.Create(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

// CreateInstructor registers an instructor and assigns the listed courses.
func (s *RecordService) CreateInstructor(ctx context.Context, req CreateInstructorRequest) (*models.Instructor, error) {
	instructor, err := models.NewInstructor(req.ID, req.Name, req.Age, req.Email, req.AssignedCourseIDs)
	if err != nil {
		return nil, err
	}
	if _, err := s.Create(ctx, instructor); err != nil {
		return nil, err
	}
	return instructor, nil
}

// CreateCourse registers a course with its instructor and students.
func (s *RecordService) CreateCourse(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	course, err := models.NewCourse(req.ID, req.Name, req.InstructorID, req.EnrolledStudentIDs)
	if err != nil {
		return nil, err
	}
	if _, err := s.Create(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

// Create persists e, assigning an id when it has none. On success e holds the
// stored values.
func (s *RecordService) Create(ctx context.Context, e models.Entity) (out models.Entity, err error) {
	defer s.observe("create", e.Kind(), time.Now(), &err)

	err = s.store.WithTx(ctx, func(tx *repository.Tx) error {
		g, err := tx.LoadGraph(ctx)
		if err != nil {
			return err
		}
		if e.EntityID() == "" {
			id, err := tx.NewID(ctx, e.Kind())
			if err != nil {
				return err
			}
			models.SetID(e, id)
		} else if g.Exists(e.Kind(), e.EntityID()) {
			return duplicate(e)
		}
		return s.apply(ctx, tx, g, e)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("record created", zap.String("kind", string(e.Kind())), zap.String("id", e.EntityID()))
	return e, nil
}

// Get returns one entity.
func (s *RecordService) Get(ctx context.Context, kind models.Kind, id string) (models.Entity, error) {
	return s.store.Read(ctx, kind, id)
}

// List yields every entity of kind in insertion order.
func (s *RecordService) List(ctx context.Context, kind models.Kind) iter.Seq2[models.Entity, error] {
	return s.store.List(ctx, kind)
}

// Update merges patch into the entity. Relationship fields are replaced as a
// whole; counterparts gain or lose references by the difference.
func (s *RecordService) Update(ctx context.Context, kind models.Kind, id string, patch models.Patch) (out models.Entity, err error) {
	defer s.observe("update", kind, time.Now(), &err)

	err = s.store.WithTx(ctx, func(tx *repository.Tx) error {
		g, err := tx.LoadGraph(ctx)
		if err != nil {
			return err
		}
		current, ok := g.Lookup(kind, id)
		if !ok {
			return notFound(kind, id)
		}
		next, err := patch.ApplyTo(current)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, tx, g, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("record updated", zap.String("kind", string(kind)), zap.String("id", id))
	return out, nil
}

// Delete removes the entity and every reference to it.
func (s *RecordService) Delete(ctx context.Context, kind models.Kind, id string) (err error) {
	defer s.observe("delete", kind, time.Now(), &err)

	err = s.store.WithTx(ctx, func(tx *repository.Tx) error {
		g, err := tx.LoadGraph(ctx)
		if err != nil {
			return err
		}
		changes, err := integrity.Delete(g, kind, id)
		if err != nil {
			return err
		}
		return tx.SaveChanges(ctx, g, changes)
	})
	if err != nil {
		return err
	}
	s.logger.Info("record deleted", zap.String("kind", string(kind)), zap.String("id", id))
	return nil
}

// apply validates e against g, lets the maintainer edit counterparts and
// writes every touched row.
func (s *RecordService) apply(ctx context.Context, tx *repository.Tx, g *models.Graph, e models.Entity) error {
	if err := checkFields(s.validator, e); err != nil {
		return err
	}
	if err := checkReferences(g, e); err != nil {
		return err
	}
	changes, err := integrity.Upsert(g, e)
	if err != nil {
		return err
	}
	return tx.SaveChanges(ctx, g, changes)
}

func (s *RecordService) observe(op string, kind models.Kind, start time.Time, err *error) {
	if s.metrics != nil {
		s.metrics.ObserveRecordOperation(op, string(kind), time.Since(start), *err)
	}
	if *err != nil {
		s.logger.Debug("record operation rejected", zap.String("op", op), zap.String("kind", string(kind)), zap.Error(*err))
	}
}
