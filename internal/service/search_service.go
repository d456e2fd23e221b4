package service

import (
	"context"
	"iter"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/noah-isme/sma-records/internal/models"
)

type graphReader interface {
	Graph(ctx context.Context) (*models.Graph, error)
}

// SearchService matches entities by name and id.
type SearchService struct {
	store  graphReader
	logger *zap.Logger
}

// NewSearchService constructs the search service.
func NewSearchService(store graphReader, logger *zap.Logger) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchService{store: store, logger: logger}
}

// Search yields entities whose name or id contains query, ignoring case.
// Courses also match on their instructor's name and enrolled students'
// names. Results follow store order; each range reads the store afresh.
func (s *SearchService) Search(ctx context.Context, query string) iter.Seq2[models.Entity, error] {
	return func(yield func(models.Entity, error) bool) {
		g, err := s.store.Graph(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		// A Caser keeps state between calls, so each search gets its own.
		fold := cases.Fold()
		needle := fold.String(query)
		matches := func(values ...string) bool {
			for _, v := range values {
				if strings.Contains(fold.String(v), needle) {
					return true
				}
			}
			return false
		}
		for _, e := range g.Entities() {
			if !matches(searchText(g, e)...) {
				continue
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// searchText lists the strings an entity is matched against.
func searchText(g *models.Graph, e models.Entity) []string {
	values := []string{e.DisplayName(), e.EntityID()}
	course, ok := e.(*models.Course)
	if !ok {
		return values
	}
	if instructor, ok := g.Instructors.Get(course.InstructorID); ok {
		values = append(values, instructor.Name)
	}
	names := make([]string, 0, len(course.EnrolledStudentIDs))
	for _, id := range course.EnrolledStudentIDs {
		if student, ok := g.Students.Get(id); ok {
			names = append(names, student.Name)
		}
	}
	if len(names) > 0 {
		values = append(values, strings.Join(names, " "))
	}
	return values
}
