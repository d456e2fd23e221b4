package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-records/internal/models"
	"github.com/noah-isme/sma-records/internal/repository"
	"github.com/noah-isme/sma-records/pkg/config"
	"github.com/noah-isme/sma-records/pkg/database"
)

type testEnv struct {
	store   *repository.Store
	records *RecordService
	metrics *MetricsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "school.db")})
	require.NoError(t, err)
	metrics := NewMetricsService()
	store, err := repository.NewStore(db, zap.NewNop(), metrics)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return &testEnv{
		store:   store,
		records: NewRecordService(store, validator.New(), metrics, zap.NewNop()),
		metrics: metrics,
	}
}

func (e *testEnv) student(t *testing.T, id string) *models.Student {
	t.Helper()
	got, err := e.records.Get(context.Background(), models.KindStudent, id)
	require.NoError(t, err)
	return got.(*models.Student)
}

func (e *testEnv) instructor(t *testing.T, id string) *models.Instructor {
	t.Helper()
	got, err := e.records.Get(context.Background(), models.KindInstructor, id)
	require.NoError(t, err)
	return got.(*models.Instructor)
}

func (e *testEnv) course(t *testing.T, id string) *models.Course {
	t.Helper()
	got, err := e.records.Get(context.Background(), models.KindCourse, id)
	require.NoError(t, err)
	return got.(*models.Course)
}

func (e *testEnv) revision(t *testing.T) int64 {
	t.Helper()
	rev, err := e.store.Revision(context.Background())
	require.NoError(t, err)
	return rev
}

// seed stores two courses, two students and an instructor with no links.
func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := e.records.CreateCourse(ctx, CreateCourseRequest{ID: "10", Name: "Math"})
	require.NoError(t, err)
	_, err = e.records.CreateCourse(ctx, CreateCourseRequest{ID: "11", Name: "Art"})
	require.NoError(t, err)
	_, err = e.records.CreateStudent(ctx, CreateStudentRequest{ID: "1", Name: "Ann", Age: 20})
	require.NoError(t, err)
	_, err = e.records.CreateStudent(ctx, CreateStudentRequest{ID: "2", Name: "Bob", Age: 21})
	require.NoError(t, err)
	_, err = e.records.CreateInstructor(ctx, CreateInstructorRequest{ID: "i1", Name: "Dr. Grey"})
	require.NoError(t, err)
}

func ids(values ...string) *models.IDList {
	list := models.IDList(values)
	return &list
}
