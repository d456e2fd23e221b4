package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-records/internal/codec"
	"github.com/noah-isme/sma-records/internal/models"
	"github.com/noah-isme/sma-records/internal/repository"
	appErrors "github.com/noah-isme/sma-records/pkg/errors"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.entries[key]; ok {
		return v, nil
	}
	return nil, appErrors.ErrCacheMiss
}

func (m *memoryCache) Set(_ context.Context, key string, payload []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = map[string][]byte{}
	}
	m.entries[key] = payload
	m.sets++
	return nil
}

func (m *memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func newTransfer(env *testEnv, cache *CacheService) *TransferService {
	return NewTransferService(env.store, cache, validator.New(), env.metrics, zap.NewNop(), nil, nil)
}

// linkSample enrolls both students in course 10 taught by i1 and student 2 in 11.
func linkSample(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()
	_, err := env.records.Update(ctx, models.KindCourse, "10", models.Patch{InstructorID: strPtr("i1"), EnrolledStudentIDs: ids("1", "2")})
	require.NoError(t, err)
	_, err = env.records.Update(ctx, models.KindStudent, "2", models.Patch{RegisteredCourseIDs: ids("10", "11")})
	require.NoError(t, err)
}

func assertGraphsMatch(t *testing.T, want, got *models.Graph) {
	t.Helper()
	require.Len(t, got.Entities(), len(want.Entities()))
	for _, e := range want.Entities() {
		other, ok := got.Lookup(e.Kind(), e.EntityID())
		require.True(t, ok, "missing %s %s", e.Kind(), e.EntityID())
		assert.Equal(t, e.DisplayName(), other.DisplayName())
		switch v := e.(type) {
		case *models.Student:
			o := other.(*models.Student)
			assert.Equal(t, v.Age, o.Age)
			assert.ElementsMatch(t, v.RegisteredCourseIDs, o.RegisteredCourseIDs)
		case *models.Instructor:
			assert.ElementsMatch(t, v.AssignedCourseIDs, other.(*models.Instructor).AssignedCourseIDs)
		case *models.Course:
			o := other.(*models.Course)
			assert.Equal(t, v.InstructorID, o.InstructorID)
			assert.ElementsMatch(t, v.EnrolledStudentIDs, o.EnrolledStudentIDs)
		}
	}
}

func TestTransferExportTableRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.records.CreateStudent(ctx, CreateStudentRequest{ID: "1", Name: "Ann"})
	require.NoError(t, err)
	_, err = env.records.CreateCourse(ctx, CreateCourseRequest{ID: "10", Name: "Math", EnrolledStudentIDs: []string{"1"}})
	require.NoError(t, err)

	raw, err := newTransfer(env, nil).ExportTable(ctx, TableCSV)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(codec.FlatColumns, ","), lines[0])
	assert.Equal(t, "student,1,Ann,0,,10,,,", lines[1])
	assert.Equal(t, "course,10,Math,,,,,1,", lines[2])
}

func TestTransferExportTablePDF(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	raw, err := newTransfer(env, nil).ExportTable(context.Background(), TablePDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
}

func TestTransferTableRoundTrip(t *testing.T) {
	source := newTestEnv(t)
	source.seed(t)
	linkSample(t, source)
	ctx := context.Background()

	raw, err := newTransfer(source, nil).ExportTable(ctx, TableCSV)
	require.NoError(t, err)

	target := newTestEnv(t)
	_, err = target.records.CreateStudent(ctx, CreateStudentRequest{ID: "stale", Name: "Old"})
	require.NoError(t, err)
	result, err := newTransfer(target, nil).ImportTable(ctx, raw, ImportReplace)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Students)
	assert.Equal(t, 1, result.Instructors)
	assert.Equal(t, 2, result.Courses)

	want, err := source.store.Graph(ctx)
	require.NoError(t, err)
	got, err := target.store.Graph(ctx)
	require.NoError(t, err)
	assertGraphsMatch(t, want, got)
}

func TestTransferImportTableDanglingLeavesStoreUnchanged(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	before := env.revision(t)
	raw := []byte("type,id,name,registered_course_ids\nstudent,9,Zed,10;99\n")

	_, err := newTransfer(env, nil).ImportTable(context.Background(), raw, ImportMerge)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrDanglingReference))
	assert.Equal(t, "99", appErrors.FromError(err).Details["id"])

	_, err = env.records.Get(context.Background(), models.KindStudent, "9")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, before, env.revision(t))
}

func TestTransferImportTableMergeReconcilesBothSides(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	raw := []byte("type,id,name,age,registered_course_ids\nstudent,9,Zed,30, 10 ; 11 \n")

	result, err := newTransfer(env, nil).ImportTable(context.Background(), raw, ImportMerge)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Students)

	assert.Equal(t, 30, env.student(t, "9").Age)
	assert.Equal(t, models.IDList{"9"}, env.course(t, "10").EnrolledStudentIDs)
	assert.Equal(t, models.IDList{"9"}, env.course(t, "11").EnrolledStudentIDs)
	assert.Equal(t, "Ann", env.student(t, "1").Name)
}

func TestTransferImportReplaceChecksAgainstDocumentOnly(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	raw := []byte("type,id,name,registered_course_ids\nstudent,9,Zed,10\n")

	_, err := newTransfer(env, nil).ImportTable(context.Background(), raw, ImportReplace)
	assert.True(t, errors.Is(err, appErrors.ErrDanglingReference))
}

func TestTransferImportTableMalformed(t *testing.T) {
	env := newTestEnv(t)
	svc := newTransfer(env, nil)

	_, err := svc.ImportTable(context.Background(), []byte("id,name\n1,Ann\n"), ImportReplace)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.ImportTable(context.Background(), []byte("type,id,name,email\nstudent,1,Ann,not-an-email\n"), ImportReplace)
	assert.True(t, errors.Is(err, appErrors.ErrFieldValidation))
}

func TestTransferSnapshotRoundTrip(t *testing.T) {
	for _, format := range []codec.Format{codec.FormatJSON, codec.FormatYAML, codec.FormatMsgpack} {
		t.Run(string(format), func(t *testing.T) {
			source := newTestEnv(t)
			source.seed(t)
			linkSample(t, source)
			ctx := context.Background()

			raw, err := newTransfer(source, nil).ExportSnapshot(ctx, format)
			require.NoError(t, err)

			target := newTestEnv(t)
			_, err = newTransfer(target, nil).ImportSnapshot(ctx, raw, format, ImportReplace)
			require.NoError(t, err)

			want, err := source.store.Graph(ctx)
			require.NoError(t, err)
			got, err := target.store.Graph(ctx)
			require.NoError(t, err)
			assertGraphsMatch(t, want, got)
		})
	}
}

func TestTransferSnapshotImportReconcilesOneSidedLinks(t *testing.T) {
	env := newTestEnv(t)
	doc := `{"version":1,"students":[{"id":"1","name":"Ann","registered_course_ids":["10"]}],
"instructors":[{"id":"i1","name":"Grey","assigned_course_ids":["10"]}],
"courses":[{"id":"10","name":"Math","enrolled_student_ids":[]}]}`

	_, err := newTransfer(env, nil).ImportSnapshot(context.Background(), []byte(doc), codec.FormatJSON, ImportReplace)
	require.NoError(t, err)

	course := env.course(t, "10")
	assert.Equal(t, models.IDList{"1"}, course.EnrolledStudentIDs)
	assert.Equal(t, "i1", course.InstructorID)
}

func TestTransferExportUsesCacheUntilStoreChanges(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	backend := &memoryCache{}
	cache := NewCacheService(backend, env.metrics, time.Minute, zap.NewNop(), true)
	svc := newTransfer(env, cache)
	ctx := context.Background()

	first, err := svc.ExportSnapshot(ctx, codec.FormatJSON)
	require.NoError(t, err)
	second, err := svc.ExportSnapshot(ctx, codec.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.sets)

	_, err = env.records.CreateStudent(ctx, CreateStudentRequest{ID: "3", Name: "Cy"})
	require.NoError(t, err)
	third, err := svc.ExportSnapshot(ctx, codec.FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(third), `"Cy"`)
	assert.Equal(t, 2, backend.sets)

	_, err = svc.ImportSnapshot(ctx, third, codec.FormatJSON, ImportReplace)
	require.NoError(t, err)
	assert.Empty(t, backend.entries)
}

// staleRevisionStore reports an old revision, as when a write commits
// between the cache lookup and the graph load.
type staleRevisionStore struct {
	*repository.Store
	rev int64
}

func (s staleRevisionStore) Revision(context.Context) (int64, error) {
	return s.rev, nil
}

func TestTransferExportCachesUnderRevisionOfLoadedGraph(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	ctx := context.Background()
	stale := env.revision(t)
	_, err := env.records.CreateStudent(ctx, CreateStudentRequest{ID: "3", Name: "Cy"})
	require.NoError(t, err)
	current := env.revision(t)
	require.Greater(t, current, stale)

	backend := &memoryCache{}
	cache := NewCacheService(backend, env.metrics, time.Minute, zap.NewNop(), true)
	svc := NewTransferService(staleRevisionStore{Store: env.store, rev: stale}, cache, validator.New(), env.metrics, zap.NewNop(), nil, nil)

	payload, err := svc.ExportSnapshot(ctx, codec.FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"Cy"`)

	assert.NotContains(t, backend.entries, exportCacheKey("snapshot:json", stale))
	assert.Equal(t, payload, backend.entries[exportCacheKey("snapshot:json", current)])
}

func TestParseImportModeAndTableFormat(t *testing.T) {
	mode, err := ParseImportMode("")
	require.NoError(t, err)
	assert.Equal(t, ImportReplace, mode)
	mode, err = ParseImportMode("MERGE")
	require.NoError(t, err)
	assert.Equal(t, ImportMerge, mode)
	_, err = ParseImportMode("append")
	assert.True(t, errors.Is(err, appErrors.ErrFieldValidation))

	format, err := ParseTableFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", format.ContentType())
	_, err = ParseTableFormat("xlsx")
	assert.Error(t, err)
}
