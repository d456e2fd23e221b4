package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-records/internal/repository"
	"github.com/noah-isme/sma-records/internal/service"
	"github.com/noah-isme/sma-records/pkg/config"
	"github.com/noah-isme/sma-records/pkg/database"
	"github.com/noah-isme/sma-records/pkg/storage"
)

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Meta map[string]interface{} `json:"meta"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewSQLite(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "school.db")})
	require.NoError(t, err)
	metrics := service.NewMetricsService()
	store, err := repository.NewStore(db, zap.NewNop(), metrics)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	validate := validator.New()
	records := service.NewRecordService(store, validate, metrics, zap.NewNop())
	r := gin.New()
	RegisterRoutes(r, "/api/v1", Handlers{
		Records:  NewRecordHandler(records),
		Search:   NewSearchHandler(service.NewSearchService(store, zap.NewNop())),
		Transfer: NewTransferHandler(service.NewTransferService(store, nil, validate, metrics, zap.NewNop(), nil, nil)),
		Backups:  NewBackupHandler(service.NewBackupService(store, files, service.BackupConfig{}, zap.NewNop())),
		Metrics:  NewMetricsHandler(metrics, store),
	})
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, contentType string, body []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return do(t, r, method, path, "application/json", []byte(body))
}

func TestRecordRoutesKeepRelationshipsSymmetric(t *testing.T) {
	r := newTestRouter(t)

	rec, _ := doJSON(t, r, http.MethodPost, "/api/v1/students", `{"id":"1","name":"Ann"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = doJSON(t, r, http.MethodPost, "/api/v1/courses", `{"id":"10","name":"Math"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = doJSON(t, r, http.MethodPatch, "/api/v1/students/1", `{"registered_course_ids":["10"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := doJSON(t, r, http.MethodGet, "/api/v1/courses/10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"10","name":"Math","instructor_id":"","enrolled_student_ids":["1"]}`, string(env.Data))

	rec, _ = doJSON(t, r, http.MethodDelete, "/api/v1/courses/10", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, env = doJSON(t, r, http.MethodGet, "/api/v1/students/1", "")
	assert.JSONEq(t, `{"id":"1","name":"Ann","age":0,"registered_course_ids":[]}`, string(env.Data))
}

func TestRecordRoutesErrors(t *testing.T) {
	r := newTestRouter(t)

	rec, env := doJSON(t, r, http.MethodPost, "/api/v1/courses", `{"id":"10","name":"Math","instructor_id":"ghost"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DANGLING_REFERENCE", env.Error.Code)
	assert.Equal(t, "ghost", env.Error.Details["id"])

	rec, env = doJSON(t, r, http.MethodGet, "/api/v1/instructors/nobody", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	rec, _ = doJSON(t, r, http.MethodPost, "/api/v1/students", `{"id":"1","name":"Ann"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, env = doJSON(t, r, http.MethodPost, "/api/v1/students", `{"id":"1","name":"Ann"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_ID", env.Error.Code)

	rec, env = doJSON(t, r, http.MethodPost, "/api/v1/students", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestListAndSearchRoutes(t *testing.T) {
	r := newTestRouter(t)
	for _, body := range []string{`{"id":"1","name":"Ann"}`, `{"id":"2","name":"Bob"}`} {
		rec, _ := doJSON(t, r, http.MethodPost, "/api/v1/students", body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec, _ := doJSON(t, r, http.MethodPost, "/api/v1/courses", `{"id":"10","name":"Math","enrolled_student_ids":["2"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := doJSON(t, r, http.MethodGet, "/api/v1/students", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), env.Meta["count"])

	rec, env = doJSON(t, r, http.MethodGet, "/api/v1/search?q=BOB", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var hits []struct {
		Kind   string `json:"kind"`
		Entity struct {
			ID string `json:"id"`
		} `json:"entity"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &hits))
	require.Len(t, hits, 2)
	assert.Equal(t, "student", hits[0].Kind)
	assert.Equal(t, "course", hits[1].Kind)
	assert.Equal(t, "10", hits[1].Entity.ID)

	_, env = doJSON(t, r, http.MethodGet, "/api/v1/search?q=&limit=1", "")
	assert.Equal(t, true, env.Meta["truncated"])

	rec, _ = doJSON(t, r, http.MethodGet, "/api/v1/search?q=a&limit=zero", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTransferRoutesRoundTrip(t *testing.T) {
	source := newTestRouter(t)
	rec, _ := doJSON(t, source, http.MethodPost, "/api/v1/students", `{"id":"1","name":"Ann"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = doJSON(t, source, http.MethodPost, "/api/v1/courses", `{"id":"10","name":"Math","enrolled_student_ids":["1"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = do(t, source, http.MethodGet, "/api/v1/export/table", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	table := rec.Body.Bytes()
	assert.Contains(t, string(table), "course,10,Math,,,,,1,")

	target := newTestRouter(t)
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	part, err := form.CreateFormFile("file", "records.csv")
	require.NoError(t, err)
	_, err = part.Write(table)
	require.NoError(t, err)
	require.NoError(t, form.Close())

	rec, env := do(t, target, http.MethodPost, "/api/v1/import/table?mode=replace", form.FormDataContentType(), body.Bytes())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"mode":"replace","students":1,"instructors":0,"courses":1}`, string(env.Data))

	rec, _ = do(t, source, http.MethodGet, "/api/v1/export/snapshot?format=yaml", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	rec, _ = do(t, target, http.MethodPost, "/api/v1/import/snapshot?format=yaml&mode=merge", "application/yaml", rec.Body.Bytes())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, env = doJSON(t, target, http.MethodGet, "/api/v1/students/1", "")
	assert.JSONEq(t, `{"id":"1","name":"Ann","age":0,"registered_course_ids":["10"]}`, string(env.Data))
}

func TestTransferRoutesRejectBadInput(t *testing.T) {
	r := newTestRouter(t)

	rec, env := do(t, r, http.MethodPost, "/api/v1/import/table", "text/csv", []byte("type,id,name,enrolled_student_ids\ncourse,10,Math,99\n"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "DANGLING_REFERENCE", env.Error.Code)

	rec, _ = do(t, r, http.MethodPost, "/api/v1/import/table", "text/csv", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, r, http.MethodGet, "/api/v1/export/snapshot?format=xml", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = do(t, r, http.MethodPost, "/api/v1/import/snapshot?mode=append", "application/json", []byte(`{}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBackupRoutes(t *testing.T) {
	r := newTestRouter(t)

	rec, _ := doJSON(t, r, http.MethodPost, "/api/v1/backups", `{"name":"nightly.db"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = do(t, r, http.MethodPost, "/api/v1/backups", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env := doJSON(t, r, http.MethodGet, "/api/v1/backups", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), env.Meta["count"])

	rec, _ = do(t, r, http.MethodGet, "/api/v1/backups/nightly.db", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Positive(t, rec.Body.Len())

	rec, _ = do(t, r, http.MethodDelete, "/api/v1/backups/nightly.db", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = do(t, r, http.MethodGet, "/api/v1/backups/nightly.db", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProbeRoutes(t *testing.T) {
	r := newTestRouter(t)

	rec, _ := do(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, r, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "revision")
	rec, _ = do(t, r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goroutines_total")
}
