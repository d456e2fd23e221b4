package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-records/internal/models"
	"github.com/noah-isme/sma-records/internal/service"
	appErrors "github.com/noah-isme/sma-records/pkg/errors"
	"github.com/noah-isme/sma-records/pkg/response"
)

// RecordHandler exposes CRUD endpoints for students, instructors and courses.
type RecordHandler struct {
	records *service.RecordService
}

// NewRecordHandler constructs RecordHandler.
func NewRecordHandler(records *service.RecordService) *RecordHandler {
	return &RecordHandler{records: records}
}

// CreateStudent godoc
// @Summary Create student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /students [post]
func (h *RecordHandler) CreateStudent(c *gin.Context) {
	var req service.CreateStudentRequest
	if !bindJSON(c, &req) {
		return
	}
	student, err := h.records.CreateStudent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// CreateInstructor godoc
// @Summary Create instructor
// @Tags Instructors
// @Accept json
// @Produce json
// @Param payload body service.CreateInstructorRequest true "Instructor payload"
// @Success 201 {object} response.Envelope
// @Router /instructors [post]
func (h *RecordHandler) CreateInstructor(c *gin.Context) {
	var req service.CreateInstructorRequest
	if !bindJSON(c, &req) {
		return
	}
	instructor, err := h.records.CreateInstructor(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, instructor)
}

// CreateCourse godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body service.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *RecordHandler) CreateCourse(c *gin.Context) {
	var req service.CreateCourseRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.records.CreateCourse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// List returns every entity of kind in insertion order.
func (h *RecordHandler) List(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		items := make([]models.Entity, 0)
		for e, err := range h.records.List(c.Request.Context(), kind) {
			if err != nil {
				response.Error(c, err)
				return
			}
			items = append(items, e)
		}
		response.JSON(c, http.StatusOK, items, map[string]interface{}{"count": len(items)})
	}
}

// Get returns one entity of kind.
func (h *RecordHandler) Get(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity, err := h.records.Get(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, entity)
	}
}

// Update merges a partial payload into one entity of kind. Relationship
// lists in the payload replace the stored ones.
func (h *RecordHandler) Update(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch models.Patch
		if !bindJSON(c, &patch) {
			return
		}
		entity, err := h.records.Update(c.Request.Context(), kind, c.Param("id"), patch)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, entity)
	}
}

// Delete removes one entity of kind and every reference to it.
func (h *RecordHandler) Delete(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.records.Delete(c.Request.Context(), kind, c.Param("id")); err != nil {
			response.Error(c, err)
			return
		}
		response.NoContent(c)
	}
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}
