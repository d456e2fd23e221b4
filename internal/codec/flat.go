// Package codec converts the record graph to and from its external
// representations: a flat one-row-per-entity table and a nested snapshot.
package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/sma-records/internal/models"
	appErrors "github.com/noah-isme/sma-records/pkg/errors"
	"github.com/noah-isme/sma-records/pkg/export"
)

// Flat table columns, in output order.
const (
	ColumnType                = "type"
	ColumnID                  = "id"
	ColumnName                = "name"
	ColumnAge                 = "age"
	ColumnEmail               = "email"
	ColumnRegisteredCourseIDs = "registered_course_ids"
	ColumnAssignedCourseIDs   = "assigned_course_ids"
	ColumnEnrolledStudentIDs  = "enrolled_student_ids"
	ColumnInstructorID        = "instructor_id"
)

// FlatColumns is the header row of every flat export.
var FlatColumns = []string{
	ColumnType,
	ColumnID,
	ColumnName,
	ColumnAge,
	ColumnEmail,
	ColumnRegisteredCourseIDs,
	ColumnAssignedCourseIDs,
	ColumnEnrolledStudentIDs,
	ColumnInstructorID,
}

// Flatten renders one row per entity: students, instructors, then courses.
// Columns a kind does not have stay empty.
func Flatten(g *models.Graph) export.Dataset {
	data := export.Dataset{Headers: FlatColumns}
	for _, e := range g.Entities() {
		data.Rows = append(data.Rows, flattenEntity(e))
	}
	return data
}

func flattenEntity(e models.Entity) map[string]string {
	row := map[string]string{
		ColumnType: string(e.Kind()),
		ColumnID:   e.EntityID(),
		ColumnName: e.DisplayName(),
	}
	switch v := e.(type) {
	case *models.Student:
		row[ColumnAge] = strconv.Itoa(v.Age)
		row[ColumnEmail] = v.Email
		row[ColumnRegisteredCourseIDs] = v.RegisteredCourseIDs.Join()
	case *models.Instructor:
		row[ColumnAge] = strconv.Itoa(v.Age)
		row[ColumnEmail] = v.Email
		row[ColumnAssignedCourseIDs] = v.AssignedCourseIDs.Join()
	case *models.Course:
		row[ColumnEnrolledStudentIDs] = v.EnrolledStudentIDs.Join()
		row[ColumnInstructorID] = v.InstructorID
	}
	return row
}

// Unflatten builds a graph from flat rows. It checks each row's structure and
// rejects repeated ids within a kind; whether references resolve is left to
// the caller, which knows what the table is merged into.
func Unflatten(data export.Dataset) (*models.Graph, error) {
	g := models.NewGraph()
	for i, row := range data.Rows {
		e, err := unflattenRow(row)
		if err != nil {
			return nil, rowError(i, err)
		}
		if g.Exists(e.Kind(), e.EntityID()) {
			return nil, rowError(i, appErrors.DuplicateID(string(e.Kind()), e.EntityID()))
		}
		g.Put(e)
	}
	return g, nil
}

func unflattenRow(row map[string]string) (models.Entity, error) {
	kind, err := models.ParseKind(row[ColumnType])
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(row[ColumnID])
	if id == "" {
		return nil, appErrors.InvalidEntity(string(kind), "id is required")
	}
	name := row[ColumnName]

	switch kind {
	case models.KindStudent:
		age, err := parseAge(kind, row[ColumnAge])
		if err != nil {
			return nil, err
		}
		return models.NewStudent(id, name, age, strings.TrimSpace(row[ColumnEmail]), models.ParseIDList(row[ColumnRegisteredCourseIDs]))
	case models.KindInstructor:
		age, err := parseAge(kind, row[ColumnAge])
		if err != nil {
			return nil, err
		}
		return models.NewInstructor(id, name, age, strings.TrimSpace(row[ColumnEmail]), models.ParseIDList(row[ColumnAssignedCourseIDs]))
	default:
		return models.NewCourse(id, name, strings.TrimSpace(row[ColumnInstructorID]), models.ParseIDList(row[ColumnEnrolledStudentIDs]))
	}
}

func parseAge(kind models.Kind, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	age, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.InvalidEntity(string(kind), fmt.Sprintf("age %q is not a number", raw))
	}
	return age, nil
}

func rowError(index int, err error) error {
	appErr := appErrors.FromError(err)
	// Row 1 is the header.
	return appErrors.WithDetail(appErr, "row", strconv.Itoa(index+2))
}
