// Package integrity keeps the symmetric relationships between students,
// instructors and courses consistent. Every operation edits an explicit
// models.Graph and reports which rows changed so the store can persist the
// primary edit and its counterparts in one transaction.
package integrity

import (
	"fmt"

	"github.com/noah-isme/sma-records/internal/models"
	appErrors "github.com/noah-isme/sma-records/pkg/errors"
)

// Upsert stores e in g, creating it or replacing the existing entity with the
// same id, and rewrites counterpart references to match e's relationship
// fields. References must already be validated; a missing counterpart fails
// with an IntegrityApply error and leaves g partially edited, so callers
// discard g on error.
func Upsert(g *models.Graph, e models.Entity) (*Changes, error) {
	changes := &Changes{Primary: Ref{Kind: e.Kind(), ID: e.EntityID()}}
	var err error
	switch v := e.(type) {
	case *models.Student:
		err = upsertStudent(g, v, changes)
	case *models.Instructor:
		err = upsertInstructor(g, v, changes)
	case *models.Course:
		err = upsertCourse(g, v, changes)
	default:
		err = fmt.Errorf("integrity: unsupported entity %T", e)
	}
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// Delete removes the entity and strips every reference to it.
func Delete(g *models.Graph, kind models.Kind, id string) (*Changes, error) {
	if !g.Exists(kind, id) {
		return nil, appErrors.NotFound(string(kind), id)
	}
	changes := &Changes{Primary: Ref{Kind: kind, ID: id}, PrimaryDeleted: true}
	switch kind {
	case models.KindStudent:
		for _, c := range g.Courses.Items() {
			if next, ok := c.EnrolledStudentIDs.Remove(id); ok {
				c.EnrolledStudentIDs = next
				changes.touch(models.KindCourse, c.ID)
			}
		}
	case models.KindInstructor:
		for _, c := range g.Courses.Items() {
			if c.InstructorID == id {
				c.InstructorID = ""
				changes.touch(models.KindCourse, c.ID)
			}
		}
	case models.KindCourse:
		for _, s := range g.Students.Items() {
			if next, ok := s.RegisteredCourseIDs.Remove(id); ok {
				s.RegisteredCourseIDs = next
				changes.touch(models.KindStudent, s.ID)
			}
		}
		for _, i := range g.Instructors.Items() {
			if next, ok := i.AssignedCourseIDs.Remove(id); ok {
				i.AssignedCourseIDs = next
				changes.touch(models.KindInstructor, i.ID)
			}
		}
	}
	g.Remove(kind, id)
	return changes, nil
}

func upsertStudent(g *models.Graph, next *models.Student, changes *Changes) error {
	var prev models.IDList
	if existing, ok := g.Students.Get(next.ID); ok {
		prev = existing.RegisteredCourseIDs
	}
	next.RegisteredCourseIDs = models.NewIDList(next.RegisteredCourseIDs...)
	removed, added := prev.Diff(next.RegisteredCourseIDs)
	for _, courseID := range removed {
		if c, ok := g.Courses.Get(courseID); ok {
			if list, changed := c.EnrolledStudentIDs.Remove(next.ID); changed {
				c.EnrolledStudentIDs = list
				changes.touch(models.KindCourse, courseID)
			}
		}
	}
	for _, courseID := range added {
		c, ok := g.Courses.Get(courseID)
		if !ok {
			return missing(models.KindCourse, courseID)
		}
		if list, changed := c.EnrolledStudentIDs.Add(next.ID); changed {
			c.EnrolledStudentIDs = list
			changes.touch(models.KindCourse, courseID)
		}
	}
	g.Students.Put(next.ID, next)
	return nil
}

func upsertInstructor(g *models.Graph, next *models.Instructor, changes *Changes) error {
	var prev models.IDList
	if existing, ok := g.Instructors.Get(next.ID); ok {
		prev = existing.AssignedCourseIDs
	}
	next.AssignedCourseIDs = models.NewIDList(next.AssignedCourseIDs...)
	removed, added := prev.Diff(next.AssignedCourseIDs)
	for _, courseID := range removed {
		if c, ok := g.Courses.Get(courseID); ok && c.InstructorID == next.ID {
			c.InstructorID = ""
			changes.touch(models.KindCourse, courseID)
		}
	}
	for _, courseID := range added {
		c, ok := g.Courses.Get(courseID)
		if !ok {
			return missing(models.KindCourse, courseID)
		}
		if c.InstructorID == next.ID {
			continue
		}
		// A course has one instructor: taking it over releases the previous one.
		if c.HasInstructor() {
			if other, ok := g.Instructors.Get(c.InstructorID); ok {
				if list, changed := other.AssignedCourseIDs.Remove(courseID); changed {
					other.AssignedCourseIDs = list
					changes.touch(models.KindInstructor, other.ID)
				}
			}
		}
		c.InstructorID = next.ID
		changes.touch(models.KindCourse, courseID)
	}
	g.Instructors.Put(next.ID, next)
	return nil
}

func upsertCourse(g *models.Graph, next *models.Course, changes *Changes) error {
	var (
		prevStudents   models.IDList
		prevInstructor string
	)
	if existing, ok := g.Courses.Get(next.ID); ok {
		prevStudents = existing.EnrolledStudentIDs
		prevInstructor = existing.InstructorID
	}
	next.EnrolledStudentIDs = models.NewIDList(next.EnrolledStudentIDs...)

	if prevInstructor != next.InstructorID {
		if prevInstructor != "" {
			if i, ok := g.Instructors.Get(prevInstructor); ok {
				if list, changed := i.AssignedCourseIDs.Remove(next.ID); changed {
					i.AssignedCourseIDs = list
					changes.touch(models.KindInstructor, i.ID)
				}
			}
		}
		if next.InstructorID != "" {
			i, ok := g.Instructors.Get(next.InstructorID)
			if !ok {
				return missing(models.KindInstructor, next.InstructorID)
			}
			if list, changed := i.AssignedCourseIDs.Add(next.ID); changed {
				i.AssignedCourseIDs = list
				changes.touch(models.KindInstructor, i.ID)
			}
		}
	}

	removed, added := prevStudents.Diff(next.EnrolledStudentIDs)
	for _, studentID := range removed {
		if s, ok := g.Students.Get(studentID); ok {
			if list, changed := s.RegisteredCourseIDs.Remove(next.ID); changed {
				s.RegisteredCourseIDs = list
				changes.touch(models.KindStudent, studentID)
			}
		}
	}
	for _, studentID := range added {
		s, ok := g.Students.Get(studentID)
		if !ok {
			return missing(models.KindStudent, studentID)
		}
		if list, changed := s.RegisteredCourseIDs.Add(next.ID); changed {
			s.RegisteredCourseIDs = list
			changes.touch(models.KindStudent, studentID)
		}
	}
	g.Courses.Put(next.ID, next)
	return nil
}

func missing(kind models.Kind, id string) error {
	return appErrors.IntegrityApply(appErrors.Dangling(string(kind), id), string(kind), id)
}
