package integrity

import "github.com/noah-isme/sma-records/internal/models"

// Normalize rebuilds symmetric relationships in g from both sides. An
// enrollment recorded on either side is kept on both. A course's instructor
// field wins when set; otherwise the first instructor listing the course is
// adopted and any other claim is dropped. References to ids missing from g
// are dropped, so callers validate references before normalizing.
func Normalize(g *models.Graph) {
	for _, s := range g.Students.Items() {
		kept := models.IDList{}
		for _, courseID := range s.RegisteredCourseIDs {
			c, ok := g.Courses.Get(courseID)
			if !ok {
				continue
			}
			kept, _ = kept.Add(courseID)
			c.EnrolledStudentIDs, _ = c.EnrolledStudentIDs.Add(s.ID)
		}
		s.RegisteredCourseIDs = kept
	}
	for _, c := range g.Courses.Items() {
		kept := models.IDList{}
		for _, studentID := range c.EnrolledStudentIDs {
			s, ok := g.Students.Get(studentID)
			if !ok {
				continue
			}
			kept, _ = kept.Add(studentID)
			s.RegisteredCourseIDs, _ = s.RegisteredCourseIDs.Add(c.ID)
		}
		c.EnrolledStudentIDs = kept
		if c.HasInstructor() && !g.Instructors.Has(c.InstructorID) {
			c.InstructorID = ""
		}
	}

	for _, i := range g.Instructors.Items() {
		for _, courseID := range i.AssignedCourseIDs {
			if c, ok := g.Courses.Get(courseID); ok && !c.HasInstructor() {
				c.InstructorID = i.ID
			}
		}
	}
	for _, i := range g.Instructors.Items() {
		kept := models.IDList{}
		for _, courseID := range i.AssignedCourseIDs {
			if c, ok := g.Courses.Get(courseID); ok && c.InstructorID == i.ID {
				kept, _ = kept.Add(courseID)
			}
		}
		i.AssignedCourseIDs = kept
	}
	for _, c := range g.Courses.Items() {
		if !c.HasInstructor() {
			continue
		}
		if i, ok := g.Instructors.Get(c.InstructorID); ok {
			i.AssignedCourseIDs, _ = i.AssignedCourseIDs.Add(c.ID)
		}
	}
}
