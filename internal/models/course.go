package models

// Course links at most one instructor and any number of enrolled students.
// An empty InstructorID means the course is unassigned.
type Course struct {
	ID                 string `db:"id" json:"id" yaml:"id" msgpack:"id" validate:"required,entityid"`
	Name               string `db:"name" json:"name" yaml:"name" msgpack:"name" validate:"notblank,max=200"`
	InstructorID       string `db:"instructor_id" json:"instructor_id" yaml:"instructor_id" msgpack:"instructor_id" validate:"omitempty,entityid"`
	EnrolledStudentIDs IDList `db:"enrolled_student_ids" json:"enrolled_student_ids" yaml:"enrolled_student_ids" msgpack:"enrolled_student_ids" validate:"dive,entityid"`
}

// NewCourse builds a course, failing when the structure is malformed.
func NewCourse(id, name, instructorID string, studentIDs []string) (*Course, error) {
	if err := checkStructure(KindCourse, id, name); err != nil {
		return nil, err
	}
	if instructorID != "" && !ValidID(instructorID) {
		return nil, checkIDs(KindCourse, []string{instructorID})
	}
	if err := checkIDs(KindCourse, studentIDs); err != nil {
		return nil, err
	}
	return &Course{ID: id, Name: name, InstructorID: instructorID, EnrolledStudentIDs: NewIDList(studentIDs...)}, nil
}

// Kind implements Entity.
func (c *Course) Kind() Kind { return KindCourse }

// EntityID implements Entity.
func (c *Course) EntityID() string { return c.ID }

// DisplayName implements Entity.
func (c *Course) DisplayName() string { return c.Name }

func (c *Course) sealed() {}

// HasInstructor reports whether an instructor is assigned.
func (c *Course) HasInstructor() bool { return c.InstructorID != "" }

// Clone returns a deep copy.
func (c *Course) Clone() *Course {
	out := *c
	out.EnrolledStudentIDs = c.EnrolledStudentIDs.Clone()
	return &out
}
