package models

// Instructor represents a teacher and the courses assigned to them.
type Instructor struct {
	ID                string `db:"id" json:"id" yaml:"id" msgpack:"id" validate:"required,entityid"`
	Name              string `db:"name" json:"name" yaml:"name" msgpack:"name" validate:"notblank,max=200"`
	Age               int    `db:"age" json:"age" yaml:"age" msgpack:"age" validate:"gte=0,lte=150"`
	Email             string `db:"email" json:"email,omitempty" yaml:"email,omitempty" msgpack:"email,omitempty" validate:"omitempty,email"`
	AssignedCourseIDs IDList `db:"assigned_course_ids" json:"assigned_course_ids" yaml:"assigned_course_ids" msgpack:"assigned_course_ids" validate:"dive,entityid"`
}

// NewInstructor builds an instructor, failing when the structure is malformed.
func NewInstructor(id, name string, age int, email string, courseIDs []string) (*Instructor, error) {
	if err := checkStructure(KindInstructor, id, name); err != nil {
		return nil, err
	}
	if err := checkIDs(KindInstructor, courseIDs); err != nil {
		return nil, err
	}
	return &Instructor{ID: id, Name: name, Age: age, Email: email, AssignedCourseIDs: NewIDList(courseIDs...)}, nil
}

// Kind implements Entity.
func (i *Instructor) Kind() Kind { return KindInstructor }

// EntityID implements Entity.
func (i *Instructor) EntityID() string { return i.ID }

// DisplayName implements Entity.
func (i *Instructor) DisplayName() string { return i.Name }

func (i *Instructor) sealed() {}

// Clone returns a deep copy.
func (i *Instructor) Clone() *Instructor {
	c := *i
	c.AssignedCourseIDs = i.AssignedCourseIDs.Clone()
	return &c
}
