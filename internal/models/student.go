package models

// Student represents a learner and the courses they are registered in.
type Student struct {
	ID                  string `db:"id" json:"id" yaml:"id" msgpack:"id" validate:"required,entityid"`
	Name                string `db:"name" json:"name" yaml:"name" msgpack:"name" validate:"notblank,max=200"`
	Age                 int    `db:"age" json:"age" yaml:"age" msgpack:"age" validate:"gte=0,lte=150"`
	Email               string `db:"email" json:"email,omitempty" yaml:"email,omitempty" msgpack:"email,omitempty" validate:"omitempty,email"`
	RegisteredCourseIDs IDList `db:"registered_course_ids" json:"registered_course_ids" yaml:"registered_course_ids" msgpack:"registered_course_ids" validate:"dive,entityid"`
}

// NewStudent builds a student, failing when the structure is malformed.
// An empty id is accepted and assigned by the store on create.
func NewStudent(id, name string, age int, email string, courseIDs []string) (*Student, error) {
	if err := checkStructure(KindStudent, id, name); err != nil {
		return nil, err
	}
	if err := checkIDs(KindStudent, courseIDs); err != nil {
		return nil, err
	}
	return &Student{ID: id, Name: name, Age: age, Email: email, RegisteredCourseIDs: NewIDList(courseIDs...)}, nil
}

// Kind implements Entity.
func (s *Student) Kind() Kind { return KindStudent }

// EntityID implements Entity.
func (s *Student) EntityID() string { return s.ID }

// DisplayName implements Entity.
func (s *Student) DisplayName() string { return s.Name }

func (s *Student) sealed() {}

// Clone returns a deep copy.
func (s *Student) Clone() *Student {
	c := *s
	c.RegisteredCourseIDs = s.RegisteredCourseIDs.Clone()
	return &c
}
