package models

import appErrors "github.com/noah-isme/sma-records/pkg/errors"

// Patch carries a partial update. Nil fields are left unchanged.
type Patch struct {
	Name                *string `json:"name,omitempty"`
	Age                 *int    `json:"age,omitempty"`
	Email               *string `json:"email,omitempty"`
	RegisteredCourseIDs *IDList `json:"registered_course_ids,omitempty"`
	AssignedCourseIDs   *IDList `json:"assigned_course_ids,omitempty"`
	EnrolledStudentIDs  *IDList `json:"enrolled_student_ids,omitempty"`
	InstructorID        *string `json:"instructor_id,omitempty"`
}

// ApplyTo returns a patched copy of e. Setting a field the kind does not have
// is rejected.
func (p Patch) ApplyTo(e Entity) (Entity, error) {
	switch v := e.(type) {
	case *Student:
		if p.AssignedCourseIDs != nil || p.EnrolledStudentIDs != nil || p.InstructorID != nil {
			return nil, appErrors.InvalidEntity(string(KindStudent), "patch sets fields students do not have")
		}
		out := v.Clone()
		p.applyPerson(&out.Name, &out.Age, &out.Email)
		if p.RegisteredCourseIDs != nil {
			out.RegisteredCourseIDs = NewIDList(*p.RegisteredCourseIDs...)
		}
		if err := checkPatched(KindStudent, out.ID, out.Name, out.RegisteredCourseIDs); err != nil {
			return nil, err
		}
		return out, nil
	case *Instructor:
		if p.RegisteredCourseIDs != nil || p.EnrolledStudentIDs != nil || p.InstructorID != nil {
			return nil, appErrors.InvalidEntity(string(KindInstructor), "patch sets fields instructors do not have")
		}
		out := v.Clone()
		p.applyPerson(&out.Name, &out.Age, &out.Email)
		if p.AssignedCourseIDs != nil {
			out.AssignedCourseIDs = NewIDList(*p.AssignedCourseIDs...)
		}
		if err := checkPatched(KindInstructor, out.ID, out.Name, out.AssignedCourseIDs); err != nil {
			return nil, err
		}
		return out, nil
	case *Course:
		if p.RegisteredCourseIDs != nil || p.AssignedCourseIDs != nil || p.Age != nil || p.Email != nil {
			return nil, appErrors.InvalidEntity(string(KindCourse), "patch sets fields courses do not have")
		}
		out := v.Clone()
		if p.Name != nil {
			out.Name = *p.Name
		}
		if p.InstructorID != nil {
			out.InstructorID = *p.InstructorID
		}
		if p.EnrolledStudentIDs != nil {
			out.EnrolledStudentIDs = NewIDList(*p.EnrolledStudentIDs...)
		}
		refs := out.EnrolledStudentIDs
		if out.InstructorID != "" {
			refs = append(refs.Clone(), out.InstructorID)
		}
		if err := checkPatched(KindCourse, out.ID, out.Name, refs); err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, appErrors.InvalidEntity("entity", "unsupported entity")
}

func (p Patch) applyPerson(name *string, age *int, email *string) {
	if p.Name != nil {
		*name = *p.Name
	}
	if p.Age != nil {
		*age = *p.Age
	}
	if p.Email != nil {
		*email = *p.Email
	}
}

func checkPatched(kind Kind, id, name string, refs IDList) error {
	if err := checkStructure(kind, id, name); err != nil {
		return err
	}
	return checkIDs(kind, refs)
}
