package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-records/pkg/errors"
)

func TestNewStudentRejectsMalformedInput(t *testing.T) {
	_, err := NewStudent("s1", "", 18, "", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidEntity))

	_, err = NewStudent("bad id", "Ann", 18, "", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidEntity))

	_, err = NewStudent("s1", "Ann", 18, "", []string{"c1;c2"})
	require.Error(t, err)
}

func TestNewStudentCollapsesRepeatedCourses(t *testing.T) {
	s, err := NewStudent("", "Ann", 18, "ann@example.com", []string{"c1", "c2", "c1"})
	require.NoError(t, err)
	assert.Equal(t, IDList{"c1", "c2"}, s.RegisteredCourseIDs)
	assert.Equal(t, KindStudent, s.Kind())
	assert.Equal(t, "Ann", s.DisplayName())
}

func TestIDListSetOperations(t *testing.T) {
	list := NewIDList("a", "b")

	list, changed := list.Add("b")
	assert.False(t, changed)
	list, changed = list.Add("c")
	assert.True(t, changed)
	assert.Equal(t, IDList{"a", "b", "c"}, list)

	list, changed = list.Remove("zz")
	assert.False(t, changed)
	list, changed = list.Remove("a")
	assert.True(t, changed)
	assert.Equal(t, IDList{"b", "c"}, list)

	removed, added := list.Diff(IDList{"c", "d"})
	assert.Equal(t, IDList{"b"}, removed)
	assert.Equal(t, IDList{"d"}, added)
}

func TestParseIDList(t *testing.T) {
	assert.Equal(t, IDList{"1", "2"}, ParseIDList(" 1 ; ;2;1 "))
	assert.Empty(t, ParseIDList("   "))
	assert.Equal(t, "1;2", IDList{"1", "2"}.Join())
}

func TestIDListDatabaseRoundTrip(t *testing.T) {
	value, err := IDList{"x", "y"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["x","y"]`, value)

	var scanned IDList
	require.NoError(t, scanned.Scan([]byte(`["x","y","x"]`)))
	assert.Equal(t, IDList{"x", "y"}, scanned)

	require.NoError(t, scanned.Scan(nil))
	assert.Empty(t, scanned)
	assert.Error(t, scanned.Scan(42))
}

func TestPatchApplyTo(t *testing.T) {
	course := &Course{ID: "c1", Name: "Math", EnrolledStudentIDs: IDList{"s1"}}
	name := "Algebra"
	instructor := "i1"
	students := IDList{"s2", "s2"}

	patched, err := Patch{Name: &name, InstructorID: &instructor, EnrolledStudentIDs: &students}.ApplyTo(course)
	require.NoError(t, err)
	out := patched.(*Course)
	assert.Equal(t, "Algebra", out.Name)
	assert.Equal(t, "i1", out.InstructorID)
	assert.Equal(t, IDList{"s2"}, out.EnrolledStudentIDs)
	assert.Equal(t, "Math", course.Name, "original is untouched")

	age := 3
	_, err = Patch{Age: &age}.ApplyTo(course)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidEntity))

	empty := ""
	_, err = Patch{Name: &empty}.ApplyTo(&Student{ID: "s1", Name: "Ann"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidEntity))
}

func TestGraphKeepsInsertionOrder(t *testing.T) {
	g := NewGraph()
	g.Put(&Student{ID: "b", Name: "B"})
	g.Put(&Student{ID: "a", Name: "A"})
	g.Put(&Course{ID: "c", Name: "C"})
	g.Put(&Student{ID: "b", Name: "B2"})

	items := g.Students.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].ID)
	assert.Equal(t, "B2", items[0].Name)
	assert.True(t, g.Exists(KindCourse, "c"))
	assert.False(t, g.Exists(KindInstructor, "c"))

	assert.True(t, g.Remove(KindStudent, "b"))
	assert.False(t, g.Remove(KindStudent, "b"))
	assert.Len(t, g.Entities(), 2)
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("Courses")
	require.NoError(t, err)
	assert.Equal(t, KindCourse, kind)

	_, err = ParseKind("teachers")
	assert.Error(t, err)
}

func TestCloneDoesNotShareLists(t *testing.T) {
	course := &Course{ID: "c1", Name: "Math", EnrolledStudentIDs: IDList{"s1"}}
	copied := course.Clone()
	copied.EnrolledStudentIDs[0] = "s2"
	assert.Equal(t, IDList{"s1"}, course.EnrolledStudentIDs)

	student := &Student{ID: "s1", Name: "Ann", RegisteredCourseIDs: IDList{"c1"}}
	patched, err := Patch{}.ApplyTo(student)
	require.NoError(t, err)
	patched.(*Student).RegisteredCourseIDs[0] = "c2"
	assert.Equal(t, IDList{"c1"}, student.RegisteredCourseIDs)
}
