package codec

import (
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-records/internal/models"
	appErrors "github.com/noah-isme/sma-records/pkg/errors"
	"github.com/noah-isme/sma-records/pkg/export"
)

func sampleGraph() *models.Graph {
	g := models.NewGraph()
	g.Put(&models.Student{ID: "1", Name: "Ann", Age: 20, Email: "ann@example.com", RegisteredCourseIDs: models.IDList{"10"}})
	g.Put(&models.Student{ID: "2", Name: "Bob, Jr.", Age: 21, RegisteredCourseIDs: models.IDList{"10", "11"}})
	g.Put(&models.Instructor{ID: "i1", Name: "Dr. Grey", Age: 45, Email: "grey@example.com", AssignedCourseIDs: models.IDList{"10"}})
	g.Put(&models.Course{ID: "10", Name: "Math", InstructorID: "i1", EnrolledStudentIDs: models.IDList{"1", "2"}})
	g.Put(&models.Course{ID: "11", Name: "Art", EnrolledStudentIDs: models.IDList{"2"}})
	return g
}

func assertSameGraph(t *testing.T, want, got *models.Graph) {
	t.Helper()
	require.Equal(t, len(want.Entities()), len(got.Entities()))
	for _, e := range want.Entities() {
		other, ok := got.Lookup(e.Kind(), e.EntityID())
		require.True(t, ok, "missing %s %s", e.Kind(), e.EntityID())
		switch v := e.(type) {
		case *models.Student:
			o := other.(*models.Student)
			assert.Equal(t, v.Name, o.Name)
			assert.Equal(t, v.Age, o.Age)
			assert.Equal(t, v.Email, o.Email)
			assert.ElementsMatch(t, v.RegisteredCourseIDs, o.RegisteredCourseIDs)
		case *models.Instructor:
			o := other.(*models.Instructor)
			assert.Equal(t, v.Name, o.Name)
			assert.Equal(t, v.Age, o.Age)
			assert.Equal(t, v.Email, o.Email)
			assert.ElementsMatch(t, v.AssignedCourseIDs, o.AssignedCourseIDs)
		case *models.Course:
			o := other.(*models.Course)
			assert.Equal(t, v.Name, o.Name)
			assert.Equal(t, v.InstructorID, o.InstructorID)
			assert.ElementsMatch(t, v.EnrolledStudentIDs, o.EnrolledStudentIDs)
		}
	}
}

func TestFlattenGolden(t *testing.T) {
	raw, err := export.NewCSVExporter().Render(Flatten(sampleGraph()))
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "flat_table", raw)
}

func TestFlattenLeavesForeignColumnsEmpty(t *testing.T) {
	data := Flatten(sampleGraph())
	course := data.Rows[len(data.Rows)-1]
	assert.Equal(t, "course", course[ColumnType])
	assert.Equal(t, "", course[ColumnInstructorID])
	assert.Equal(t, "", course[ColumnRegisteredCourseIDs])
	assert.Equal(t, "", course[ColumnAge])
}

func TestFlatRoundTrip(t *testing.T) {
	csv := export.NewCSVExporter()
	raw, err := csv.Render(Flatten(sampleGraph()))
	require.NoError(t, err)

	parsed, err := csv.Parse(raw, FlatColumns...)
	require.NoError(t, err)
	got, err := Unflatten(parsed)
	require.NoError(t, err)
	assertSameGraph(t, sampleGraph(), got)
}

func TestUnflattenTrimsListItems(t *testing.T) {
	data := export.Dataset{Headers: FlatColumns, Rows: []map[string]string{
		{ColumnType: "course", ColumnID: "10", ColumnName: "Math", ColumnEnrolledStudentIDs: " 1 ; ;2 ", ColumnInstructorID: " "},
	}}
	g, err := Unflatten(data)
	require.NoError(t, err)
	course, ok := g.Courses.Get("10")
	require.True(t, ok)
	assert.Equal(t, models.IDList{"1", "2"}, course.EnrolledStudentIDs)
	assert.False(t, course.HasInstructor())
}

func TestUnflattenRejectsBadRows(t *testing.T) {
	cases := map[string]struct {
		row  map[string]string
		want *appErrors.Error
	}{
		"unknown type": {row: map[string]string{ColumnType: "janitor", ColumnID: "1", ColumnName: "X"}, want: appErrors.ErrInvalidEntity},
		"missing id":   {row: map[string]string{ColumnType: "student", ColumnName: "X"}, want: appErrors.ErrInvalidEntity},
		"missing name": {row: map[string]string{ColumnType: "course", ColumnID: "1"}, want: appErrors.ErrInvalidEntity},
		"bad age":      {row: map[string]string{ColumnType: "student", ColumnID: "1", ColumnName: "X", ColumnAge: "old"}, want: appErrors.ErrInvalidEntity},
		"bad ref":      {row: map[string]string{ColumnType: "student", ColumnID: "1", ColumnName: "X", ColumnRegisteredCourseIDs: "a b"}, want: appErrors.ErrInvalidEntity},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Unflatten(export.Dataset{Headers: FlatColumns, Rows: []map[string]string{tc.row}})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), err.Error())
			assert.Equal(t, "2", appErrors.FromError(err).Details["row"])
		})
	}
}

func TestUnflattenDuplicateID(t *testing.T) {
	rows := []map[string]string{
		{ColumnType: "student", ColumnID: "1", ColumnName: "Ann"},
		{ColumnType: "course", ColumnID: "1", ColumnName: "Math"},
		{ColumnType: "student", ColumnID: "1", ColumnName: "Again"},
	}
	_, err := Unflatten(export.Dataset{Headers: FlatColumns, Rows: rows})
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateID))
	assert.Equal(t, "4", appErrors.FromError(err).Details["row"])
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML, FormatMsgpack} {
		t.Run(string(format), func(t *testing.T) {
			raw, err := Encode(FromGraph(sampleGraph()), format)
			require.NoError(t, err)

			snap, err := Decode(raw, format)
			require.NoError(t, err)
			assert.Equal(t, SnapshotVersion, snap.Version)
			got, err := snap.Graph()
			require.NoError(t, err)
			assertSameGraph(t, sampleGraph(), got)
		})
	}
}

func TestSnapshotGraphRejectsDuplicates(t *testing.T) {
	snap := Snapshot{Students: []*models.Student{{ID: "1", Name: "Ann"}, {ID: "1", Name: "Bob"}}}
	_, err := snap.Graph()
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateID))
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	_, err := Decode([]byte(`{"students": 3}`), FormatJSON)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = Decode([]byte(`{"version": 99}`), FormatJSON)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = Decode([]byte("teachers: []\n"), FormatYAML)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)
	assert.Equal(t, "application/yaml", f.ContentType())

	_, err = ParseFormat("xml")
	assert.True(t, errors.Is(err, appErrors.ErrFieldValidation))
}
