package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sma-records/internal/models"
	appErrors "github.com/noah-isme/sma-records/pkg/errors"
)

// SnapshotVersion is written into every snapshot.
const SnapshotVersion = 1

// Format selects a snapshot encoding.
type Format string

// Supported snapshot encodings.
const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat maps a query value to a Format. Empty means JSON.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "msgpack", "mp":
		return FormatMsgpack, nil
	}
	return "", appErrors.FieldInvalid("format", fmt.Sprintf("%q is not supported", raw))
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatMsgpack:
		return "application/msgpack"
	}
	return "application/json"
}

// Snapshot is the nested dump of every collection.
type Snapshot struct {
	Version     int                  `json:"version" yaml:"version" msgpack:"version"`
	Students    []*models.Student    `json:"students" yaml:"students" msgpack:"students"`
	Instructors []*models.Instructor `json:"instructors" yaml:"instructors" msgpack:"instructors"`
	Courses     []*models.Course     `json:"courses" yaml:"courses" msgpack:"courses"`
}

// FromGraph captures g in store order.
func FromGraph(g *models.Graph) Snapshot {
	return Snapshot{
		Version:     SnapshotVersion,
		Students:    g.Students.Items(),
		Instructors: g.Instructors.Items(),
		Courses:     g.Courses.Items(),
	}
}

// Graph rebuilds the graph, checking structure and id uniqueness per kind.
func (s Snapshot) Graph() (*models.Graph, error) {
	g := models.NewGraph()
	put := func(e models.Entity, err error) error {
		if err != nil {
			return err
		}
		if e.EntityID() == "" {
			return appErrors.InvalidEntity(string(e.Kind()), "id is required")
		}
		if g.Exists(e.Kind(), e.EntityID()) {
			return appErrors.DuplicateID(string(e.Kind()), e.EntityID())
		}
		g.Put(e)
		return nil
	}
	for _, v := range s.Students {
		if v == nil {
			continue
		}
		if err := put(models.NewStudent(v.ID, v.Name, v.Age, v.Email, v.RegisteredCourseIDs)); err != nil {
			return nil, err
		}
	}
	for _, v := range s.Instructors {
		if v == nil {
			continue
		}
		if err := put(models.NewInstructor(v.ID, v.Name, v.Age, v.Email, v.AssignedCourseIDs)); err != nil {
			return nil, err
		}
	}
	for _, v := range s.Courses {
		if v == nil {
			continue
		}
		if err := put(models.NewCourse(v.ID, v.Name, v.InstructorID, v.EnrolledStudentIDs)); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Encode serializes the snapshot.
func Encode(s Snapshot, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(s, "", "  ")
	case FormatYAML:
		buf := &bytes.Buffer{}
		enc := yaml.NewEncoder(buf)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return nil, fmt.Errorf("encode yaml snapshot: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml snapshot: %w", err)
		}
		return buf.Bytes(), nil
	case FormatMsgpack:
		return msgpack.Marshal(s)
	}
	return nil, appErrors.FieldInvalid("format", fmt.Sprintf("%q is not supported", format))
}

// Decode parses a snapshot document.
func Decode(raw []byte, format Format) (Snapshot, error) {
	var (
		s   Snapshot
		err error
	)
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		err = dec.Decode(&s)
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		err = dec.Decode(&s)
	case FormatMsgpack:
		err = msgpack.Unmarshal(raw, &s)
	default:
		return Snapshot{}, appErrors.FieldInvalid("format", fmt.Sprintf("%q is not supported", format))
	}
	if err != nil {
		return Snapshot{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("malformed %s snapshot", format))
	}
	if s.Version > SnapshotVersion {
		return Snapshot{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("snapshot version %d is newer than %d", s.Version, SnapshotVersion))
	}
	return s, nil
}
