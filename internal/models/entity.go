package models

import (
	"fmt"
	"regexp"
	"strings"

	appErrors "github.com/noah-isme/sma-records/pkg/errors"
)

// Kind names one of the three entity collections.
type Kind string

// Supported entity kinds.
const (
	KindStudent    Kind = "student"
	KindInstructor Kind = "instructor"
	KindCourse     Kind = "course"
)

// Kinds lists every entity kind in store iteration order.
var Kinds = []Kind{KindStudent, KindInstructor, KindCourse}

// ParseKind accepts singular or plural kind names, case-insensitively.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "student", "students":
		return KindStudent, nil
	case "instructor", "instructors":
		return KindInstructor, nil
	case "course", "courses":
		return KindCourse, nil
	}
	return "", appErrors.InvalidEntity("entity", fmt.Sprintf("unknown kind %q", raw))
}

// Entity is implemented by Student, Instructor and Course only.
type Entity interface {
	Kind() Kind
	EntityID() string
	DisplayName() string
	sealed()
}

// idPattern keeps ids free of whitespace and the ';' list separator.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,63}$`)

// ValidID reports whether id is well formed.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

func checkStructure(kind Kind, id, name string) error {
	if id != "" && !ValidID(id) {
		return appErrors.InvalidEntity(string(kind), fmt.Sprintf("malformed id %q", id))
	}
	if name == "" {
		return appErrors.InvalidEntity(string(kind), "name is required")
	}
	return nil
}

func checkIDs(kind Kind, ids []string) error {
	for _, id := range ids {
		if !ValidID(id) {
			return appErrors.InvalidEntity(string(kind), fmt.Sprintf("malformed reference %q", id))
		}
	}
	return nil
}

// SetID assigns id to e. The store calls it once, before the first write.
func SetID(e Entity, id string) {
	switch v := e.(type) {
	case *Student:
		v.ID = id
	case *Instructor:
		v.ID = id
	case *Course:
		v.ID = id
	}
}
