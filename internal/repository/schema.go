package repository

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sma-records/internal/models"
)

// schema is applied statement by statement on startup. seq records insertion
// order; relationship lists are JSON arrays.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		age INTEGER NOT NULL DEFAULT 0 CHECK(age >= 0),
		email TEXT NOT NULL DEFAULT '',
		registered_course_ids TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS instructors (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		age INTEGER NOT NULL DEFAULT 0 CHECK(age >= 0),
		email TEXT NOT NULL DEFAULT '',
		assigned_course_ids TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS courses (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		instructor_id TEXT NOT NULL DEFAULT '',
		enrolled_student_ids TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS store_meta (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	)`,
}

type tableSpec struct {
	name    string
	columns []string
}

var tables = map[models.Kind]tableSpec{
	models.KindStudent:    {name: "students", columns: []string{"id", "name", "age", "email", "registered_course_ids"}},
	models.KindInstructor: {name: "instructors", columns: []string{"id", "name", "age", "email", "assigned_course_ids"}},
	models.KindCourse:     {name: "courses", columns: []string{"id", "name", "instructor_id", "enrolled_student_ids"}},
}

func specFor(kind models.Kind) (tableSpec, error) {
	spec, ok := tables[kind]
	if !ok {
		return tableSpec{}, fmt.Errorf("unknown entity kind %q", kind)
	}
	return spec, nil
}

func (t tableSpec) selectSQL(where string) string {
	return fmt.Sprintf("SELECT seq, %s FROM %s %s", strings.Join(t.columns, ", "), t.name, where)
}

func (t tableSpec) insertSQL() string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (:%s)", t.name, strings.Join(t.columns, ", "), strings.Join(t.columns, ", :"))
}

func (t tableSpec) upsertSQL() string {
	sets := make([]string, 0, len(t.columns)-1)
	for _, col := range t.columns[1:] {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	return fmt.Sprintf("%s ON CONFLICT(id) DO UPDATE SET %s", t.insertSQL(), strings.Join(sets, ", "))
}

func (t tableSpec) updateSQL() string {
	sets := make([]string, 0, len(t.columns)-1)
	for _, col := range t.columns[1:] {
		sets = append(sets, fmt.Sprintf("%s = :%s", col, col))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = :id", t.name, strings.Join(sets, ", "))
}
