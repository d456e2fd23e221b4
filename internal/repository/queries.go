package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-records/internal/models"
	appErrors "github.com/noah-isme/sma-records/pkg/errors"
)

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

type studentRow struct {
	Seq int64 `db:"seq"`
	models.Student
}

type instructorRow struct {
	Seq int64 `db:"seq"`
	models.Instructor
}

type courseRow struct {
	Seq int64 `db:"seq"`
	models.Course
}

// queries runs statements against either the database handle or an open
// transaction. Callers hold the store lock.
type queries struct {
	ext     sqlx.ExtContext
	metrics queryObserver
}

func (q queries) observe(label string, start time.Time) {
	if q.metrics != nil {
		q.metrics.ObserveDBQuery(label, time.Since(start))
	}
}

func (q queries) selectEntities(ctx context.Context, kind models.Kind, where string, args ...interface{}) ([]models.Entity, int64, error) {
	spec, err := specFor(kind)
	if err != nil {
		return nil, 0, appErrors.InvalidEntity(string(kind), err.Error())
	}
	defer q.observe("select_"+spec.name, time.Now())
	query := spec.selectSQL(where)

	var (
		out  []models.Entity
		last int64
	)
	switch kind {
	case models.KindStudent:
		var rows []studentRow
		if err := sqlx.SelectContext(ctx, q.ext, &rows, query, args...); err != nil {
			return nil, 0, appErrors.StorageIO(err, "select "+spec.name)
		}
		for i := range rows {
			student := rows[i].Student
			out = append(out, &student)
			last = rows[i].Seq
		}
	case models.KindInstructor:
		var rows []instructorRow
		if err := sqlx.SelectContext(ctx, q.ext, &rows, query, args...); err != nil {
			return nil, 0, appErrors.StorageIO(err, "select "+spec.name)
		}
		for i := range rows {
			instructor := rows[i].Instructor
			out = append(out, &instructor)
			last = rows[i].Seq
		}
	case models.KindCourse:
		var rows []courseRow
		if err := sqlx.SelectContext(ctx, q.ext, &rows, query, args...); err != nil {
			return nil, 0, appErrors.StorageIO(err, "select "+spec.name)
		}
		for i := range rows {
			course := rows[i].Course
			out = append(out, &course)
			last = rows[i].Seq
		}
	}
	return out, last, nil
}

func (q queries) read(ctx context.Context, kind models.Kind, id string) (models.Entity, error) {
	entities, _, err := q.selectEntities(ctx, kind, "WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, appErrors.NotFound(string(kind), id)
	}
	return entities[0], nil
}

func (q queries) page(ctx context.Context, kind models.Kind, afterSeq int64, limit int) ([]models.Entity, int64, error) {
	return q.selectEntities(ctx, kind, "WHERE seq > ? ORDER BY seq LIMIT ?", afterSeq, limit)
}

func (q queries) exists(ctx context.Context, kind models.Kind, id string) (bool, error) {
	spec, err := specFor(kind)
	if err != nil {
		return false, appErrors.InvalidEntity(string(kind), err.Error())
	}
	defer q.observe("exists_"+spec.name, time.Now())
	var count int
	if err := sqlx.GetContext(ctx, q.ext, &count, "SELECT COUNT(1) FROM "+spec.name+" WHERE id = ?", id); err != nil {
		return false, appErrors.StorageIO(err, "check "+spec.name)
	}
	return count > 0, nil
}

func (q queries) insert(ctx context.Context, e models.Entity) error {
	spec, err := specFor(e.Kind())
	if err != nil {
		return appErrors.InvalidEntity(string(e.Kind()), err.Error())
	}
	defer q.observe("insert_"+spec.name, time.Now())
	if _, err := sqlx.NamedExecContext(ctx, q.ext, spec.insertSQL(), e); err != nil {
		return appErrors.StorageIO(err, "insert "+spec.name)
	}
	return nil
}

func (q queries) upsert(ctx context.Context, e models.Entity) error {
	spec, err := specFor(e.Kind())
	if err != nil {
		return appErrors.InvalidEntity(string(e.Kind()), err.Error())
	}
	defer q.observe("upsert_"+spec.name, time.Now())
	if _, err := sqlx.NamedExecContext(ctx, q.ext, spec.upsertSQL(), e); err != nil {
		return appErrors.StorageIO(err, "upsert "+spec.name)
	}
	return nil
}

func (q queries) update(ctx context.Context, e models.Entity) error {
	spec, err := specFor(e.Kind())
	if err != nil {
		return appErrors.InvalidEntity(string(e.Kind()), err.Error())
	}
	defer q.observe("update_"+spec.name, time.Now())
	res, err := sqlx.NamedExecContext(ctx, q.ext, spec.updateSQL(), e)
	if err != nil {
		return appErrors.StorageIO(err, "update "+spec.name)
	}
	return requireRow(res, e.Kind(), e.EntityID())
}

func (q queries) delete(ctx context.Context, kind models.Kind, id string) error {
	spec, err := specFor(kind)
	if err != nil {
		return appErrors.InvalidEntity(string(kind), err.Error())
	}
	defer q.observe("delete_"+spec.name, time.Now())
	res, err := q.ext.ExecContext(ctx, "DELETE FROM "+spec.name+" WHERE id = ?", id)
	if err != nil {
		return appErrors.StorageIO(err, "delete "+spec.name)
	}
	return requireRow(res, kind, id)
}

func (q queries) clear(ctx context.Context) error {
	for _, kind := range models.Kinds {
		spec, _ := specFor(kind)
		if _, err := q.ext.ExecContext(ctx, "DELETE FROM "+spec.name); err != nil {
			return appErrors.StorageIO(err, "clear "+spec.name)
		}
	}
	return nil
}

func (q queries) loadGraph(ctx context.Context) (*models.Graph, error) {
	g := models.NewGraph()
	for _, kind := range models.Kinds {
		entities, _, err := q.selectEntities(ctx, kind, "ORDER BY seq")
		if err != nil {
			return nil, err
		}
		for _, e := range entities {
			g.Put(e)
		}
	}
	return g, nil
}

func (q queries) revision(ctx context.Context) (int64, error) {
	var rev int64
	err := sqlx.GetContext(ctx, q.ext, &rev, "SELECT value FROM store_meta WHERE key = 'revision'")
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, appErrors.StorageIO(err, "read revision")
	}
	return rev, nil
}

func (q queries) bumpRevision(ctx context.Context) error {
	const query = `INSERT INTO store_meta (key, value) VALUES ('revision', 1)
        ON CONFLICT(key) DO UPDATE SET value = value + 1`
	if _, err := q.ext.ExecContext(ctx, query); err != nil {
		return appErrors.StorageIO(err, "bump revision")
	}
	return nil
}

func requireRow(res sql.Result, kind models.Kind, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return appErrors.StorageIO(err, "rows affected")
	}
	if affected == 0 {
		return appErrors.NotFound(string(kind), id)
	}
	return nil
}
