package repository

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-records/internal/models"
	appErrors "github.com/noah-isme/sma-records/pkg/errors"
)

const defaultPageSize = 100

// Store is the durable owner of students, instructors and courses. Every
// public call holds the store mutex for its whole duration, so a backup or
// export never observes half of a write.
type Store struct {
	db       *sqlx.DB
	mu       sync.Mutex
	logger   *zap.Logger
	metrics  queryObserver
	pageSize int
}

// NewStore applies the schema and returns a ready store.
func NewStore(db *sqlx.DB, logger *zap.Logger, metrics queryObserver) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{db: db, logger: logger, metrics: metrics, pageSize: defaultPageSize}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, appErrors.StorageIO(err, "apply schema")
		}
	}
	return s, nil
}

// SetPageSize tunes how many rows List fetches per lock acquisition.
func (s *Store) SetPageSize(size int) {
	if size > 0 {
		s.pageSize = size
	}
}

func (s *Store) queries(ext sqlx.ExtContext) queries {
	return queries{ext: ext, metrics: s.metrics}
}

// WithTx runs fn inside one SQLite transaction. Any error from fn rolls the
// transaction back; nothing fn wrote becomes visible.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.StorageIO(err, "begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := sqlTx.Rollback(); rbErr != nil {
				s.logger.Warn("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	tx := &Tx{q: s.queries(sqlTx)}
	if err := fn(tx); err != nil {
		return err
	}
	if tx.mutated {
		if err := tx.q.bumpRevision(ctx); err != nil {
			return err
		}
	}
	if err := sqlTx.Commit(); err != nil {
		return appErrors.StorageIO(err, "commit transaction")
	}
	committed = true
	return nil
}

// Create persists a new entity, assigning an id when it has none. It writes
// only e: references are not validated and counterparts are not updated, so
// record mutations go through service.RecordService.
func (s *Store) Create(ctx context.Context, e models.Entity) (models.Entity, error) {
	err := s.WithTx(ctx, func(tx *Tx) error {
		return tx.Create(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Read returns one entity.
func (s *Store) Read(ctx context.Context, kind models.Kind, id string) (models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries(s.db).read(ctx, kind, id)
}

// Update merges patch into the stored entity. Like Create it leaves
// counterparts untouched; use service.RecordService to keep links symmetric.
func (s *Store) Update(ctx context.Context, kind models.Kind, id string, patch models.Patch) (models.Entity, error) {
	var out models.Entity
	err := s.WithTx(ctx, func(tx *Tx) error {
		updated, err := tx.Update(ctx, kind, id, patch)
		out = updated
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes one entity row without cascading to references held by
// other rows. service.RecordService.Delete performs the cascade.
func (s *Store) Delete(ctx context.Context, kind models.Kind, id string) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		return tx.Delete(ctx, kind, id)
	})
}

// List yields every entity of kind in insertion order. Rows are fetched in
// pages when iteration starts; the lock is released while the caller handles
// a page. Ranging again re-reads the store.
func (s *Store) List(ctx context.Context, kind models.Kind) iter.Seq2[models.Entity, error] {
	return func(yield func(models.Entity, error) bool) {
		var after int64
		for {
			s.mu.Lock()
			page, last, err := s.queries(s.db).page(ctx, kind, after, s.pageSize)
			s.mu.Unlock()
			if err != nil {
				yield(nil, err)
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				return
			}
			after = last
		}
	}
}

// Graph loads every collection at one point in time.
func (s *Store) Graph(ctx context.Context) (*models.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries(s.db).loadGraph(ctx)
}

// GraphWithRevision loads every collection together with the revision it
// reflects, both under one lock acquisition.
func (s *Store) GraphWithRevision(ctx context.Context) (*models.Graph, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queries(s.db)
	rev, err := q.revision(ctx)
	if err != nil {
		return nil, 0, err
	}
	g, err := q.loadGraph(ctx)
	if err != nil {
		return nil, 0, err
	}
	return g, rev, nil
}

// Revision increases with every committed mutation.
func (s *Store) Revision(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries(s.db).revision(ctx)
}

// Backup writes a consistent copy of the database to dest. The copy is built
// next to dest and renamed into place so dest is never half written.
func (s *Store) Backup(ctx context.Context, dest string) error {
	if dest == "" {
		return appErrors.FieldInvalid("destination", "is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return appErrors.StorageIO(err, "prepare backup directory")
	}
	tmp := fmt.Sprintf("%s.partial", dest)
	_ = os.Remove(tmp)
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", tmp); err != nil {
		_ = os.Remove(tmp)
		return appErrors.StorageIO(err, "backup")
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return appErrors.StorageIO(err, "backup")
	}
	s.logger.Info("database backup written", zap.String("path", dest))
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
