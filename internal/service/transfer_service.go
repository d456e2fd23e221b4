package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/sma-records/internal/codec"
	"github.com/noah-isme/sma-records/internal/integrity"
	"github.com/noah-isme/sma-records/internal/models"
	"github.com/noah-isme/sma-records/internal/repository"
	appErrors "github.com/noah-isme/sma-records/pkg/errors"
	"github.com/noah-isme/sma-records/pkg/export"
)

const exportCachePrefix = "records:export:"

type transferStore interface {
	WithTx(ctx context.Context, fn func(tx *repository.Tx) error) error
	GraphWithRevision(ctx context.Context) (*models.Graph, int64, error)
	Revision(ctx context.Context) (int64, error)
}

func exportCacheKey(name string, rev int64) string {
	return fmt.Sprintf("%s%s:rev%d", exportCachePrefix, name, rev)
}

type tableCodec interface {
	Render(data export.Dataset) ([]byte, error)
	Parse(raw []byte, required ...string) (export.Dataset, error)
}

// ImportMode states what an import does with entities already stored.
type ImportMode string

// Import modes.
const (
	// ImportReplace discards the store and loads the document.
	ImportReplace ImportMode = "replace"
	// ImportMerge keeps stored entities; document entities overwrite ones
	// with the same kind and id.
	ImportMerge ImportMode = "merge"
)

// ParseImportMode maps a query value to an ImportMode. Empty means replace.
func ParseImportMode(raw string) (ImportMode, error) {
	switch ImportMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ImportReplace:
		return ImportReplace, nil
	case ImportMerge:
		return ImportMerge, nil
	}
	return "", appErrors.FieldInvalid("mode", fmt.Sprintf("%q is not replace or merge", raw))
}

// TableFormat selects a flat table rendering.
type TableFormat string

// Flat table renderings. Only CSV can be imported.
const (
	TableCSV TableFormat = "csv"
	TablePDF TableFormat = "pdf"
)

// ParseTableFormat maps a query value to a TableFormat. Empty means CSV.
func ParseTableFormat(raw string) (TableFormat, error) {
	switch TableFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", TableCSV:
		return TableCSV, nil
	case TablePDF:
		return TablePDF, nil
	}
	return "", appErrors.FieldInvalid("format", fmt.Sprintf("%q is not csv or pdf", raw))
}

// ContentType is the MIME type served for the format.
func (f TableFormat) ContentType() string {
	if f == TablePDF {
		return "application/pdf"
	}
	return "text/csv"
}

// ImportResult counts what an import stored.
type ImportResult struct {
	Mode        ImportMode `json:"mode"`
	Students    int        `json:"students"`
	Instructors int        `json:"instructors"`
	Courses     int        `json:"courses"`
}

// TransferService exports the record graph as snapshots or flat tables and
// imports them back.
type TransferService struct {
	store     transferStore
	cache     *CacheService
	table     tableCodec
	pdf       pdfRenderer
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	group     singleflight.Group
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewTransferService constructs a TransferService. cache may be nil.
func NewTransferService(store transferStore, cache *CacheService, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, table tableCodec, pdf pdfRenderer) *TransferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == nil {
		table = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &TransferService{
		store:     store,
		cache:     cache,
		table:     table,
		pdf:       pdf,
		validator: RegisterRecordValidations(validate),
		metrics:   metrics,
		logger:    logger,
	}
}

// ExportSnapshot encodes every collection in the requested format.
func (s *TransferService) ExportSnapshot(ctx context.Context, format codec.Format) ([]byte, error) {
	return s.render(ctx, "snapshot:"+string(format), func(g *models.Graph) ([]byte, error) {
		raw, err := codec.Encode(codec.FromGraph(g), format)
		if err != nil {
			return nil, appErrors.FromError(err)
		}
		return raw, nil
	})
}

// ExportTable renders the flat table as CSV or PDF.
func (s *TransferService) ExportTable(ctx context.Context, format TableFormat) ([]byte, error) {
	return s.render(ctx, "table:"+string(format), func(g *models.Graph) ([]byte, error) {
		data := codec.Flatten(g)
		var (
			raw []byte
			err error
		)
		if format == TablePDF {
			raw, err = s.pdf.Render(data, "School records")
		} else {
			raw, err = s.table.Render(data)
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render table")
		}
		return raw, nil
	})
}

// render serves an export from cache when the store revision is unchanged.
// Concurrent requests for the same revision and format share one rendering.
func (s *TransferService) render(ctx context.Context, name string, build func(g *models.Graph) ([]byte, error)) ([]byte, error) {
	rev, err := s.store.Revision(ctx)
	if err != nil {
		return nil, err
	}
	key := exportCacheKey(name, rev)
	if payload, ok := s.cache.Get(ctx, key); ok {
		return payload, nil
	}

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		g, graphRev, err := s.store.GraphWithRevision(ctx)
		if err != nil {
			return nil, err
		}
		payload, err := build(g)
		if err != nil {
			return nil, err
		}
		// A write may land between the lookup and the load; the payload is
		// filed under the revision it was actually built from.
		_ = s.cache.Set(ctx, exportCacheKey(name, graphRev), payload, 0)
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	payload := v.([]byte)
	if !shared {
		s.metrics.ObserveTransfer("export", name, len(payload))
	}
	return payload, nil
}

// ImportSnapshot loads a snapshot document.
func (s *TransferService) ImportSnapshot(ctx context.Context, raw []byte, format codec.Format, mode ImportMode) (*ImportResult, error) {
	snap, err := codec.Decode(raw, format)
	if err != nil {
		return nil, err
	}
	doc, err := snap.Graph()
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTransfer("import", "snapshot:"+string(format), len(raw))
	return s.load(ctx, doc, mode)
}

// ImportTable loads a flat CSV table. Every listed id must resolve within
// the resulting store or the import fails with a dangling reference error.
func (s *TransferService) ImportTable(ctx context.Context, raw []byte, mode ImportMode) (*ImportResult, error) {
	data, err := s.table.Parse(raw, codec.ColumnType, codec.ColumnID, codec.ColumnName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed table")
	}
	doc, err := codec.Unflatten(data)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTransfer("import", "table:csv", len(raw))
	return s.load(ctx, doc, mode)
}

// load validates doc against the resulting store contents, reconciles both
// sides of every relationship and writes the graph in one transaction.
func (s *TransferService) load(ctx context.Context, doc *models.Graph, mode ImportMode) (*ImportResult, error) {
	if mode != ImportReplace && mode != ImportMerge {
		return nil, appErrors.FieldInvalid("mode", fmt.Sprintf("%q is not replace or merge", mode))
	}
	var result *ImportResult
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		target := doc
		if mode == ImportMerge {
			current, err := tx.LoadGraph(ctx)
			if err != nil {
				return err
			}
			for _, e := range doc.Entities() {
				current.Put(e)
			}
			target = current
		}
		for _, e := range doc.Entities() {
			if err := checkFields(s.validator, e); err != nil {
				return err
			}
			if err := checkReferences(target, e); err != nil {
				return err
			}
		}
		integrity.Normalize(target)
		if err := tx.ReplaceGraph(ctx, target); err != nil {
			return err
		}
		result = &ImportResult{
			Mode:        mode,
			Students:    target.Students.Len(),
			Instructors: target.Instructors.Len(),
			Courses:     target.Courses.Len(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	_ = s.cache.Invalidate(ctx, exportCachePrefix+"*")
	s.logger.Info("records imported",
		zap.String("mode", string(mode)),
		zap.Int("students", result.Students),
		zap.Int("instructors", result.Instructors),
		zap.Int("courses", result.Courses),
	)
	return result, nil
}
