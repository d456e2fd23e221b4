package handler

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-records/internal/codec"
	"github.com/noah-isme/sma-records/internal/service"
	appErrors "github.com/noah-isme/sma-records/pkg/errors"
	"github.com/noah-isme/sma-records/pkg/response"
)

// maxImportBytes bounds uploaded snapshots and tables.
const maxImportBytes = 32 << 20

// TransferHandler exposes export and import endpoints.
type TransferHandler struct {
	transfer *service.TransferService
}

// NewTransferHandler constructs TransferHandler.
func NewTransferHandler(transfer *service.TransferService) *TransferHandler {
	return &TransferHandler{transfer: transfer}
}

// ExportSnapshot godoc
// @Summary Export snapshot
// @Tags Transfer
// @Produce json,application/yaml,application/msgpack
// @Param format query string false "json (default), yaml or msgpack"
// @Success 200 {file} file
// @Router /export/snapshot [get]
func (h *TransferHandler) ExportSnapshot(c *gin.Context) {
	format, err := codec.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, err := h.transfer.ExportSnapshot(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, "snapshot."+string(format), format.ContentType(), payload)
}

// ImportSnapshot godoc
// @Summary Import snapshot
// @Description Body is the snapshot document. mode=replace discards stored records. mode=merge updates fields of records with matching ids, keeps the other stored records and unions student enrollments from both sides. A course's instructor_id decides its instructor assignment.
// @Tags Transfer
// @Accept json,application/yaml,application/msgpack
// @Produce json
// @Param format query string false "json (default), yaml or msgpack"
// @Param mode query string false "replace (default) or merge"
// @Success 200 {object} response.Envelope
// @Router /import/snapshot [post]
func (h *TransferHandler) ImportSnapshot(c *gin.Context) {
	format, err := codec.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	mode, err := service.ParseImportMode(c.Query("mode"))
	if err != nil {
		response.Error(c, err)
		return
	}
	raw, err := readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.transfer.ImportSnapshot(c.Request.Context(), raw, format, mode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// ExportTable godoc
// @Summary Export flat table
// @Description One row per record with semicolon-joined relationship ids.
// @Tags Transfer
// @Produce text/csv,application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /export/table [get]
func (h *TransferHandler) ExportTable(c *gin.Context) {
	format, err := service.ParseTableFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, err := h.transfer.ExportTable(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, "records."+string(format), format.ContentType(), payload)
}

// ImportTable godoc
// @Summary Import flat CSV table
// @Description mode=replace discards stored records. mode=merge updates fields of records with matching ids, keeps the other stored records and unions student enrollments from both sides. A course's instructor_id decides its instructor assignment.
// @Tags Transfer
// @Accept text/csv,multipart/form-data
// @Produce json
// @Param mode query string false "replace (default) or merge"
// @Success 200 {object} response.Envelope
// @Router /import/table [post]
func (h *TransferHandler) ImportTable(c *gin.Context) {
	mode, err := service.ParseImportMode(c.Query("mode"))
	if err != nil {
		response.Error(c, err)
		return
	}
	raw, err := readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.transfer.ImportTable(c.Request.Context(), raw, mode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// readUpload returns the request body, or the "file" part of a multipart form.
func readUpload(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)

	var src io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			return nil, appErrors.FieldInvalid("file", "is required")
		}
		file, err := header.Open()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload")
		}
		defer file.Close() //nolint:errcheck
		src = file
	}
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, fmt.Sprintf("upload exceeds %d bytes or is unreadable", maxImportBytes))
	}
	if len(raw) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty upload")
	}
	return raw, nil
}
