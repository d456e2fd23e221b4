package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-records/internal/service"
	"github.com/noah-isme/sma-records/pkg/response"
)

// BackupHandler exposes database backup endpoints.
type BackupHandler struct {
	backups *service.BackupService
}

// NewBackupHandler constructs BackupHandler.
func NewBackupHandler(backups *service.BackupService) *BackupHandler {
	return &BackupHandler{backups: backups}
}

type createBackupRequest struct {
	Name string `json:"name"`
}

// Create godoc
// @Summary Create backup
// @Description Writes a consistent copy of the database into the backup directory.
// @Tags Backups
// @Accept json
// @Produce json
// @Param payload body createBackupRequest false "Optional file name"
// @Success 201 {object} response.Envelope
// @Router /backups [post]
func (h *BackupHandler) Create(c *gin.Context) {
	var req createBackupRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	result, err := h.backups.Create(c.Request.Context(), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List backups
// @Tags Backups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /backups [get]
func (h *BackupHandler) List(c *gin.Context) {
	files, err := h.backups.List()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, files, map[string]interface{}{"count": len(files)})
}

// Download godoc
// @Summary Download backup
// @Tags Backups
// @Produce application/octet-stream
// @Param name path string true "Backup file name"
// @Success 200 {file} file
// @Router /backups/{name} [get]
func (h *BackupHandler) Download(c *gin.Context) {
	file, err := h.backups.Open(c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck
	info, err := file.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, map[string]string{
		"Content-Disposition": `attachment; filename="` + info.Name() + `"`,
	})
}

// Delete godoc
// @Summary Delete backup
// @Tags Backups
// @Param name path string true "Backup file name"
// @Success 204
// @Router /backups/{name} [delete]
func (h *BackupHandler) Delete(c *gin.Context) {
	if err := h.backups.Delete(c.Param("name")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
