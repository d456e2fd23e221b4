package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-records/internal/models"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Records  *RecordHandler
	Search   *SearchHandler
	Transfer *TransferHandler
	Backups  *BackupHandler
	Metrics  *MetricsHandler
}

var collectionPaths = map[models.Kind]string{
	models.KindStudent:    "/students",
	models.KindInstructor: "/instructors",
	models.KindCourse:     "/courses",
}

// RegisterRoutes mounts probes at the root and the records API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	api.POST(collectionPaths[models.KindStudent], h.Records.CreateStudent)
	api.POST(collectionPaths[models.KindInstructor], h.Records.CreateInstructor)
	api.POST(collectionPaths[models.KindCourse], h.Records.CreateCourse)
	for _, kind := range models.Kinds {
		path := collectionPaths[kind]
		api.GET(path, h.Records.List(kind))
		api.GET(path+"/:id", h.Records.Get(kind))
		api.PATCH(path+"/:id", h.Records.Update(kind))
		api.DELETE(path+"/:id", h.Records.Delete(kind))
	}

	api.GET("/search", h.Search.Search)

	api.GET("/export/snapshot", h.Transfer.ExportSnapshot)
	api.POST("/import/snapshot", h.Transfer.ImportSnapshot)
	api.GET("/export/table", h.Transfer.ExportTable)
	api.POST("/import/table", h.Transfer.ImportTable)

	api.POST("/backups", h.Backups.Create)
	api.GET("/backups", h.Backups.List)
	api.GET("/backups/:name", h.Backups.Download)
	api.DELETE("/backups/:name", h.Backups.Delete)

	api.GET("/metrics/summary", h.Metrics.Summary)
}
