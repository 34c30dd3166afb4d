package rest

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/screenlab/reports/internal/application/services"
	"github.com/screenlab/reports/pkg/constants"
)

// ReportHandler exposes the report engine over HTTP
type ReportHandler struct {
	reports *services.ReportService
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// RegisterRoutes attaches the report endpoints to the router group
func (h *ReportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/reports/:resource", h.List)
	rg.GET("/reports/:resource/:id", h.Detail)
	rg.POST("/reports/cache/clear", h.ClearCache)
}

// List streams a windowed, filtered report for a resource
func (h *ReportHandler) List(c *gin.Context) {
	h.serve(c, "")
}

// Detail streams a single row selected by the resource key field
func (h *ReportHandler) Detail(c *gin.Context) {
	h.serve(c, c.Param("id"))
}

// ClearCache drops every cached result window. External writers call
// this after mutating the backing tables.
func (h *ReportHandler) ClearCache(c *gin.Context) {
	h.reports.ClearCache()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (h *ReportHandler) serve(c *gin.Context, id string) {
	req := &services.ReportRequest{
		Resource: c.Param("resource"),
		ID:       id,
		Params:   c.Request.URL.Query(),
		Accept:   c.GetHeader("Accept"),
	}

	resp, err := h.reports.Query(c.Request.Context(), req)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	defer resp.Close()

	// lets the client-side download tracker see completion
	if downloadID := c.Query(constants.ParamDownloadID); downloadID != "" {
		c.SetCookie(constants.ParamDownloadID, downloadID, 0, "/", "", false, false)
	}

	c.Header("Content-Type", resp.ContentType)
	if resp.Filename != "" {
		SetDisposition(c, resp.Filename)
	}
	c.Status(http.StatusOK)

	if err := resp.Write(c.Writer); err != nil {
		// headers are gone; log and abort the stream
		log.Printf("ERROR: streaming %s aborted: %v", req.Resource, err)
		c.Abort()
	}
}
