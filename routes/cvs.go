package routes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cv-rag-platform/internal/ingest"
	"cv-rag-platform/middleware"
	"cv-rag-platform/models"
	"cv-rag-platform/services"
	"cv-rag-platform/utils"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Result, error)
}

type CVReader interface {
	Get(ctx context.Context, id string) (*models.CV, error)
	List(ctx context.Context, page, limit int) ([]models.CV, int64, error)
}

type InventoryExporter interface {
	ExportInventory(ctx context.Context) (*bytes.Buffer, int, error)
}

type CVHandler struct {
	ingester    Ingester
	reader      CVReader
	exporter    InventoryExporter
	maxFileSize int64
}

func NewCVHandler(ingester Ingester, reader CVReader, exporter InventoryExporter, maxFileSize int64) *CVHandler {
	return &CVHandler{
		ingester:    ingester,
		reader:      reader,
		exporter:    exporter,
		maxFileSize: maxFileSize,
	}
}

// SetupCVRoutes mounts the /cvs group. uploadLimit guards POST only.
func SetupCVRoutes(router *gin.Engine, h *CVHandler, authMiddleware *middleware.AuthMiddleware, uploadLimit gin.HandlerFunc) {
	cvs := router.Group("/cvs")
	cvs.Use(authMiddleware.RequireAuth())
	{
		cvs.POST("", authMiddleware.RequireScope("cvs:write"), uploadLimit, h.Upload)
		cvs.GET("", authMiddleware.RequireScope("cvs:read"), h.List)
		cvs.GET("/export", authMiddleware.RequireScope("cvs:read"), h.Export)
		cvs.GET("/:id", authMiddleware.RequireScope("cvs:read"), h.Get)
		cvs.GET("/:id/status", authMiddleware.RequireScope("cvs:read"), h.Status)
	}
}

func (h *CVHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondTooLarge(c)
			return
		}
		utils.RespondWithBadRequest(c, "No file provided in form field \"file\"", nil)
		return
	}
	if header.Size > h.maxFileSize {
		h.respondTooLarge(c)
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		utils.RespondWithError(c, http.StatusBadRequest, utils.CodeNotPDF, "Only PDF files are allowed", nil)
		return
	}

	file, err := header.Open()
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to read uploaded file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to read uploaded file", nil)
		return
	}
	if int64(len(data)) > h.maxFileSize {
		h.respondTooLarge(c)
		return
	}
	if !services.IsPDF(data) {
		utils.RespondWithError(c, http.StatusBadRequest, utils.CodeNotPDF, "File does not appear to be a valid PDF", nil)
		return
	}

	ctx, cancel := utils.WithIngestTimeout(c.Request.Context())
	defer cancel()

	res, err := h.ingester.Ingest(ctx, ingest.Request{FileName: header.Filename, Data: data})
	if err != nil {
		h.respondIngestError(c, err)
		return
	}

	cv := res.CV
	c.JSON(http.StatusCreated, models.UploadResponse{
		ID:              cv.ID,
		FileName:        cv.FileName,
		DisplayName:     cv.DisplayName,
		ContentHash:     cv.ContentHash,
		FragmentCount:   cv.FragmentCount,
		Redactions:      nonNilCounts(cv.RedactionCounts),
		EmbeddingStatus: cv.EmbeddingStatus,
		TaskID:          res.TaskID,
		Message:         "CV stored successfully",
	})
}

func (h *CVHandler) respondIngestError(c *gin.Context, err error) {
	var validationErr *ingest.ValidationError

	if dup, ok := ingest.IsDuplicate(err); ok {
		utils.RespondWithConflict(c, utils.CodeDuplicateCV, dup.Error(), gin.H{
			"reason":       string(dup.Reason),
			"existing_id":  dup.Existing.ID,
			"display_name": dup.Existing.DisplayName,
		})
		return
	}

	switch {
	case errors.Is(err, ingest.ErrInFlight):
		utils.RespondWithConflict(c, utils.CodeUploadInProgress, err.Error(), nil)
	case errors.As(err, &validationErr):
		utils.RespondWithError(c, http.StatusBadRequest, utils.CodeNotCV, validationErr.Error(), gin.H{
			"justification": validationErr.Justification,
		})
	case errors.Is(err, ingest.ErrEmptyDocument), errors.Is(err, ingest.ErrInvalidName):
		utils.RespondWithBadRequest(c, err.Error(), nil)
	case errors.Is(err, ingest.ErrExtraction):
		utils.RespondWithError(c, http.StatusUnprocessableEntity, utils.CodeExtractionFailed,
			"Could not extract text from the PDF", gin.H{"error": err.Error()})
	default:
		middleware.RequestLogger(c).Error("CV ingest failed", "error", err)
		utils.RespondWithInternalError(c, "Failed to store CV", nil)
	}
}

func (h *CVHandler) respondTooLarge(c *gin.Context) {
	utils.RespondWithError(c, http.StatusRequestEntityTooLarge, utils.CodeFileTooLarge,
		"File size exceeds maximum limit", gin.H{"max_size": h.maxFileSize})
}

func (h *CVHandler) List(c *gin.Context) {
	page, err := positiveQueryInt(c, "page", 1)
	if err != nil {
		utils.RespondWithBadRequest(c, err.Error(), nil)
		return
	}
	limit, err := positiveQueryInt(c, "limit", defaultPageLimit)
	if err != nil {
		utils.RespondWithBadRequest(c, err.Error(), nil)
		return
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	cvs, total, err := h.reader.List(ctx, page, limit)
	if err != nil {
		middleware.RequestLogger(c).Error("Failed to list CVs", "error", err)
		utils.RespondWithInternalError(c, "Failed to list CVs", nil)
		return
	}
	if cvs == nil {
		cvs = []models.CV{}
	}

	c.JSON(http.StatusOK, models.CVListResponse{CVs: cvs, Total: total, Page: page, Limit: limit})
}

func (h *CVHandler) Get(c *gin.Context) {
	cv, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, cv)
}

func (h *CVHandler) Status(c *gin.Context) {
	cv, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, cv.ToStatus())
}

func (h *CVHandler) load(c *gin.Context) (*models.CV, bool) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	cv, err := h.reader.Get(ctx, c.Param("id"))
	if errors.Is(err, ingest.ErrNotFound) {
		utils.RespondWithNotFound(c, "CV not found")
		return nil, false
	}
	if err != nil {
		middleware.RequestLogger(c).Error("Failed to load CV", "cv_id", c.Param("id"), "error", err)
		utils.RespondWithInternalError(c, "Failed to load CV", nil)
		return nil, false
	}
	return cv, true
}

func (h *CVHandler) Export(c *gin.Context) {
	ctx, cancel := utils.WithExportTimeout(c.Request.Context())
	defer cancel()

	buf, count, err := h.exporter.ExportInventory(ctx)
	if err != nil {
		middleware.RequestLogger(c).Error("Failed to export CV inventory", "error", err)
		utils.RespondWithInternalError(c, "Failed to export CVs", nil)
		return
	}

	filename := fmt.Sprintf("cvs-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("X-Total-Count", strconv.Itoa(count))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func positiveQueryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return n, nil
}

func nonNilCounts(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
