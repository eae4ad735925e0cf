package jobs

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"analyzer-backend/internal/shared/server/respond"
	"analyzer-backend/internal/shared/telemetry"
	"analyzer-backend/internal/validate"
)

// Handler wires HTTP handlers to the jobs service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analyzer routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/upload", h.upload)
	rg.POST("/analyze", h.analyze)
	rg.GET("/progress/:jobId", h.progress)
	rg.GET("/result/:jobId", h.result)
	rg.GET("/result/:jobId/download", h.download)
	rg.GET("/jobs", h.list)
	rg.POST("/jobs/:jobId/cancel", h.cancel)
}

// upload runs the validation gate without creating a job. It mirrors the
// pre-check clients perform before submitting for analysis.
func (h *Handler) upload(c *gin.Context) {
	up, ok := h.readUpload(c, false)
	if !ok {
		return
	}

	respond.OK(c, gin.H{
		"success":   true,
		"filename":  up.Name,
		"size":      up.SizeBytes,
		"mediaType": up.MediaType,
	})
}

// analyze accepts a document and returns a job handle immediately; progress
// is observed via polling, never by blocking this request.
func (h *Handler) analyze(c *gin.Context) {
	up, ok := h.readUpload(c, true)
	if !ok {
		return
	}

	job, err := h.Svc.Submit(c.Request.Context(), up)
	if err != nil {
		writeValidationError(c, err)
		return
	}

	c.Set("jobId", job.ID)
	respond.JSON(c, http.StatusAccepted, gin.H{
		"success": true,
		"jobId":   job.ID,
		"status":  job.Stage.Status(),
	})
}

// progress is a read-only view of the job's authoritative state. Safe to
// call at any rate.
func (h *Handler) progress(c *gin.Context) {
	jobID := c.Param("jobId")
	job, err := h.Svc.Get(jobID)
	if err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		return
	}

	c.Set("jobId", job.ID)
	c.Set("jobStage", string(job.Stage))
	respond.OK(c, gin.H{
		"stage":           job.Stage,
		"progressPercent": job.ProgressPercent,
		"status":          job.Stage.Status(),
	})
}

func (h *Handler) result(c *gin.Context) {
	jobID := c.Param("jobId")
	job, err := h.Svc.Get(jobID)
	if err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		return
	}

	c.Set("jobId", job.ID)
	switch job.Stage {
	case StageCompleted:
		respond.OK(c, gin.H{
			"success": true,
			"result":  job.Report,
		})
	case StageFailed:
		respond.Error(c, http.StatusUnprocessableEntity, "analysis_failed", job.Err.Message, gin.H{
			"stage": job.Err.Stage,
			"code":  job.Err.Code,
		})
	default:
		respond.Error(c, http.StatusConflict, "not_ready", "analysis still in progress", gin.H{
			"stage":           job.Stage,
			"progressPercent": job.ProgressPercent,
		})
	}
}

// download streams the archived report from the object store as a file
// attachment.
func (h *Handler) download(c *gin.Context) {
	jobID := c.Param("jobId")
	rc, err := h.Svc.OpenReport(c.Request.Context(), jobID)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotReady):
		respond.Error(c, http.StatusConflict, "not_ready", "analysis still in progress", nil)
		return
	default:
		respond.Error(c, http.StatusNotFound, "not_found", "report not found", nil)
		return
	}
	defer rc.Close()

	c.Set("jobId", jobID)
	c.Header("Content-Type", "text/markdown; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="analysis-`+jobID+`.md"`)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		telemetry.Error("job.report_stream_failed", map[string]any{
			"job_id": jobID,
			"err":    err.Error(),
		})
	}
}

func (h *Handler) list(c *gin.Context) {
	jobList := h.Svc.List()
	resp := make([]gin.H, 0, len(jobList))
	for _, job := range jobList {
		resp = append(resp, gin.H{
			"jobId":           job.ID,
			"filename":        job.FileName,
			"stage":           job.Stage,
			"progressPercent": job.ProgressPercent,
			"status":          job.Stage.Status(),
			"createdAt":       job.CreatedAt,
		})
	}
	respond.OK(c, gin.H{"jobs": resp})
}

func (h *Handler) cancel(c *gin.Context) {
	jobID := c.Param("jobId")
	err := h.Svc.Cancel(jobID)
	switch {
	case err == nil:
		c.Set("jobId", jobID)
		respond.JSON(c, http.StatusAccepted, gin.H{
			"success": true,
			"status":  "cancelling",
		})
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
	case errors.Is(err, ErrTerminal):
		respond.Error(c, http.StatusConflict, "already_terminal", "job already finished", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to cancel job", nil)
	}
}

// readUpload pulls the multipart file out of the request and runs the
// validation policy. When wantBody is set the file content is read too.
func (h *Handler) readUpload(c *gin.Context, wantBody bool) (Upload, bool) {
	maxBytes := h.Svc.Policy.MaxBytes
	if maxBytes <= 0 {
		maxBytes = validate.DefaultMaxUploadBytes
	}
	// Leave headroom for multipart framing; the policy check is authoritative.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+(1<<20))

	fileHeader, err := c.FormFile("file")
	if err != nil {
		// A body over the cap surfaces as a MaxBytesError from the multipart
		// parse; report the size violation, not a missing file.
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeValidationError(c, validate.ErrTooLarge)
			return Upload{}, false
		}
		writeValidationError(c, validate.ErrNoFile)
		return Upload{}, false
	}

	up := Upload{
		Name:      fileHeader.Filename,
		MediaType: fileHeader.Header.Get("Content-Type"),
		SizeBytes: fileHeader.Size,
	}

	if err := h.Svc.Policy.Check(up.Name, up.MediaType, up.SizeBytes); err != nil {
		writeValidationError(c, err)
		return Upload{}, false
	}

	if wantBody {
		f, err := fileHeader.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return Upload{}, false
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeValidationError(c, validate.ErrTooLarge)
				return Upload{}, false
			}
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return Upload{}, false
		}
		up.Data = data
	}

	return up, true
}

func writeValidationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, validate.ErrTooLarge):
		respond.Error(c, http.StatusBadRequest, "validation_error", "File too large. Maximum size is 50MB.", nil)
	case errors.Is(err, validate.ErrUnsupportedType):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid file type. Only PDF and PPT files are allowed.", nil)
	case errors.Is(err, validate.ErrNoFile):
		respond.Error(c, http.StatusBadRequest, "validation_error", "No file uploaded", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to process upload", nil)
	}
}
