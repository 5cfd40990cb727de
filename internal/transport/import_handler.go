package transport

import (
	"io"
	"net/http"
	"time"

	"shopmart/internal/domain"
	"shopmart/internal/middleware"
	"shopmart/internal/repository"
	"shopmart/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Uploaded files above this size are rejected before parsing
const maxImportFileSize = 10 << 20

// ImportJobResponse represents an import job with its run log
type ImportJobResponse struct {
	ID          string `json:"id"`
	FileName    string `json:"file_name"`
	Status      string `json:"status"`
	Errors      int    `json:"errors"`
	Warnings    int    `json:"warnings"`
	Log         string `json:"log,omitempty"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// ImportResultResponse represents the outcome of one upload
type ImportResultResponse struct {
	Job     ImportJobResponse `json:"job"`
	Decoded bool              `json:"decoded"`
}

// ImportHandler handles HTTP requests for product imports and sales reports
type ImportHandler struct {
	importService service.ImportService
	reportService service.ReportService
	jobRepo       repository.ImportJobRepository
	logger        *zap.Logger
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(
	importService service.ImportService,
	reportService service.ReportService,
	jobRepo repository.ImportJobRepository,
	logger *zap.Logger,
) *ImportHandler {
	return &ImportHandler{
		importService: importService,
		reportService: reportService,
		jobRepo:       jobRepo,
		logger:        logger,
	}
}

// RegisterRoutes registers admin-only import and report routes
func (h *ImportHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(adminMiddleware)

		r.Post("/import", h.RunImport)
		r.Get("/import", h.ListJobs)
		r.Get("/import/{id}", h.GetJob)
		r.Get("/reports", h.SalesReport)
	})
}

// RunImport handles a CSV upload and runs the import in the request
func (h *ImportHandler) RunImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportFileSize); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImportFileSize))
	if err != nil {
		h.logger.Error("Failed to read import upload", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	job := &domain.ImportJob{
		ID:        uuid.New(),
		FileName:  header.Filename,
		Status:    domain.ImportStatusInProgress,
		CreatedAt: time.Now(),
	}
	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		h.logger.Error("Failed to create import job", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create import job")
		return
	}

	decoded, _, err := h.importService.Run(r.Context(), job, data)
	if err != nil {
		h.logger.Error("Import run failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "import failed")
		return
	}

	// Re-read the job so the response carries the persisted log
	completed, err := h.jobRepo.FindByID(r.Context(), job.ID)
	if err != nil {
		h.logger.Error("Failed to load completed job", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load import job")
		return
	}

	status := http.StatusOK
	if !decoded {
		status = http.StatusUnprocessableEntity
	}
	middleware.RespondWithJSON(w, status, ImportResultResponse{
		Job:     toJobResponse(completed),
		Decoded: decoded,
	})
}

// ListJobs handles listing all import jobs, newest first
func (h *ImportHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobRepo.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list import jobs", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list import jobs")
		return
	}

	responses := make([]ImportJobResponse, 0, len(jobs))
	for _, job := range jobs {
		resp := toJobResponse(job)
		resp.Log = "" // logs can be large, fetch per job
		responses = append(responses, resp)
	}

	middleware.RespondWithJSON(w, http.StatusOK, responses)
}

// GetJob handles fetching one import job with its full log
func (h *ImportHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.jobRepo.FindByID(r.Context(), id)
	if err != nil {
		if err == repository.ErrImportJobNotFound {
			middleware.RespondWithError(w, http.StatusNotFound, "import job not found")
			return
		}
		h.logger.Error("Failed to get import job", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get import job")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toJobResponse(job))
}

// SalesReport handles the day-by-day sales report
func (h *ImportHandler) SalesReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reportService.SalesReport(r.Context())
	if err != nil {
		h.logger.Error("Failed to build sales report", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to build report")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, report)
}

func toJobResponse(job *domain.ImportJob) ImportJobResponse {
	resp := ImportJobResponse{
		ID:        job.ID.String(),
		FileName:  job.FileName,
		Status:    job.Status,
		Errors:    job.Errors,
		Warnings:  job.Warnings,
		Log:       job.Log,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return resp
}
