package student

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"student-records/internal/httputil"

	"github.com/go-chi/chi/v5"
)

const (
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	downloadFilename = "student_data.xlsx"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes expects to be mounted under /api/students.
func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/", h.ListStudents)
	router.Post("/", h.CreateStudent)
	router.Get("/export/to-excel", h.ExportStudents)
	router.Get("/exportToExcel", h.ExportStudents)
	router.Get("/export/download", h.DownloadExport)
	router.Get("/{roll_number}", h.GetStudent)
	router.Put("/{roll_number}", h.UpdateStudent)
	router.Delete("/{roll_number}", h.DeleteStudent)
}

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.service.ListStudents(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, students)
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	rollNumber, ok := h.rollNumberParam(w, r)
	if !ok {
		return
	}

	student, err := h.service.GetStudent(r.Context(), rollNumber)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, student)
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var in StudentInput
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		h.logger.InfoContext(r.Context(), "rejected create request", "reason", err.Error())
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	rollNumber, err := h.service.CreateStudent(r.Context(), in)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, map[string]any{
		"message":     "Student created",
		"roll_number": rollNumber,
	})
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	rollNumber, ok := h.rollNumberParam(w, r)
	if !ok {
		return
	}

	var in StudentInput
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		h.logger.InfoContext(r.Context(), "rejected update request", "roll_number", rollNumber, "reason", err.Error())
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.UpdateStudent(r.Context(), rollNumber, in); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Student updated"})
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	rollNumber, ok := h.rollNumberParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteStudent(r.Context(), rollNumber); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Student deleted"})
}

func (h *Handler) ExportStudents(w http.ResponseWriter, r *http.Request) {
	filePath, err := h.service.ExportStudents(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message":   "Student data exported successfully",
		"file_path": filePath,
	})
}

// DownloadExport buffers the workbook so a failure still yields a JSON 500.
func (h *Handler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.WriteExport(r.Context(), &buf); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadFilename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "failed to stream export", "error", err)
	}
}

func (h *Handler) rollNumberParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "roll_number")
	rollNumber, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.logger.InfoContext(r.Context(), "rejected non-integer roll number", "roll_number", raw)
		httputil.RespondWithError(w, http.StatusBadRequest, "roll_number must be an integer")
		return 0, false
	}
	return rollNumber, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var storeErr *StoreError
	var exportErr *ExportError

	switch {
	case errors.Is(err, ErrInvalidInput):
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrStudentNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Student not found")
		return
	case errors.Is(err, ErrStoreUnavailable):
		h.logger.ErrorContext(ctx, "store unavailable", "kind", "store_unavailable", "error", err)
	case errors.As(err, &storeErr):
		h.logger.ErrorContext(ctx, "store error", "kind", "store", "op", storeErr.Op, "error", err)
	case errors.As(err, &exportErr):
		h.logger.ErrorContext(ctx, "export error", "kind", "export", "path", exportErr.Path, "error", err)
	default:
		h.logger.ErrorContext(ctx, "internal error", "kind", "internal", "error", err)
	}
	httputil.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
}
