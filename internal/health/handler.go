package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"student-records/internal/httputil"

	"github.com/go-chi/chi/v5"
)

// Pinger is satisfied by *bun.DB and *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	db      Pinger
	timeout time.Duration
	logger  *slog.Logger
}

func NewHandler(db Pinger, timeout time.Duration, logger *slog.Logger) *Handler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Handler{db: db, timeout: timeout, logger: logger}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.Health)
	router.Get("/ready", h.Ready)
}

type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondWithJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready reports 503 while the store does not answer a ping.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		if err := h.db.PingContext(ctx); err != nil {
			h.logger.WarnContext(r.Context(), "readiness check failed", "error", err)
			httputil.RespondWithJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status: "unavailable",
				Error:  "database unreachable",
			})
			return
		}
	}
	httputil.RespondWithJSON(w, http.StatusOK, HealthResponse{Status: "ready"})
}
