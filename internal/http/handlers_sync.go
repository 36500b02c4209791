package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/target/mmk-bol-sync/internal/domain/model"
	apperrors "github.com/target/mmk-bol-sync/internal/errors"
	"github.com/target/mmk-bol-sync/internal/service"
)

// SyncTrigger starts locked sync runs, tenant syncs and sweeps.
// *service.Coordinator satisfies it.
type SyncTrigger interface {
	RunAll(ctx context.Context, opts service.RunOptions) (*model.RunReport, error)
	RunTenant(ctx context.Context, tenantID string) (*model.RunReport, error)
	Sweep(ctx context.Context) (*model.RunReport, error)
}

// SyncHandlers serves the authenticated sync trigger routes.
type SyncHandlers struct {
	Trigger SyncTrigger
	// RunTimeout bounds a triggered run. Runs are detached from the request
	// so a disconnecting client does not abort them.
	RunTimeout time.Duration
	Logger     *slog.Logger
}

// Run handles POST /api/sync/run. The optional force query parameter ignores
// per-tenant intervals.
func (h *SyncHandlers) Run(w http.ResponseWriter, r *http.Request) {
	force := false
	if raw := strings.TrimSpace(r.URL.Query().Get("force")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_force", Err: err})
			return
		}
		force = v
	}

	h.serve(w, r, "sync run", func(ctx context.Context) (*model.RunReport, error) {
		return h.Trigger.RunAll(ctx, service.RunOptions{Force: force})
	})
}

// Sweep handles POST /api/sync/sweep.
func (h *SyncHandlers) Sweep(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "export sweep", h.Trigger.Sweep)
}

// Tenant handles POST /api/sync/tenants/{id}.
func (h *SyncHandlers) Tenant(w http.ResponseWriter, r *http.Request) {
	tenantID := strings.TrimSpace(r.PathValue("id"))
	if tenantID == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_tenant",
			Err:     errors.New("tenant id is required"),
		})
		return
	}
	h.serve(w, r, "tenant sync", func(ctx context.Context) (*model.RunReport, error) {
		return h.Trigger.RunTenant(ctx, tenantID)
	})
}

func (h *SyncHandlers) serve(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	fn func(context.Context) (*model.RunReport, error),
) {
	ctx := context.WithoutCancel(r.Context())
	if h.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.RunTimeout)
		defer cancel()
	}

	report, err := fn(ctx)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, report)
	case errors.Is(err, service.ErrRunInProgress):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "run_in_progress", Err: err})
	case apperrors.IsNotFound(err):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: err})
	default:
		h.logger().ErrorContext(r.Context(), op+" failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "run_failed",
			Err:     err,
			Report:  report,
		})
	}
}

func (h *SyncHandlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}
