package chart

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grandlivre/grandlivre/internal/platform/httpx"
)

// Handler exposes the chart of accounts over HTTP.
type Handler struct {
	logger *slog.Logger
	repo   Repository
}

// NewHandler constructs a chart HTTP handler.
func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers chart routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.listAccounts)
	r.Get("/accounts/resolve", h.resolvePattern)
}

type accountResponse struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	ParentID *int64 `json:"parentId,omitempty"`
	IsActive bool   `json:"isActive"`
}

func toAccountResponse(a Account) accountResponse {
	return accountResponse{
		ID:       a.ID,
		Code:     a.Code,
		Label:    a.Label,
		Type:     string(a.Type),
		ParentID: a.ParentID,
		IsActive: a.IsActive,
	}
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("list accounts", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": out})
}

// resolvePattern answers which concrete account a wildcard pattern picks,
// the same resolution templates use, so operators can preview it.
func (h *Handler) resolvePattern(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "pattern query parameter is required")
		return
	}
	dir, err := h.repo.Directory(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := dir.Resolve(pattern)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}
