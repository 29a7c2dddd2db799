package templates

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/grandlivre/grandlivre/internal/accounting/chart"
	"github.com/grandlivre/grandlivre/internal/accounting/journals"
	"github.com/grandlivre/grandlivre/internal/platform/httpx"
)

const dateLayout = "2006-01-02"

type draftCreator interface {
	CreateDraft(ctx context.Context, input journals.CreateEntryInput) (journals.Entry, error)
}

type directorySource interface {
	Directory(ctx context.Context) (*chart.Directory, error)
}

// Handler exposes the template catalogue and instantiation over HTTP.
type Handler struct {
	logger    *slog.Logger
	engine    *Engine
	accounts  directorySource
	drafts    draftCreator
	validator *validator.Validate
}

// NewHandler constructs a templates HTTP handler.
func NewHandler(logger *slog.Logger, engine *Engine, accounts directorySource, drafts draftCreator) *Handler {
	return &Handler{
		logger:    logger,
		engine:    engine,
		accounts:  accounts,
		drafts:    drafts,
		validator: validator.New(),
	}
}

// MountRoutes registers template routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/templates", h.listTemplates)
	r.Get("/templates/recommend", h.recommend)
	r.Get("/templates/{code}", h.getTemplate)
	r.Post("/templates/{code}/instantiate", h.instantiate)
}

type templateResponse struct {
	Code            string            `json:"code"`
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	Standard        string            `json:"standard"`
	Country         string            `json:"country,omitempty"`
	Category        string            `json:"category,omitempty"`
	DefaultVATRate  string            `json:"defaultVatRate"`
	DefaultCurrency string            `json:"defaultCurrency"`
	Variables       map[string]string `json:"variables"`
	Lines           []templateLineDTO `json:"lines"`
	Keywords        []string          `json:"keywords,omitempty"`
}

type templateLineDTO struct {
	Position       string `json:"position"`
	AccountPattern string `json:"accountPattern"`
	Label          string `json:"label,omitempty"`
	Formula        string `json:"formula"`
}

func toTemplateResponse(t *Template) templateResponse {
	vars := make(map[string]string, len(t.Variables))
	for name, typ := range t.Variables {
		vars[name] = string(typ)
	}
	resp := templateResponse{
		Code:            t.Code,
		Name:            t.Name,
		Description:     t.Description,
		Standard:        t.Standard,
		Country:         t.Country,
		Category:        t.Category,
		DefaultVATRate:  t.DefaultVATRate.String(),
		DefaultCurrency: t.DefaultCurrency,
		Variables:       vars,
		Keywords:        t.Keywords,
	}
	for _, l := range t.Lines {
		resp.Lines = append(resp.Lines, templateLineDTO{
			Position:       string(l.Position),
			AccountPattern: l.AccountPattern,
			Label:          l.Label,
			Formula:        l.Formula,
		})
	}
	return resp
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	all := h.engine.Set().All()
	out := make([]templateResponse, 0, len(all))
	for _, t := range all {
		out = append(out, toTemplateResponse(t))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"templates": out})
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.engine.Set().Find(chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTemplateResponse(t))
}

func (h *Handler) recommend(w http.ResponseWriter, r *http.Request) {
	operation := r.URL.Query().Get("operation")
	if operation == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "operation query parameter is required")
		return
	}
	hits := h.engine.Set().Recommend(r.URL.Query().Get("standard"), operation)
	out := make([]templateResponse, 0, len(hits))
	for _, t := range hits {
		out = append(out, toTemplateResponse(t))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"templates": out})
}

type instantiateRequest struct {
	EntryDate string         `json:"entryDate" validate:"required,datetime=2006-01-02"`
	PieceDate string         `json:"pieceDate" validate:"omitempty,datetime=2006-01-02"`
	Reference string         `json:"reference" validate:"max=100"`
	PeriodID  int64          `json:"periodId" validate:"required,gt=0"`
	CompanyID int64          `json:"companyId" validate:"required,gt=0"`
	Values    map[string]any `json:"values" validate:"required"`
}

// instantiate expands a template into a draft entry and saves it in one
// round trip. The engine enforces schema and balance before any write.
func (h *Handler) instantiate(w http.ResponseWriter, r *http.Request) {
	var req instantiateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	dir, err := h.accounts.Directory(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entryDate, _ := time.Parse(dateLayout, req.EntryDate)
	pieceDate := entryDate
	if req.PieceDate != "" {
		pieceDate, _ = time.Parse(dateLayout, req.PieceDate)
	}
	code := chi.URLParam(r, "code")
	actor := actorID(r)
	input, err := h.engine.Instantiate(code, dir, req.Values, InstantiateParams{
		EntryDate: entryDate,
		PieceDate: pieceDate,
		Reference: req.Reference,
		PeriodID:  req.PeriodID,
		CompanyID: req.CompanyID,
		ActorID:   actor,
	})
	if err != nil {
		h.logger.Warn("template instantiation rejected",
			slog.String("template", code),
			slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.drafts.CreateDraft(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":          entry.ID,
		"pieceNumber": entry.PieceNumber,
		"status":      string(entry.Status),
		"totalDebit":  entry.TotalDebit.String(),
		"totalCredit": entry.TotalCredit.String(),
	})
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
