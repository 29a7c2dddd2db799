package journals

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/grandlivre/grandlivre/internal/platform/httpx"
)

const dateLayout = "2006-01-02"

type entryService interface {
	CreateDraft(ctx context.Context, input CreateEntryInput) (Entry, error)
	UpdateLines(ctx context.Context, input UpdateLinesInput) (Entry, error)
	Validate(ctx context.Context, input TransitionInput) (Entry, error)
	Unvalidate(ctx context.Context, input TransitionInput) (Entry, error)
	Close(ctx context.Context, input TransitionInput) (Entry, error)
	Delete(ctx context.Context, input TransitionInput) error
	Get(ctx context.Context, entryID int64) (Entry, error)
}

type entryLister interface {
	List(ctx context.Context, filter EntryFilter) ([]Entry, error)
	StatusCounts(ctx context.Context, companyID int64) (map[EntryStatus]int64, error)
}

// Invalidator is notified after any successful ledger write so derived
// read models (statement caches) can drop stale versions.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Handler wires HTTP endpoints for journal entry management.
type Handler struct {
	logger      *slog.Logger
	service     entryService
	lister      entryLister
	invalidator Invalidator
	validator   *validator.Validate
}

// NewHandler constructs a journals HTTP handler. invalidator may be nil.
func NewHandler(logger *slog.Logger, service entryService, lister entryLister, invalidator Invalidator) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		lister:      lister,
		invalidator: invalidator,
		validator:   validator.New(),
	}
}

func (h *Handler) invalidate(ctx context.Context) {
	if h.invalidator != nil {
		h.invalidator.Invalidate(ctx)
	}
}

// MountRoutes registers journal routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.createEntry)
	r.Get("/entries", h.listEntries)
	r.Get("/entries/stats", h.entryStats)
	r.Get("/entries/{id}", h.getEntry)
	r.Put("/entries/{id}/lines", h.updateLines)
	r.Post("/entries/{id}/validate", h.transition(func(ctx context.Context, in TransitionInput) (Entry, error) {
		return h.service.Validate(ctx, in)
	}))
	r.Post("/entries/{id}/unvalidate", h.transition(func(ctx context.Context, in TransitionInput) (Entry, error) {
		return h.service.Unvalidate(ctx, in)
	}))
	r.Post("/entries/{id}/close", h.transition(func(ctx context.Context, in TransitionInput) (Entry, error) {
		return h.service.Close(ctx, in)
	}))
	r.Delete("/entries/{id}", h.deleteEntry)
}

type lineRequest struct {
	Position    string          `json:"position" validate:"required,oneof=DEBIT CREDIT"`
	AccountID   int64           `json:"accountId" validate:"omitempty,gt=0"`
	AccountCode string          `json:"accountCode"`
	Label       string          `json:"label"`
	Amount      decimal.Decimal `json:"amount"`
}

type createEntryRequest struct {
	EntryDate string        `json:"entryDate" validate:"required,datetime=2006-01-02"`
	PieceDate string        `json:"pieceDate" validate:"omitempty,datetime=2006-01-02"`
	Label     string        `json:"label" validate:"required,max=255"`
	Reference string        `json:"reference" validate:"max=100"`
	Currency  string        `json:"currency" validate:"required,len=3"`
	PeriodID  int64         `json:"periodId" validate:"required,gt=0"`
	CompanyID int64         `json:"companyId" validate:"required,gt=0"`
	Lines     []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type updateLinesRequest struct {
	Lines []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type lineResponse struct {
	ID          int64  `json:"id"`
	Position    string `json:"position"`
	AccountID   int64  `json:"accountId"`
	AccountCode string `json:"accountCode"`
	AccountLabel string `json:"accountLabel,omitempty"`
	Label       string `json:"label,omitempty"`
	Amount      string `json:"amount"`
}

type entryResponse struct {
	ID          int64          `json:"id"`
	PieceNumber string         `json:"pieceNumber"`
	EntryDate   string         `json:"entryDate"`
	PieceDate   string         `json:"pieceDate"`
	Label       string         `json:"label"`
	Reference   string         `json:"reference,omitempty"`
	Currency    string         `json:"currency"`
	Source      string         `json:"source"`
	Status      string         `json:"status"`
	PeriodID    int64          `json:"periodId"`
	CompanyID   int64          `json:"companyId"`
	TotalDebit  string         `json:"totalDebit"`
	TotalCredit string         `json:"totalCredit"`
	ValidatedBy *int64         `json:"validatedBy,omitempty"`
	ValidatedAt *time.Time     `json:"validatedAt,omitempty"`
	Lines       []lineResponse `json:"lines,omitempty"`
}

func toEntryResponse(e Entry) entryResponse {
	resp := entryResponse{
		ID:          e.ID,
		PieceNumber: e.PieceNumber,
		EntryDate:   e.EntryDate.Format(dateLayout),
		PieceDate:   e.PieceDate.Format(dateLayout),
		Label:       e.Label,
		Reference:   e.Reference,
		Currency:    e.Currency,
		Source:      string(e.Source),
		Status:      string(e.Status),
		PeriodID:    e.PeriodID,
		CompanyID:   e.CompanyID,
		TotalDebit:  e.TotalDebit.String(),
		TotalCredit: e.TotalCredit.String(),
		ValidatedBy: e.ValidatedBy,
		ValidatedAt: e.ValidatedAt,
	}
	for _, l := range e.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ID:           l.ID,
			Position:     string(l.Position),
			AccountID:    l.AccountID,
			AccountCode:  l.AccountCode,
			AccountLabel: l.AccountLabel,
			Label:        l.Label,
			Amount:       l.Amount.String(),
		})
	}
	return resp
}

func toLineInputs(reqs []lineRequest) []LineInput {
	lines := make([]LineInput, 0, len(reqs))
	for _, l := range reqs {
		lines = append(lines, LineInput{
			Position:    LinePosition(l.Position),
			AccountID:   l.AccountID,
			AccountCode: l.AccountCode,
			Label:       l.Label,
			Amount:      l.Amount,
		})
	}
	return lines
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entryDate, _ := time.Parse(dateLayout, req.EntryDate)
	pieceDate := entryDate
	if req.PieceDate != "" {
		pieceDate, _ = time.Parse(dateLayout, req.PieceDate)
	}
	entry, err := h.service.CreateDraft(r.Context(), CreateEntryInput{
		EntryDate: entryDate,
		PieceDate: pieceDate,
		Label:     req.Label,
		Reference: req.Reference,
		Currency:  req.Currency,
		Source:    SourceManual,
		PeriodID:  req.PeriodID,
		CompanyID: req.CompanyID,
		CreatedBy: actorID(r),
		Lines:     toLineInputs(req.Lines),
	})
	if err != nil {
		h.logger.Warn("create entry rejected", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) updateLines(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateLinesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.UpdateLines(r.Context(), UpdateLinesInput{
		EntryID: id,
		ActorID: actorID(r),
		Lines:   toLineInputs(req.Lines),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) transition(fn func(context.Context, TransitionInput) (Entry, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		entry, err := fn(r.Context(), TransitionInput{EntryID: id, ActorID: actorID(r)})
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		// Only status transitions move amounts in or out of the posted
		// set; draft edits never touch derived reports.
		h.invalidate(r.Context())
		httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
	}
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), TransitionInput{EntryID: id, ActorID: actorID(r)}); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	companyID, err := strconv.ParseInt(r.URL.Query().Get("companyId"), 10, 64)
	if err != nil || companyID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "companyId query parameter is required")
		return
	}
	filter := EntryFilter{
		CompanyID: companyID,
		Status:    EntryStatus(r.URL.Query().Get("status")),
		Source:    EntrySource(r.URL.Query().Get("source")),
		Text:      r.URL.Query().Get("q"),
	}
	if v := r.URL.Query().Get("periodId"); v != "" {
		filter.PeriodID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err := time.Parse(dateLayout, v); err == nil {
			filter.DateFrom = &from
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err := time.Parse(dateLayout, v); err == nil {
			filter.DateTo = &to
		}
	}
	entries, err := h.lister.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list entries", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (h *Handler) entryStats(w http.ResponseWriter, r *http.Request) {
	companyID, err := strconv.ParseInt(r.URL.Query().Get("companyId"), 10, 64)
	if err != nil || companyID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "companyId query parameter is required")
		return
	}
	counts, err := h.lister.StatusCounts(r.Context(), companyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"byStatus": counts})
}

// actorID identifies the acting user from the gateway-injected header.
// Authentication itself happens upstream.
func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}
