package statements

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/grandlivre/grandlivre/internal/platform/httpx"
)

// Handler exposes financial statement generation over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a statements HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers statement routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/statements/bundle", h.bundle)
	r.Get("/statements/{type}", h.statement)
}

func statementType(raw string) (Type, bool) {
	switch strings.ToLower(raw) {
	case "balance-sheet", "bilan":
		return TypeBalanceSheet, true
	case "income-statement", "compte-de-resultat":
		return TypeIncomeStatement, true
	case "cash-flow", "tableau-des-flux":
		return TypeCashFlow, true
	}
	return "", false
}

type lineDTO struct {
	Code    string  `json:"code"`
	Label   string  `json:"label"`
	Section string  `json:"section"`
	Level   int     `json:"level"`
	Total   bool    `json:"total"`
	Amount  string  `json:"amount"`
	Prior   *string `json:"prior,omitempty"`
}

type statementDTO struct {
	Type        string            `json:"type"`
	Standard    string            `json:"standard"`
	Country     string            `json:"country,omitempty"`
	PeriodID    int64             `json:"periodId"`
	CompanyID   int64             `json:"companyId"`
	GeneratedAt string            `json:"generatedAt"`
	Balanced    bool              `json:"balanced"`
	Lines       []lineDTO         `json:"lines"`
	Sections    map[string]string `json:"sections"`
}

func toStatementDTO(s Statement) statementDTO {
	out := statementDTO{
		Type:        string(s.Type),
		Standard:    s.Standard,
		Country:     s.Country,
		PeriodID:    s.PeriodID,
		CompanyID:   s.CompanyID,
		GeneratedAt: s.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
		Balanced:    s.Balanced,
		Sections:    make(map[string]string, len(s.Sections)),
	}
	for _, ln := range s.Lines {
		dto := lineDTO{
			Code:    ln.Code,
			Label:   ln.Label,
			Section: string(ln.Section),
			Level:   ln.Level,
			Total:   ln.Total,
			Amount:  ln.Amount.String(),
		}
		if ln.Prior != nil {
			prior := ln.Prior.String()
			dto.Prior = &prior
		}
		out.Lines = append(out.Lines, dto)
	}
	for _, sec := range s.Sections {
		out.Sections[string(sec.Section)] = sec.Amount.String()
	}
	return out
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	t, ok := statementType(chi.URLParam(r, "type"))
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown statement type")
		return
	}
	companyID, periodID, ok := scopeParams(w, r)
	if !ok {
		return
	}
	var (
		stmt Statement
		err  error
	)
	if v := r.URL.Query().Get("priorPeriodId"); v != "" {
		priorID, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil || priorID <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid priorPeriodId")
			return
		}
		stmt, err = h.service.GenerateWithPrior(r.Context(), t, companyID, periodID, priorID)
	} else {
		stmt, err = h.service.Generate(r.Context(), t, companyID, periodID)
	}
	if err != nil {
		h.logger.Warn("statement generation failed",
			slog.String("type", string(t)),
			slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStatementDTO(stmt))
}

func (h *Handler) bundle(w http.ResponseWriter, r *http.Request) {
	companyID, periodID, ok := scopeParams(w, r)
	if !ok {
		return
	}
	bundle, err := h.service.GenerateBundle(r.Context(), companyID, periodID)
	if err != nil {
		h.logger.Warn("statement bundle failed", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"balanceSheet":    toStatementDTO(bundle.BalanceSheet),
		"incomeStatement": toStatementDTO(bundle.IncomeStatement),
		"cashFlow":        toStatementDTO(bundle.CashFlow),
	})
}

func scopeParams(w http.ResponseWriter, r *http.Request) (companyID, periodID int64, ok bool) {
	companyID, err := strconv.ParseInt(r.URL.Query().Get("companyId"), 10, 64)
	if err != nil || companyID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "companyId query parameter is required")
		return 0, 0, false
	}
	periodID, err = strconv.ParseInt(r.URL.Query().Get("periodId"), 10, 64)
	if err != nil || periodID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "periodId query parameter is required")
		return 0, 0, false
	}
	return companyID, periodID, true
}
