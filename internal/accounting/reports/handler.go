package reports

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/grandlivre/grandlivre/internal/platform/httpx"
)

// Handler exposes the trial balance over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	formatter *Formatter
}

// NewHandler constructs a reports HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, formatter *Formatter) *Handler {
	return &Handler{logger: logger, service: service, formatter: formatter}
}

// MountRoutes registers report routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.trialBalance)
}

type rowDTO struct {
	Code   string `json:"code"`
	Label  string `json:"label"`
	Debit  string `json:"debit"`
	Credit string `json:"credit"`
	Net    string `json:"net"`
}

type groupDTO struct {
	Class  string   `json:"class"`
	Rows   []rowDTO `json:"rows"`
	Debit  string   `json:"debit"`
	Credit string   `json:"credit"`
	Net    string   `json:"net"`
}

type trialBalanceDTO struct {
	Groups             []groupDTO `json:"groups"`
	TotalDebit         string     `json:"totalDebit"`
	TotalCredit        string     `json:"totalCredit"`
	TotalDebitDisplay  string     `json:"totalDebitDisplay"`
	TotalCreditDisplay string     `json:"totalCreditDisplay"`
	Balanced           bool       `json:"balanced"`
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	companyID, err := strconv.ParseInt(r.URL.Query().Get("companyId"), 10, 64)
	if err != nil || companyID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "companyId query parameter is required")
		return
	}
	periodID, err := strconv.ParseInt(r.URL.Query().Get("periodId"), 10, 64)
	if err != nil || periodID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "periodId query parameter is required")
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), companyID, periodID, r.URL.Query().Get("accountPrefix"))
	if err != nil {
		h.logger.Error("trial balance", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	view := NewTrialBalanceView(tb, h.formatter)
	out := trialBalanceDTO{
		TotalDebit:         tb.TotalDebit.String(),
		TotalCredit:        tb.TotalCredit.String(),
		TotalDebitDisplay:  view.TotalDebitDisplay,
		TotalCreditDisplay: view.TotalCreditDisplay,
		Balanced:           tb.Balanced(),
	}
	for _, grp := range tb.Groups {
		g := groupDTO{
			Class:  grp.Class,
			Debit:  grp.Debit.String(),
			Credit: grp.Credit.String(),
			Net:    grp.Net.String(),
		}
		for _, row := range grp.Rows {
			g.Rows = append(g.Rows, rowDTO{
				Code:   row.Code,
				Label:  row.Label,
				Debit:  row.Debit.String(),
				Credit: row.Credit.String(),
				Net:    row.Net.String(),
			})
		}
		out.Groups = append(out.Groups, g)
	}
	httpx.JSON(w, http.StatusOK, out)
}
