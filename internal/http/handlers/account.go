package handlers

import (
	"net/http"
	"strconv"
	"time"

	"vocalizz/internal/domain"
)

type accountView struct {
	ID             string      `json:"id"`
	Email          string      `json:"email,omitempty"`
	Tier           domain.Tier `json:"tier"`
	CreditBalance  int         `json:"credit_balance"`
	ActiveJobCount int         `json:"active_job_count"`
	MaxActiveJobs  int         `json:"max_active_jobs"`
	CreatedAt      time.Time   `json:"created_at"`
}

func newAccountView(a domain.Account) accountView {
	return accountView{
		ID:             a.ID,
		Email:          a.Email,
		Tier:           a.Tier,
		CreditBalance:  a.CreditBalance,
		ActiveJobCount: a.ActiveJobCount,
		MaxActiveJobs:  a.MaxConcurrentJobs(),
		CreatedAt:      a.CreatedAt,
	}
}

func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	acct := a.account(w, r)
	if acct == nil {
		return
	}
	a.json(w, http.StatusOK, newAccountView(*acct))
}

type transactionView struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job_id,omitempty"`
	Kind         string    `json:"kind"`
	Delta        int       `json:"delta"`
	BalanceAfter int       `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

func (a *App) Transactions(w http.ResponseWriter, r *http.Request) {
	acct := a.account(w, r)
	if acct == nil {
		return
	}
	txs, err := a.Accounts.ListTransactions(r.Context(), acct.ID, queryLimit(r, 50, 200))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	items := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		items = append(items, transactionView{
			ID:           t.ID,
			JobID:        t.JobID,
			Kind:         t.Kind,
			Delta:        t.Delta,
			BalanceAfter: t.BalanceAfter,
			CreatedAt:    t.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func queryLimit(r *http.Request, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
