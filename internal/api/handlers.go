package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/content-pulse/internal/model"
	"github.com/sells-group/content-pulse/internal/progress"
	"github.com/sells-group/content-pulse/internal/store"
)

const defaultListLimit = 50

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		s.log.Error("api: list accounts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts, "count": len(accounts)})
}

type upsertAccountRequest struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Website string            `json:"website"`
	CRMID   string            `json:"crm_id"`
	Fields  map[string]string `json:"fields"`
}

func (s *Server) upsertAccount(w http.ResponseWriter, r *http.Request) {
	var req upsertAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "account name is required")
		return
	}

	acct := model.Account{
		ID:      req.ID,
		Name:    req.Name,
		Website: req.Website,
		CRMID:   req.CRMID,
		Fields:  req.Fields,
	}
	if err := s.store.UpsertAccount(r.Context(), &acct); err != nil {
		s.log.Error("api: upsert account", zap.String("name", req.Name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save account")
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "account_id")
	acct, err := s.store.GetAccount(r.Context(), id)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		s.log.Error("api: get account", zap.String("account_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load account")
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) listAudits(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "account_id")
	limit := intQueryParam(r, "limit", defaultListLimit)

	records, err := s.store.ListAudits(r.Context(), id, limit)
	if err != nil {
		s.log.Error("api: list audits", zap.String("account_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list audits")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audits": records, "count": len(records)})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		Limit:  intQueryParam(r, "limit", defaultListLimit),
		Offset: intQueryParam(r, "offset", 0),
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = t
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		s.log.Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

type startRunRequest struct {
	// AccountIDs selects the targets; empty means every account in the
	// store.
	AccountIDs []string `json:"account_ids"`
}

// runSummary is the payload of the final "result" event.
type runSummary struct {
	RunID     string                   `json:"run_id"`
	Targets   int                      `json:"targets"`
	Succeeded int                      `json:"succeeded"`
	Skipped   int                      `json:"skipped"`
	Failed    int                      `json:"failed"`
	TotalCost float64                  `json:"total_cost"`
	Outcomes  map[string]model.Outcome `json:"outcomes"`
}

// startRun executes a bulk audit and streams progress as server-sent
// events: a "run" event with the run id, one "progress" event per status
// transition, then a single "result" (or "error") event.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	accounts, err := s.runTargets(r.Context(), req.AccountIDs)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.log.Error("api: load run targets", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load accounts")
		return
	}
	if len(accounts) == 0 {
		writeError(w, http.StatusBadRequest, "no accounts to audit")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	run, err := s.store.CreateRun(r.Context())
	if err != nil {
		s.log.Error("api: create run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create run")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	stream := newEventStream(w, flusher)
	stream.send("run", map[string]string{"run_id": run.ID})

	reporter := progress.ReporterFunc(func(e progress.Event) {
		stream.send("progress", e)
	})

	run.Targets = len(accounts)
	result, err := s.auditor.Run(r.Context(), accounts, reporter)
	if err != nil {
		// Headers are already out, so the failure travels in-band.
		stream.send("error", map[string]string{"error": err.Error()})
		run.Failed = len(accounts)
		s.finishRun(r.Context(), run)
		return
	}

	run.Succeeded, run.Skipped, run.Failed = result.Counts()
	run.TotalCost = result.TotalCost

	stream.send("result", runSummary{
		RunID:     run.ID,
		Targets:   run.Targets,
		Succeeded: run.Succeeded,
		Skipped:   run.Skipped,
		Failed:    run.Failed,
		TotalCost: result.TotalCost,
		Outcomes:  result.Outcomes,
	})
	s.finishRun(r.Context(), run)
}

// runTargets loads the requested accounts, or every account when no ids
// were given.
func (s *Server) runTargets(ctx context.Context, ids []string) ([]model.Account, error) {
	if len(ids) == 0 {
		return s.store.ListAccounts(ctx)
	}

	accounts := make([]model.Account, 0, len(ids))
	for _, id := range ids {
		acct, err := s.store.GetAccount(ctx, id)
		if err != nil {
			return nil, eris.Wrapf(err, "account %s", id)
		}
		accounts = append(accounts, *acct)
	}
	return accounts, nil
}

// finishRun closes out the run row. Detached from the request context so
// a client disconnect cannot lose the record.
func (s *Server) finishRun(ctx context.Context, run *model.Run) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.FinishRun(ctx, run); err != nil {
		s.log.Warn("api: finish run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func intQueryParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
