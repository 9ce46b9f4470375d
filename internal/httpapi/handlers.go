package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ArionMiles/financehub/pkg/advice"
	"github.com/ArionMiles/financehub/pkg/api"
	"github.com/ArionMiles/financehub/pkg/engine"
	"github.com/ArionMiles/financehub/pkg/export"
	"github.com/ArionMiles/financehub/pkg/session"
	"github.com/ArionMiles/financehub/pkg/tools"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": ServiceName})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.gate.Allow(r.Context(), req.Email, req.Password)
	if err != nil {
		s.logger.Info("login rejected")
		unauthorized(w)
		return
	}

	sess := s.sessions.Create(user)
	s.logger.Info("login", "user_id", user.ID)
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	s.sessions.Delete(sess.Token)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	s.writeJSON(w, http.StatusOK, sess.User)
}

// dashboard serves the view for ?month=YYYY-MM, defaulting to the current month.
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	reference, err := s.referenceFor(r.URL.Query().Get("month"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.view(ds, reference))
}

// referenceFor maps a YYYY-MM month to the last instant of that month, or to
// now when the month is empty or current.
func (s *Server) referenceFor(month string) (time.Time, error) {
	now := s.cfg.Now().In(s.cfg.Location)
	if month == "" {
		return now, nil
	}

	start, err := time.ParseInLocation("2006-01", month, s.cfg.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("month must be YYYY-MM: %q", month)
	}
	if start.Year() == now.Year() && start.Month() == now.Month() {
		return now, nil
	}
	return start.AddDate(0, 1, 0).Add(-time.Nanosecond), nil
}

func (s *Server) dataset(w http.ResponseWriter, r *http.Request) (*api.Dataset, bool) {
	sess, _ := sessionFrom(r.Context())
	ds, err := s.sessions.Dataset(r.Context(), sess.Token)
	if errors.Is(err, session.ErrNotFound) {
		unauthorized(w)
		return nil, false
	}
	if err != nil {
		s.logger.Error("failed to load dataset", "user_id", sess.User.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "dataset unavailable")
		return nil, false
	}
	return ds, true
}

// listTransactions serves ?type=all|income|expense&sort=date|amount&limit=N.
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	txs := engine.ListTransactions(ds.Transactions, filter)
	s.writeJSON(w, http.StatusOK, map[string]any{"transactions": txs, "count": len(txs)})
}

// exportTransactions serves the same listing as a CSV download.
func (s *Server) exportTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	if err := export.WriteCSV(w, engine.ListTransactions(ds.Transactions, filter)); err != nil {
		s.logger.Error("failed to write csv export", "error", err)
	}
}

func parseListFilter(q url.Values) (engine.ListFilter, error) {
	filter := engine.ListFilter{Sort: engine.SortByDateDesc}

	switch t := strings.ToLower(q.Get("type")); t {
	case "", "all":
	default:
		dir, err := api.ParseDirection(t)
		if err != nil {
			return filter, errors.New("type must be all, income or expense")
		}
		filter.Direction = dir
	}

	switch engine.SortOrder(strings.ToLower(q.Get("sort"))) {
	case "", engine.SortByDateDesc:
	case engine.SortByAmountDesc:
		filter.Sort = engine.SortByAmountDesc
	default:
		return filter, errors.New("sort must be date or amount")
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("limit must be a non-negative integer")
		}
		filter.Limit = n
	}
	return filter, nil
}

// newTransactionRequest accepts "type" as a synonym of "direction".
type newTransactionRequest struct {
	api.RawTransaction
	Type string `json:"type"`
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req newTransactionRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	raw := req.RawTransaction
	if raw.Direction == "" {
		raw.Direction = req.Type
	}

	sess, _ := sessionFrom(r.Context())
	tx, err := s.sessions.Append(r.Context(), sess.Token, raw)
	switch {
	case errors.Is(err, session.ErrNotFound):
		unauthorized(w)
	case errors.Is(err, api.ErrMalformed):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.logger.Error("failed to append transaction", "user_id", sess.User.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "dataset unavailable")
	default:
		s.writeJSON(w, http.StatusCreated, tx)
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, advice.Respond(req.Message, s.view(ds, s.cfg.Now())))
}

type toolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	list := s.tools.List()
	out := make([]toolInfo, 0, len(list))
	for _, t := range list {
		out = append(out, toolInfo{Name: t.Name(), Description: t.Description(), InputSchema: t.InputSchema()})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

// callTool runs a tool with the request body as its arguments.
func (s *Server) callTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.tools.Get(name); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	args, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(strings.TrimSpace(string(args))) > 0 && !json.Valid(args) {
		s.writeError(w, http.StatusBadRequest, "arguments must be a JSON object")
		return
	}

	snap, err := s.snapshot(r.Context())
	if err != nil {
		s.logger.Error("failed to load snapshot", "tool", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "dataset unavailable")
		return
	}

	result, err := s.tools.Call(r.Context(), name, snap, args)
	switch {
	case errors.Is(err, tools.ErrUnknownTool), errors.Is(err, tools.ErrInvalidArguments):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.logger.Error("tool call failed", "tool", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "tool call failed")
	default:
		s.writeJSON(w, http.StatusOK, result)
	}
}
