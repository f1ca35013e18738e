// ABOUTME: HTTP handlers for the catalog, admin session, chat and index endpoints
// ABOUTME: Errors use the {"detail": ...} body shape the clients parse

package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/2389/brewdesk/internal/catalog"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
	maxBodyBytes     = 1 << 20
	defaultSession   = "default"
)

// Options configures a Server.
type Options struct {
	Store         *Store
	Auth          *Authenticator
	Metrics       *Metrics // nil disables instrumentation
	MetricsPath   string
	SecureCookies bool
	Logger        *slog.Logger
}

// Server is the backend's http.Handler.
type Server struct {
	store     *Store
	auth      *Authenticator
	metrics   *Metrics
	assistant *Assistant
	secure    bool
	logger    *slog.Logger
	handler   http.Handler
}

// NewServer wires routes onto a fresh mux.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:     opts.Store,
		auth:      opts.Auth,
		metrics:   opts.Metrics,
		assistant: NewAssistant(opts.Store),
		secure:    opts.SecureCookies,
		logger:    logger.With("component", "backend"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/login", s.handleLogin)
	mux.HandleFunc("POST /admin/logout", s.handleLogout)
	mux.HandleFunc("GET /admin/check", s.handleCheck)

	for _, k := range catalog.Kinds {
		base := k.Path()
		mux.HandleFunc("GET "+base+"/{$}", s.handleList(k))
		mux.HandleFunc("GET "+base+"/search/{$}", s.handleSearch(k))
		mux.HandleFunc("GET "+base+"/{id}", s.handleGet(k))
		mux.HandleFunc("POST "+base+"/{$}", s.requireAdmin(s.handleCreate(k)))
		mux.HandleFunc("PUT "+base+"/{id}", s.requireAdmin(s.handleUpdate(k)))
		mux.HandleFunc("DELETE "+base+"/{id}", s.requireAdmin(s.handleDelete(k)))
	}

	mux.HandleFunc("POST /chat/{$}", s.handleChat)
	mux.HandleFunc("GET /chat/history/{session_id}", s.handleChatHistory)
	mux.HandleFunc("DELETE /chat/history/{session_id}", s.handleClearChat)

	mux.HandleFunc("POST /embeddings/reindex", s.requireAdmin(s.handleReindex))
	mux.HandleFunc("GET /embeddings/status", s.handleIndexStatus)

	if s.metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, s.metrics.Handler())
		s.handler = s.metrics.instrument(mux)
	} else {
		s.handler = mux
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// fieldIssue is one entry of a 422 validation body.
type fieldIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func writeValidation(w http.ResponseWriter, issues []fieldIssue) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": issues})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeDetail(w, http.StatusInternalServerError, "Internal server error")
}

// requireAdmin rejects requests without a live admin session.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.Authenticated(r) {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next(w, r)
	}
}

func (s *Server) countLogin(result string) {
	if s.metrics != nil {
		s.metrics.Logins.WithLabelValues(result).Inc()
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.auth.AllowLogin(r) {
		s.countLogin("limited")
		writeDetail(w, http.StatusTooManyRequests, "Too many login attempts")
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeValidation(w, []fieldIssue{{Loc: []string{"body"}, Msg: "invalid JSON body", Type: "value_error.jsondecode"}})
		return
	}

	if !s.auth.CheckPassword(req.Password) {
		s.countLogin("rejected")
		s.logger.Warn("admin login rejected", "remote", clientIP(r))
		writeDetail(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	token, err := s.auth.tokens.issue()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.auth.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.countLogin("accepted")
	s.logger.Info("admin login successful", "remote", clientIP(r))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Login successful"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if claims, err := s.auth.session(r); err == nil {
		s.auth.tokens.revoke(claims.ID)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out successfully"})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if !s.auth.Authenticated(r) {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": true})
}

// listPage is the paginated list envelope.
type listPage struct {
	Items      []catalog.Record `json:"items"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	TotalPages int              `json:"total_pages"`
}

// queryInt reads a non-negative integer parameter, falling back to def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func queryIssue(name string, err error) []fieldIssue {
	return []fieldIssue{{Loc: []string{"query", name}, Msg: err.Error(), Type: "type_error.integer"}}
}

// handleList serves page/per_page as an envelope and skip/limit as a bare array.
func (s *Server) handleList(k catalog.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Has("page") || q.Has("per_page") {
			page, err := queryInt(r, "page", 1)
			if err != nil {
				writeValidation(w, queryIssue("page", err))
				return
			}
			perPage, err := queryInt(r, "per_page", defaultListLimit)
			if err != nil {
				writeValidation(w, queryIssue("per_page", err))
				return
			}
			page = max(page, 1)
			perPage = min(max(perPage, 1), maxListLimit)

			recs, total, err := s.store.List(r.Context(), k, (page-1)*perPage, perPage)
			if err != nil {
				s.internalError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, listPage{
				Items:      recs,
				Total:      total,
				Page:       page,
				PerPage:    perPage,
				TotalPages: (total + perPage - 1) / perPage,
			})
			return
		}

		skip, err := queryInt(r, "skip", 0)
		if err != nil {
			writeValidation(w, queryIssue("skip", err))
			return
		}
		limit, err := queryInt(r, "limit", defaultListLimit)
		if err != nil {
			writeValidation(w, queryIssue("limit", err))
			return
		}
		recs, _, err := s.store.List(r.Context(), k, skip, min(limit, maxListLimit))
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

func invalidID(w http.ResponseWriter, raw string) {
	writeValidation(w, []fieldIssue{{Loc: []string{"path", "id"}, Msg: fmt.Sprintf("%q is not a valid integer", raw), Type: "type_error.integer"}})
}

func notFound(w http.ResponseWriter, k catalog.Kind) {
	writeDetail(w, http.StatusNotFound, k.Label()+" not found")
}

func (s *Server) handleGet(k catalog.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			invalidID(w, r.PathValue("id"))
			return
		}
		rec, err := s.store.Get(r.Context(), k, id)
		if errors.Is(err, ErrNotFound) {
			notFound(w, k)
			return
		}
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// checkRequired lists required schema fields left blank.
func checkRequired(rec catalog.Record) []fieldIssue {
	vals := rec.Values()
	var issues []fieldIssue
	for _, f := range catalog.MustSchema(rec.Kind()).Fields {
		if !f.Required {
			continue
		}
		if s, _ := vals[f.Name].(string); strings.TrimSpace(s) == "" {
			issues = append(issues, fieldIssue{Loc: []string{"body", f.Name}, Msg: "field required", Type: "value_error.missing"})
		}
	}
	return issues
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

func (s *Server) handleCreate(k catalog.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(r)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		rec, err := catalog.Decode(k, body)
		if err != nil {
			writeValidation(w, []fieldIssue{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}})
			return
		}
		if issues := checkRequired(rec); len(issues) > 0 {
			writeValidation(w, issues)
			return
		}

		created, err := s.store.Create(r.Context(), rec.WithID(nil))
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		id, _ := created.Identifier()
		s.logger.Info("record created", "kind", k, "id", id)
		writeJSON(w, http.StatusCreated, created)
	}
}

// handleUpdate applies a partial update: only schema fields present in the
// body change.
func (s *Server) handleUpdate(k catalog.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			invalidID(w, r.PathValue("id"))
			return
		}
		body, err := readBody(r)
		if err != nil {
			s.internalError(w, r, err)
			return
		}

		var patch map[string]json.RawMessage
		if err := json.Unmarshal(body, &patch); err != nil {
			writeValidation(w, []fieldIssue{{Loc: []string{"body"}, Msg: "invalid JSON body", Type: "value_error.jsondecode"}})
			return
		}
		schema := catalog.MustSchema(k)
		for name := range patch {
			if _, ok := schema.Field(name); !ok {
				delete(patch, name)
			}
		}
		if len(patch) == 0 {
			writeDetail(w, http.StatusBadRequest, "No fields to update")
			return
		}

		existing, err := s.store.Get(r.Context(), k, id)
		if errors.Is(err, ErrNotFound) {
			notFound(w, k)
			return
		}
		if err != nil {
			s.internalError(w, r, err)
			return
		}

		merged, err := mergePatch(existing.WithID(nil), patch)
		if err != nil {
			writeValidation(w, []fieldIssue{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}})
			return
		}
		if issues := checkRequired(merged); len(issues) > 0 {
			writeValidation(w, issues)
			return
		}

		updated, err := s.store.Update(r.Context(), id, merged)
		if errors.Is(err, ErrNotFound) {
			notFound(w, k)
			return
		}
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		s.logger.Info("record updated", "kind", k, "id", id, "fields", len(patch))
		writeJSON(w, http.StatusOK, updated)
	}
}

// mergePatch overlays patch onto rec's JSON form and decodes the result.
func mergePatch(rec catalog.Record, patch map[string]json.RawMessage) (catalog.Record, error) {
	base, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for name, v := range patch {
		fields[name] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return catalog.Decode(rec.Kind(), merged)
}

func (s *Server) handleDelete(k catalog.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			invalidID(w, r.PathValue("id"))
			return
		}
		err := s.store.Delete(r.Context(), k, id)
		if errors.Is(err, ErrNotFound) {
			notFound(w, k)
			return
		}
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		s.logger.Info("record deleted", "kind", k, "id", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func queryFloat(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &v, nil
}

func (s *Server) handleSearch(k catalog.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query := Query{
			Name:     q.Get("name"),
			Category: q.Get("category"),
			Address:  q.Get("address"),
		}
		var err error
		if query.MinPrice, err = queryFloat(r, "min_price"); err != nil {
			writeValidation(w, []fieldIssue{{Loc: []string{"query", "min_price"}, Msg: err.Error(), Type: "type_error.float"}})
			return
		}
		if query.MaxPrice, err = queryFloat(r, "max_price"); err != nil {
			writeValidation(w, []fieldIssue{{Loc: []string{"query", "max_price"}, Msg: err.Error(), Type: "type_error.float"}})
			return
		}
		if query.Limit, err = queryInt(r, "limit", defaultListLimit); err != nil {
			writeValidation(w, queryIssue("limit", err))
			return
		}
		query.Limit = min(query.Limit, maxListLimit)

		recs, err := s.store.Search(r.Context(), k, query)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
		History   []Turn `json:"history"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeValidation(w, []fieldIssue{{Loc: []string{"body"}, Msg: "invalid JSON body", Type: "value_error.jsondecode"}})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeValidation(w, []fieldIssue{{Loc: []string{"body", "message"}, Msg: "field required", Type: "value_error.missing"}})
		return
	}
	session := req.SessionID
	if session == "" {
		session = defaultSession
	}

	reply, err := s.assistant.Reply(r.Context(), req.Message)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if err := s.store.AppendChat(r.Context(), session,
		Turn{Role: "user", Content: req.Message},
		Turn{Role: "assistant", Content: reply},
	); err != nil {
		s.internalError(w, r, err)
		return
	}
	s.logger.Debug("chat reply", "session_id", session, "client_history", len(req.History))
	writeJSON(w, http.StatusOK, map[string]string{"response": reply, "session_id": session})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := s.store.ChatHistory(r.Context(), r.PathValue("session_id"))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request) {
	session := r.PathValue("session_id")
	if err := s.store.ClearChat(r.Context(), session); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Chat history for session '%s' cleared.", session),
	})
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	n, err := Reindex(r.Context(), s.store)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.Reindex.Inc()
	}
	s.logger.Info("index rebuilt", "documents", n)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "success",
		"message":          "Embeddings regenerated successfully",
		"total_embeddings": n,
	})
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.IndexCount(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"total_embeddings":   n,
		"faiss_index_exists": n > 0,
		"meta_file_exists":   n > 0,
	})
}
