package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"quiztake-service/internal/app"
	"quiztake-service/internal/domain"

	"github.com/rs/zerolog"
)

// QuizCatalog enumerates the quizzes available to start.
type QuizCatalog interface {
	ListQuizzes(ctx context.Context) ([]domain.QuizInfo, error)
}

// Handler exposes the REST API.
type Handler struct {
	sessions *app.SessionService
	users    *app.UserService
	catalog  QuizCatalog
	log      zerolog.Logger
}

func NewHandler(sessions *app.SessionService, users *app.UserService, catalog QuizCatalog, log zerolog.Logger) *Handler {
	return &Handler{sessions: sessions, users: users, catalog: catalog, log: log}
}

// Routes registers all API endpoints on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/quizzes", h.handleQuizzes)
	mux.HandleFunc("POST /api/start", h.handleStart)
	mux.HandleFunc("GET /api/session/{id}", h.handleSessionStatus)
	mux.HandleFunc("POST /api/submit", h.handleSubmit)
	mux.HandleFunc("GET /api/results", h.handleResults)
	mux.HandleFunc("POST /api/register", h.handleRegister)
	mux.HandleFunc("POST /api/login", h.handleLogin)
	mux.HandleFunc("GET /api/user/results", h.handleUserResults)
}

func (h *Handler) handleQuizzes(w http.ResponseWriter, r *http.Request) {
	infos, err := h.catalog.ListQuizzes(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

type startRequest struct {
	Name   string `json:"name"`
	QuizID string `json:"quizId"`
	UserID string `json:"userId"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorKind(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	started, err := h.sessions.Start(r.Context(), req.Name, req.QuizID, req.UserID, clientMeta(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, started)
}

func (h *Handler) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("X-Session-Token")
	}
	status, err := h.sessions.GetStatus(r.Context(), sessionID, token)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !status.Exists {
		writeJSON(w, http.StatusNotFound, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type submitRequest struct {
	Session string `json:"session"`
	Token   string `json:"token"`
	Answers []any  `json:"answers"`
	QuizID  string `json:"quizId"`
}

type submitResponse struct {
	OK bool `json:"ok"`
	domain.SubmitResult
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorKind(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	result, err := h.sessions.Submit(r.Context(), app.SubmitRequest{
		SessionID: req.Session,
		Token:     req.Token,
		QuizID:    req.QuizID,
		Answers:   req.Answers,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{OK: true, SubmitResult: result})
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	// Unauthenticated by design: local/admin use only, like the system this
	// replaces. Do not expose publicly.
	summaries, err := h.sessions.ListResults(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorKind(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	if err := h.users.Register(r.Context(), req.Username, req.Password); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "user registered"})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorKind(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	token, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "username": req.Username})
}

func (h *Handler) handleUserResults(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	summaries, err := h.users.ResultsFor(r.Context(), token)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func clientMeta(r *http.Request) domain.ClientMeta {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		if i := strings.IndexByte(ip, ','); i >= 0 {
			ip = ip[:i]
		}
		ip = strings.TrimSpace(ip)
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	} else {
		ip = r.RemoteAddr
	}
	return domain.ClientMeta{IP: ip, UserAgent: r.UserAgent()}
}

// writeError maps domain errors onto the wire taxonomy. Unknown errors are
// logged and collapsed into a generic internal kind.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPayload):
		writeErrorKind(w, http.StatusBadRequest, "invalid_payload")
	case errors.Is(err, domain.ErrAnswersLengthMismatch):
		writeErrorKind(w, http.StatusBadRequest, "answers_length_mismatch")
	case errors.Is(err, domain.ErrUserExists):
		writeErrorKind(w, http.StatusBadRequest, "username_exists")
	case errors.Is(err, domain.ErrInvalidToken):
		writeErrorKind(w, http.StatusUnauthorized, "invalid_token")
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeErrorKind(w, http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, domain.ErrSessionNotFound):
		writeErrorKind(w, http.StatusNotFound, "session_not_found")
	case errors.Is(err, domain.ErrQuizNotFound):
		writeErrorKind(w, http.StatusNotFound, "quiz_not_found")
	case errors.Is(err, domain.ErrAlreadySubmitted):
		writeErrorKind(w, http.StatusConflict, "already_submitted")
	case errors.Is(err, domain.ErrNoQuestions):
		writeErrorKind(w, http.StatusInternalServerError, "no_questions")
	default:
		h.log.Error().Err(err).Msg("request failed")
		writeErrorKind(w, http.StatusInternalServerError, "internal")
	}
}

func writeErrorKind(w http.ResponseWriter, status int, kind string) {
	writeJSON(w, status, map[string]string{"error": kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
