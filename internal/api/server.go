package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"chatrelay/internal/auth"
	"chatrelay/internal/user"
	"chatrelay/pkg/interfaces"
	"chatrelay/pkg/types"
)

// Health is the subset of the database manager the health endpoint needs.
type Health interface {
	HealthCheck(ctx context.Context) error
}

// Stats avoids coupling to the concrete websocket registry.
type Stats interface {
	Stats() map[string]int
}

// Server is the HTTP surface around the core: account endpoints that mint
// the handshake token, history retrieval, and health. No relay logic lives
// here.
type Server struct {
	users    *user.Manager
	messages interfaces.MessageStore
	tokens   *auth.TokenService
	health   Health
	stats    Stats
	ttl      time.Duration
	router   *http.ServeMux
	validate *validator.Validate
	log      *slog.Logger
}

func NewServer(users *user.Manager, messages interfaces.MessageStore, tokens *auth.TokenService,
	health Health, stats Stats, tokenTTL time.Duration, log *slog.Logger) *Server {
	s := &Server{
		users:    users,
		messages: messages,
		tokens:   tokens,
		health:   health,
		stats:    stats,
		ttl:      tokenTTL,
		router:   http.NewServeMux(),
		validate: validator.New(),
		log:      log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/register", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleRegister))))
	s.router.Handle("/api/login", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleLogin))))
	s.router.Handle("/api/users", s.corsMiddleware(s.jsonMiddleware(s.requireToken(s.handleUsers))))
	s.router.Handle("/api/messages", s.corsMiddleware(s.jsonMiddleware(s.requireToken(s.handleMessages))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleHealth))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// credentialsRequest is shared by register and login.
type credentialsRequest struct {
	Username string `json:"username" validate:"required,min=1,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type sessionResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}

	account, err := s.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, interfaces.ErrUsernameTaken):
			s.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, types.ErrInvalidUsername), errors.Is(err, user.ErrWeakPassword):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.log.Error("registration failed", "err", err)
			s.writeError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	s.issueSession(w, http.StatusCreated, account)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}

	account, err := s.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, user.ErrBadCredentials.Error())
		return
	}

	s.issueSession(w, http.StatusOK, account)
}

// issueSession mints the handshake token and sets it as the cookie the
// websocket upgrade later reads.
func (s *Server) issueSession(w http.ResponseWriter, status int, account *types.User) {
	token, err := s.tokens.Generate(account.ID, account.Username)
	if err != nil {
		s.log.Error("token generation failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(s.ttl),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	s.writeJSON(w, status, sessionResponse{
		ID:       account.ID,
		Username: account.Username,
		Token:    token,
	})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	accounts, err := s.users.List(r.Context())
	if err != nil {
		s.log.Error("user listing failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, "user listing failed")
		return
	}

	out := make([]types.RosterEntry, 0, len(accounts))
	for _, u := range accounts {
		out = append(out, types.RosterEntry{UserID: u.ID, Username: u.Username})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleMessages returns the requester's conversation with ?peer=<userId>,
// CreatedAt ascending.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	peer := r.URL.Query().Get("peer")
	if peer == "" {
		s.writeError(w, http.StatusBadRequest, "missing required query parameter: peer")
		return
	}

	messages, err := s.messages.Conversation(r.Context(), claims.UserID, peer)
	if err != nil {
		s.log.Error("conversation query failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, "conversation query failed")
		return
	}
	if messages == nil {
		messages = []*types.Message{}
	}
	s.writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := s.health.HealthCheck(r.Context()); err != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]any{
		"status":      status,
		"connections": s.stats.Stats(),
		"timestamp":   time.Now().UTC(),
	})
}

// requireToken verifies the handshake cookie and passes claims to the
// wrapped handler.
func (s *Server) requireToken(next func(http.ResponseWriter, *http.Request, *auth.Claims)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.tokens.FromRequest(r)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r, claims)
	})
}

func (s *Server) decodeCredentials(w http.ResponseWriter, r *http.Request) (*credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "username and password (8+ characters) are required")
		return nil, false
	}
	return &req, true
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response encoding failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
