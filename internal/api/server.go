package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pbaille/learnlog/internal/domain"
	"github.com/pbaille/learnlog/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Server handles HTTP requests for the learning tracker API
type Server struct {
	store  *store.Store
	addr   string
	logger *zap.Logger
	otps   OTPSender
	otpTTL time.Duration
}

// Option configures a Server
type Option func(*Server)

// WithOTPSender sets how verification codes reach the user
func WithOTPSender(sender OTPSender) Option {
	return func(s *Server) { s.otps = sender }
}

// WithOTPTTL sets how long a verification code stays valid
func WithOTPTTL(ttl time.Duration) Option {
	return func(s *Server) { s.otpTTL = ttl }
}

// New creates a new API server
func New(st *store.Store, addr string, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{store: st, addr: addr, logger: logger, otpTTL: defaultOTPTTL}
	for _, opt := range opts {
		opt(s)
	}
	if s.otps == nil {
		s.otps = LogSender{Logger: logger}
	}
	return s
}

// Handler returns the routed API under /api
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Auth
	mux.HandleFunc("POST /api/auth/signup", s.signup)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/auth/generate-otp", s.generateOTP)
	mux.HandleFunc("POST /api/auth/verify-otp", s.verifyOTP)
	mux.HandleFunc("GET /api/auth/me", s.authed(s.me))
	mux.HandleFunc("POST /api/auth/logout", s.authed(s.logout))

	// Resources
	mux.HandleFunc("GET /api/resources", s.authed(s.listResources))
	mux.HandleFunc("POST /api/resources", s.authed(s.createResource))
	mux.HandleFunc("GET /api/resources/summary", s.authed(s.summary))
	mux.HandleFunc("GET /api/resources/{id}", s.authed(s.getResource))
	mux.HandleFunc("PUT /api/resources/{id}", s.authed(s.updateResource))
	mux.HandleFunc("DELETE /api/resources/{id}", s.authed(s.deleteResource))
	mux.HandleFunc("POST /api/resources/{id}/mark-complete", s.authed(s.markComplete))

	// Categories
	mux.HandleFunc("GET /api/categories", s.authed(s.listCategories))
	mux.HandleFunc("POST /api/categories", s.authed(s.createCategory))

	// Health check
	mux.HandleFunc("GET /api/health", s.health)

	return s.withLogging(withCORS(mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// withCORS adds CORS headers for browser clients
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}

type ctxKey struct{}

type principal struct {
	user  *domain.User
	token string
}

// authed resolves the bearer token before calling next
func (s *Server) authed(next func(http.ResponseWriter, *http.Request, principal)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		user, err := s.store.UserByToken(token)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if err != nil {
			s.internalError(w, err)
			return
		}

		next(w, r, principal{user: user, token: token})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SignupRequest is the request body for creating an account
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest is the request body for signing in
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries the issued token, or a message when the email
// still needs verifying
type AuthResponse struct {
	Token   string       `json:"token,omitempty"`
	User    *domain.User `json:"user"`
	Email   string       `json:"email,omitempty"`
	Message string       `json:"message,omitempty"`
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.internalError(w, err)
		return
	}

	user, err := s.store.CreateUser(req.Email, strings.TrimSpace(req.Name), string(hash))
	if errors.Is(err, store.ErrDuplicate) {
		existing, _, lookupErr := s.store.UserByEmail(req.Email)
		if lookupErr != nil {
			s.internalError(w, lookupErr)
			return
		}
		if existing.Verified {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		s.challenge(w, r, http.StatusOK, existing)
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}

	s.challenge(w, r, http.StatusCreated, user)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, hash, err := s.store.UserByEmail(req.Email)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if !user.Verified {
		s.challenge(w, r, http.StatusOK, user)
		return
	}
	s.issueToken(w, http.StatusOK, user)
}

func (s *Server) issueToken(w http.ResponseWriter, status int, user *domain.User) {
	token, err := s.store.CreateToken(user.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, status, AuthResponse{Token: token, User: user})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request, p principal) {
	writeJSON(w, http.StatusOK, map[string]any{"user": p.user})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request, p principal) {
	if err := s.store.DeleteToken(p.token); err != nil {
		s.internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listResources(w http.ResponseWriter, r *http.Request, p principal) {
	resources, err := s.store.ListResources(p.user.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resources)
}

func (s *Server) getResource(w http.ResponseWriter, r *http.Request, p principal) {
	resource, err := s.store.GetResource(p.user.ID, r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resource)
}

func decodeInput(r *http.Request) (domain.ResourceInput, error) {
	var in domain.ResourceInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return in, errors.New("invalid request body")
	}
	if t, err := domain.ParseResourceType(string(in.Type)); err == nil {
		in.Type = t
	}
	if err := in.Validate(); err != nil {
		return in, err
	}
	return in, nil
}

func (s *Server) createResource(w http.ResponseWriter, r *http.Request, p principal) {
	in, err := decodeInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resource, err := s.store.CreateResource(p.user.ID, in)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resource)
}

func (s *Server) updateResource(w http.ResponseWriter, r *http.Request, p principal) {
	in, err := decodeInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resource, err := s.store.UpdateResource(p.user.ID, r.PathValue("id"), in)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resource)
}

func (s *Server) deleteResource(w http.ResponseWriter, r *http.Request, p principal) {
	if err := s.store.DeleteResource(p.user.ID, r.PathValue("id")); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "resource deleted"})
}

func (s *Server) markComplete(w http.ResponseWriter, r *http.Request, p principal) {
	var req domain.CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ActualTimeSpent <= 0 {
		writeError(w, http.StatusBadRequest, "actualTimeSpent must be a positive number of minutes")
		return
	}

	resource, err := s.store.MarkComplete(p.user.ID, r.PathValue("id"), req.ActualTimeSpent)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.logger.Info("resource completed",
		zap.String("resource", resource.ID),
		zap.Int("minutes", req.ActualTimeSpent))
	writeJSON(w, http.StatusOK, resource)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request, p principal) {
	summary, err := s.store.Summary(p.user.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request, p principal) {
	categories, err := s.store.ListCategories(p.user.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// CreateCategoryRequest is the request body for adding a category
type CreateCategoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request, p principal) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	category, err := s.store.CreateCategory(p.user.ID, req.Name)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, store.ErrAlreadyCompleted):
		writeError(w, http.StatusConflict, "resource is already completed")
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "category already exists")
	case errors.Is(err, store.ErrUnknownCategory):
		writeError(w, http.StatusBadRequest, "unknown category")
	default:
		s.internalError(w, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
