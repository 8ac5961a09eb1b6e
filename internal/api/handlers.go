package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rehabfit/backend/internal/auth"
	"github.com/rehabfit/backend/internal/core"
	"github.com/rehabfit/backend/internal/store"
)

// RAGProvider is what the handlers need from the orchestration layer.
type RAGProvider interface {
	Chat(ctx context.Context, userID int64, question string) core.ChatAnswer
	ChatPersonalized(ctx context.Context, userID int64, question string) string
	ChatStream(ctx context.Context, userID int64, question string) <-chan core.StreamEvent
	UpsertChatMessage(ctx context.Context, userID int64, message string)
	UpsertUserProfile(ctx context.Context, user *store.User)
	UpsertProgress(ctx context.Context, userID int64, p store.Progress)
	Dashboard(ctx context.Context, userID int64) core.DashboardSummary
	SearchVideos(ctx context.Context, query string) []core.Video
	DeleteAllVectors(ctx context.Context) error
}

// UserStore is the relational surface the handlers touch.
type UserStore interface {
	CreateUser(user *store.User) (*store.User, error)
	GetUserByEmail(email string) (*store.User, error)
	GetUserByID(id int64) (*store.User, error)
	UpdateProfile(userID int64, name, injuryType, injuryDescription, fitnessGoal string) (*store.User, error)
	CreateProgress(p *store.Progress) (*store.Progress, error)
	ListProgressByUser(userID int64) ([]store.Progress, error)
}

type ctxKey int

const userCtxKey ctxKey = iota

type APIHandler struct {
	store      UserStore
	jwt        *auth.JWTManager
	google     *auth.GoogleVerifier
	rag        RAGProvider
	adminToken string
	log        *zap.SugaredLogger
}

func NewAPIHandler(st UserStore, jwtMgr *auth.JWTManager, google *auth.GoogleVerifier, rag RAGProvider, adminToken string, log *zap.SugaredLogger) *APIHandler {
	return &APIHandler{
		store:      st,
		jwt:        jwtMgr,
		google:     google,
		rag:        rag,
		adminToken: adminToken,
		log:        log,
	}
}

func userFrom(ctx context.Context) *store.User {
	user, _ := ctx.Value(userCtxKey).(*store.User)
	return user
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// JWTAuthMiddleware resolves the bearer token to a user row and stores it
// on the request context. Identity failures reject the request; no
// personalized response can be produced without knowing who is asking.
func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		email, err := h.jwt.Validate(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.store.GetUserByEmail(email)
		if err != nil {
			h.log.Errorw("failed to resolve user identity", "email", email, "error", err)
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}
		if user == nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userCtxKey, user)))
	})
}

// AdminMiddleware gates operator endpoints behind the static admin token.
func (h *APIHandler) AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken == "" || r.Header.Get("X-Admin-Token") != h.adminToken {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Auth handlers

type RegisterRequest struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	InjuryType        string `json:"injuryType"`
	InjuryDescription string `json:"injuryDescription"`
	FitnessGoal       string `json:"fitnessGoal"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		http.Error(w, "Name, email and password are required", http.StatusBadRequest)
		return
	}

	existing, err := h.store.GetUserByEmail(req.Email)
	if err != nil {
		h.log.Errorw("failed to check existing user", "email", req.Email, "error", err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		http.Error(w, "Email already registered", http.StatusConflict)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log.Errorw("failed to hash password", "error", err)
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := h.store.CreateUser(&store.User{
		Name:              req.Name,
		Email:             req.Email,
		PasswordHash:      hashedPassword,
		InjuryType:        req.InjuryType,
		InjuryDescription: req.InjuryDescription,
		FitnessGoal:       req.FitnessGoal,
	})
	if err != nil {
		h.log.Errorw("failed to create user", "email", req.Email, "error", err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	// Seed the vector memory with the profile snapshot; detached from the
	// request lifecycle.
	go h.upsertProfileDetached(user)

	token, err := h.jwt.Generate(user.Email)
	if err != nil {
		h.log.Errorw("failed to generate token", "email", user.Email, "error", err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"token": token, "user": user})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.store.GetUserByEmail(req.Email)
	if err != nil {
		h.log.Errorw("failed to load user", "email", req.Email, "error", err)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.jwt.Generate(user.Email)
	if err != nil {
		h.log.Errorw("failed to generate token", "email", user.Email, "error", err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type GoogleLoginRequest struct {
	IDToken string `json:"idToken"`
}

func (h *APIHandler) GoogleLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	profile, err := h.google.Verify(r.Context(), req.IDToken)
	if err != nil {
		h.log.Warnw("google sign-in rejected", "error", err)
		http.Error(w, "Invalid Google token", http.StatusUnauthorized)
		return
	}

	user, err := h.store.GetUserByEmail(profile.Email)
	if err != nil {
		h.log.Errorw("failed to load user", "email", profile.Email, "error", err)
		http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
		return
	}
	if user == nil {
		// First Google sign-in creates the account with an unusable
		// password hash.
		user, err = h.store.CreateUser(&store.User{
			Name:         profile.Name,
			Email:        profile.Email,
			PasswordHash: "google-oauth",
		})
		if err != nil {
			h.log.Errorw("failed to create google user", "email", profile.Email, "error", err)
			http.Error(w, "Failed to create user", http.StatusInternalServerError)
			return
		}
		go h.upsertProfileDetached(user)
	}

	token, err := h.jwt.Generate(user.Email)
	if err != nil {
		h.log.Errorw("failed to generate token", "email", user.Email, "error", err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (h *APIHandler) upsertProfileDetached(user *store.User) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	h.rag.UpsertUserProfile(ctx, user)
}

// Chat handlers

type ChatRequest struct {
	Question string `json:"question"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "Question cannot be empty", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, h.rag.Chat(r.Context(), user.ID, req.Question))
}

func (h *APIHandler) ChatSimpleHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "Question cannot be empty", http.StatusBadRequest)
		return
	}

	answer := h.rag.ChatPersonalized(r.Context(), user.ID, req.Question)
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// ChatStreamHandler delivers the personalized answer over server-sent
// events: zero or more "message" events, then a single "done" or "error"
// terminator. The producer goroutine stops on its own when the client
// disconnects, via the request context.
func (h *APIHandler) ChatStreamHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "Question cannot be empty", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := h.rag.ChatStream(r.Context(), user.ID, req.Question)
	for ev := range events {
		switch ev.Type {
		case core.StreamToken:
			writeSSE(w, "message", ev.Token)
		case core.StreamDone:
			writeSSE(w, "done", "[DONE]")
		case core.StreamError:
			writeSSE(w, "error", "Error processing request")
		}
		flusher.Flush()
	}
}

// writeSSE frames one event; multi-line payloads become consecutive data
// lines per the SSE wire format.
func writeSSE(w http.ResponseWriter, event, data string) {
	w.Write([]byte("event: " + event + "\n"))
	for _, line := range strings.Split(data, "\n") {
		w.Write([]byte("data: " + line + "\n"))
	}
	w.Write([]byte("\n"))
}

type UpsertChatRequest struct {
	Message string `json:"message"`
}

func (h *APIHandler) UpsertChatHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req UpsertChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "Message cannot be empty", http.StatusBadRequest)
		return
	}

	h.rag.UpsertChatMessage(r.Context(), user.ID, req.Message)
	w.WriteHeader(http.StatusOK)
}

func (h *APIHandler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	writeJSON(w, http.StatusOK, h.rag.Dashboard(r.Context(), user.ID))
}

func (h *APIHandler) VideoSearchHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		http.Error(w, "Query parameter is required", http.StatusBadRequest)
		return
	}
	videos := h.rag.SearchVideos(r.Context(), query)
	if videos == nil {
		videos = []core.Video{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"urls": videos})
}

// Progress handlers

type ProgressRequest struct {
	PainLevel int    `json:"painLevel"`
	Mobility  int    `json:"mobility"`
	Strength  int    `json:"strength"`
	Date      string `json:"date"`
}

func (h *APIHandler) LogProgressHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req ProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Date == "" {
		req.Date = time.Now().Format("2006-01-02")
	}

	entry, err := h.store.CreateProgress(&store.Progress{
		UserID:    user.ID,
		PainLevel: req.PainLevel,
		Mobility:  req.Mobility,
		Strength:  req.Strength,
		Date:      req.Date,
	})
	if err != nil {
		h.log.Errorw("failed to log progress", "userID", user.ID, "error", err)
		http.Error(w, "Failed to log progress", http.StatusInternalServerError)
		return
	}

	h.rag.UpsertProgress(r.Context(), user.ID, *entry)

	writeJSON(w, http.StatusCreated, entry)
}

func (h *APIHandler) ListProgressHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	entries, err := h.store.ListProgressByUser(user.ID)
	if err != nil {
		h.log.Errorw("failed to list progress", "userID", user.ID, "error", err)
		http.Error(w, "Failed to list progress", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []store.Progress{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Profile handlers

func (h *APIHandler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFrom(r.Context()))
}

type UpdateProfileRequest struct {
	Name              string `json:"name"`
	InjuryType        string `json:"injuryType"`
	InjuryDescription string `json:"injuryDescription"`
	FitnessGoal       string `json:"fitnessGoal"`
}

func (h *APIHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		req.Name = user.Name
	}

	updated, err := h.store.UpdateProfile(user.ID, req.Name, req.InjuryType, req.InjuryDescription, req.FitnessGoal)
	if err != nil {
		h.log.Errorw("failed to update profile", "userID", user.ID, "error", err)
		http.Error(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}

	go h.upsertProfileDetached(updated)

	writeJSON(w, http.StatusOK, updated)
}

// Admin handlers

func (h *APIHandler) DeleteAllVectorsHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.rag.DeleteAllVectors(r.Context()); err != nil {
		h.log.Errorw("vector delete-all failed", "error", err)
		http.Error(w, "Failed to delete vectors: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "all vectors deleted"})
}
