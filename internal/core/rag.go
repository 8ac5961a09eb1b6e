package core

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rehabfit/backend/internal/store"
)

// Leaf dependencies of the orchestrator. Each is a blocking call from the
// caller's point of view, is never retried, and soft-fails to a sentinel
// value; see the concrete clients for the per-dependency policy.

type Embedder interface {
	Embed(ctx context.Context, text string) []float32
	Dimension() int
}

type VectorIndex interface {
	Upsert(ctx context.Context, userID, docID, text string, embedding []float32, metadata map[string]any)
	Query(ctx context.Context, userID string, embedding []float32, topK int) string
	DeleteAll(ctx context.Context) error
}

type VideoSearcher interface {
	Search(ctx context.Context, query string, maxResults int64) []Video
}

type Completer interface {
	Complete(ctx context.Context, prompt string) string
	CompletePersonalized(ctx context.Context, prompt string) string
	StreamPersonalized(ctx context.Context, prompt string, events chan<- StreamEvent)
}

// ProfileStore is the slice of the relational store the orchestrator
// reads; profile and progress rows are borrowed read-only per request.
type ProfileStore interface {
	GetUserByID(id int64) (*store.User, error)
	ListProgressByUser(userID int64) ([]store.Progress, error)
}

const (
	chatTopK = 5

	chatVideosPerTitle      = 2
	profileVideosPerKeyword = 3
	llmVideosPerKeyword     = 2

	// Probe text used to retrieve prior recommendations for the dashboard.
	dashboardQueryText = "dashboard summary for user"
)

// ChatAnswer is the buffered chat response payload.
type ChatAnswer struct {
	Answer string  `json:"answer"`
	Videos []Video `json:"videos"`
}

// DashboardSummary aggregates profile facts, progress history, LLM advice
// and video recommendations for the dashboard view.
type DashboardSummary struct {
	CreatedAt          string           `json:"createdAt"`
	EstimatedRecovery  string           `json:"estimatedRecovery"`
	DietPlan           []string         `json:"dietPlan"`
	LLMSummary         []string         `json:"llmSummary"`
	ProgressData       []store.Progress `json:"progressData"`
	RecoveryPercentage int              `json:"recoveryPercentage"`
	Videos             []Video          `json:"videos"`
}

// RAGService composes embedding, per-user vector retrieval, relational
// profile facts, LLM completion and video search into the end-to-end
// answer flows. It holds no per-request state; conversation memory is
// whatever the vector store returns for the user on each call.
type RAGService struct {
	embedder Embedder
	index    VectorIndex
	videos   VideoSearcher
	llm      Completer
	profiles ProfileStore
	log      *zap.SugaredLogger
}

func NewRAGService(embedder Embedder, index VectorIndex, videos VideoSearcher, llm Completer, profiles ProfileStore, log *zap.SugaredLogger) *RAGService {
	return &RAGService{
		embedder: embedder,
		index:    index,
		videos:   videos,
		llm:      llm,
		profiles: profiles,
		log:      log,
	}
}

// structuredAnswer is the well-formed variant of an LLM chat reply. The
// model is never trusted to produce it; parse failures fall back to the
// freeform variant (the raw string as the whole answer).
type structuredAnswer struct {
	Answer string `json:"answer"`
	Videos []struct {
		Title string `json:"title"`
	} `json:"videos"`
}

func parseStructuredAnswer(raw string) (structuredAnswer, bool) {
	var parsed structuredAnswer
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return structuredAnswer{}, false
	}
	if parsed.Answer == "" {
		return structuredAnswer{}, false
	}
	return parsed, true
}

// Chat answers a question with the buffered flow: retrieve the user's
// context, complete, defensively parse the reply, resolve suggested video
// titles to real links, and feed resolved recommendations back into the
// vector store for future retrieval.
func (s *RAGService) Chat(ctx context.Context, userID int64, question string) ChatAnswer {
	uid := formatUserID(userID)

	embedding := s.embedder.Embed(ctx, question)
	retrieved := s.index.Query(ctx, uid, embedding, chatTopK)

	user, err := s.profiles.GetUserByID(userID)
	if err != nil {
		s.log.Warnw("failed to load profile, answering without it", "userID", userID, "error", err)
	}

	prompt := ProfileFactsBlock(user) + retrieved + "\n\nUser's question: " + question
	raw := s.llm.Complete(ctx, prompt)

	parsed, ok := parseStructuredAnswer(raw)
	if !ok {
		return ChatAnswer{Answer: raw, Videos: []Video{}}
	}

	videos := []Video{}
	for _, suggestion := range parsed.Videos {
		if suggestion.Title == "" {
			continue
		}
		for _, v := range s.videos.Search(ctx, suggestion.Title, chatVideosPerTitle) {
			videos = append(videos, Video{Title: suggestion.Title, URL: v.URL})
		}
	}

	if len(videos) > 0 {
		// Feedback loop: persist what was recommended so future retrieval
		// can surface it. Detached from the request lifecycle.
		go s.storeRecommendation(uid, question, videos)
	}

	return ChatAnswer{Answer: parsed.Answer, Videos: videos}
}

func (s *RAGService) storeRecommendation(uid, question string, videos []Video) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	urls := make([]string, 0, len(videos))
	for _, v := range videos {
		urls = append(urls, v.URL)
	}

	docID := "recommendations-" + uid + "-" + uuid.NewString()
	text := "Recommended videos for: " + question
	embedding := s.embedder.Embed(ctx, question)
	s.index.Upsert(ctx, uid, docID, text, embedding, map[string]any{
		"type":   "recommendation",
		"videos": urls,
	})
}

// ChatPersonalized answers with the non-streaming personalized flow:
// second-person context, markdown-formatted plain-text reply.
func (s *RAGService) ChatPersonalized(ctx context.Context, userID int64, question string) string {
	prompt := s.personalizedPrompt(ctx, userID, question)
	return s.llm.CompletePersonalized(ctx, prompt)
}

// ChatStream starts the streaming personalized flow and returns the event
// channel immediately. A single producer goroutine owns the channel until
// it emits a terminal event and closes it; the handler that opened the
// stream must treat the channel as the sole completion signal.
func (s *RAGService) ChatStream(ctx context.Context, userID int64, question string) <-chan StreamEvent {
	events := make(chan StreamEvent)
	go func() {
		prompt := s.personalizedPrompt(ctx, userID, question)
		s.llm.StreamPersonalized(ctx, prompt, events)
	}()
	return events
}

func (s *RAGService) personalizedPrompt(ctx context.Context, userID int64, question string) string {
	uid := formatUserID(userID)

	embedding := s.embedder.Embed(ctx, question)
	retrieved := s.index.Query(ctx, uid, embedding, chatTopK)

	user, err := s.profiles.GetUserByID(userID)
	if err != nil {
		s.log.Warnw("failed to load profile, answering without it", "userID", userID, "error", err)
	}

	return ConversationalContext(user, retrieved) + "\n\nUser's question: " + question
}

// UpsertChatMessage stores a raw chat message as a retrievable document
// under a fresh id.
func (s *RAGService) UpsertChatMessage(ctx context.Context, userID int64, message string) {
	uid := formatUserID(userID)
	embedding := s.embedder.Embed(ctx, message)
	s.index.Upsert(ctx, uid, uuid.NewString(), message, embedding, nil)
}

// UpsertUserProfile (re)indexes the user's profile facts under a stable
// per-user document id, so re-upserts overwrite the previous snapshot.
func (s *RAGService) UpsertUserProfile(ctx context.Context, user *store.User) {
	uid := formatUserID(user.ID)
	docID := "user-profile-" + uid
	text := "Name: " + user.Name + ". Injury Type: " + user.InjuryType + ". Fitness Goal: " + user.FitnessGoal + "."
	embedding := s.embedder.Embed(ctx, text)
	s.index.Upsert(ctx, uid, docID, text, embedding, nil)
}

// UpsertProgress indexes one progress entry for retrieval.
func (s *RAGService) UpsertProgress(ctx context.Context, userID int64, p store.Progress) {
	uid := formatUserID(userID)
	docID := "progress-" + uid + "-" + strconv.FormatInt(p.ID, 10)
	text := "Date: " + p.Date + ", Pain: " + strconv.Itoa(p.PainLevel) +
		", Mobility: " + strconv.Itoa(p.Mobility) + ", Strength: " + strconv.Itoa(p.Strength)
	embedding := s.embedder.Embed(ctx, text)
	s.index.Upsert(ctx, uid, docID, text, embedding, map[string]any{
		"type": "progress",
		"date": p.Date,
	})
}

// SearchVideos exposes raw video search for the test endpoint.
func (s *RAGService) SearchVideos(ctx context.Context, query string) []Video {
	return s.videos.Search(ctx, query, profileVideosPerKeyword)
}

// DeleteAllVectors wipes the vector index. Administrative; errors
// propagate to the operator.
func (s *RAGService) DeleteAllVectors(ctx context.Context) error {
	return s.index.DeleteAll(ctx)
}

// Dashboard aggregates the dashboard summary: profile-keyword videos, an
// LLM-composed JSON summary (defensively parsed), LLM-keyword videos, the
// raw progress log and the computed recovery percentage.
func (s *RAGService) Dashboard(ctx context.Context, userID int64) DashboardSummary {
	uid := formatUserID(userID)

	user, err := s.profiles.GetUserByID(userID)
	if err != nil {
		s.log.Warnw("failed to load profile for dashboard", "userID", userID, "error", err)
	}
	createdAt := ""
	if user != nil && !user.CreatedAt.IsZero() {
		createdAt = user.CreatedAt.Format(time.RFC3339)
	}

	progress, err := s.profiles.ListProgressByUser(userID)
	if err != nil {
		s.log.Warnw("failed to load progress for dashboard", "userID", userID, "error", err)
	}
	if progress == nil {
		progress = []store.Progress{}
	}

	videos := []Video{}
	if user != nil {
		var keywords []string
		if user.InjuryType != "" {
			keywords = append(keywords, user.InjuryType+" rehab exercise")
		}
		if user.FitnessGoal != "" {
			keywords = append(keywords, user.FitnessGoal+" exercise")
		}
		for _, keyword := range keywords {
			videos = append(videos, s.videos.Search(ctx, keyword, profileVideosPerKeyword)...)
		}
	}

	embedding := s.embedder.Embed(ctx, dashboardQueryText)
	retrieved := s.index.Query(ctx, uid, embedding, chatTopK)

	raw := s.llm.Complete(ctx, DashboardPrompt(user, progress, retrieved))

	var llmData struct {
		EstimatedRecovery string   `json:"estimatedRecovery"`
		DietPlan          []string `json:"dietPlan"`
		LLMSummary        []string `json:"llmSummary"`
		Videos            []struct {
			Title string `json:"title"`
		} `json:"videos"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &llmData); err != nil {
		s.log.Warnw("dashboard summary was not valid JSON, using defaults", "error", err)
		llmData.EstimatedRecovery = "N/A"
		llmData.DietPlan = []string{}
		llmData.LLMSummary = []string{}
		llmData.Videos = nil
	}
	if llmData.DietPlan == nil {
		llmData.DietPlan = []string{}
	}
	if llmData.LLMSummary == nil {
		llmData.LLMSummary = []string{}
	}

	for _, suggestion := range llmData.Videos {
		if strings.TrimSpace(suggestion.Title) == "" {
			continue
		}
		videos = append(videos, s.videos.Search(ctx, suggestion.Title, llmVideosPerKeyword)...)
	}

	return DashboardSummary{
		CreatedAt:          createdAt,
		EstimatedRecovery:  llmData.EstimatedRecovery,
		DietPlan:           llmData.DietPlan,
		LLMSummary:         llmData.LLMSummary,
		ProgressData:       progress,
		RecoveryPercentage: recoveryPercentage(progress),
		Videos:             videos,
	}
}

// recoveryPercentage is round(avg(mobility)/10*100), 0 for an empty log.
// Mobility is logged unvalidated, so values above 10 push the figure past
// 100; the write path keeps the source scale and no clamp is applied.
func recoveryPercentage(entries []store.Progress) int {
	if len(entries) == 0 {
		return 0
	}
	var sum int
	for _, p := range entries {
		sum += p.Mobility
	}
	avg := float64(sum) / float64(len(entries))
	return int(math.Round(avg / 10.0 * 100.0))
}

func formatUserID(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
