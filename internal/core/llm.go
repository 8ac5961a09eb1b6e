package core

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	chatModelName = "gemini-1.5-flash-latest"

	completionTemperature = 0.2
	completionMaxTokens   = 512

	assistantSystemInstruction = "You are a helpful rehab assistant. Use the provided context to answer."

	personalSystemInstruction = "You are a helpful rehab assistant speaking directly to the user. " +
		"Use the provided context about the user to personalize your responses. " +
		"Always respond in second person (using 'you/your'). " +
		"Format your responses using markdown for better readability. Use:\n" +
		"- **bold** for emphasis\n" +
		"- Lists for steps or points\n" +
		"- ## Headers for sections\n" +
		"- `code blocks` for exercises or specific terms"

	// Returned in place of any transport failure; raw provider errors are
	// never shown to the user.
	fallbackAnswer = "Sorry, I couldn't process your request right now."

	emptyResponseAnswer = "I'm sorry, I couldn't generate a response at this time. Please try again."
)

// StreamEventType tags the events on a streaming completion channel.
type StreamEventType string

const (
	StreamToken StreamEventType = "message"
	StreamDone  StreamEventType = "done"
	StreamError StreamEventType = "error"
)

// StreamEvent is one tagged event on a streaming completion channel. The
// producer emits zero or more Token events followed by exactly one
// terminal Done or Error event, then closes the channel.
type StreamEvent struct {
	Type  StreamEventType
	Token string
}

// LLMService drives chat completions in three delivery modes sharing the
// same sampling parameters.
type LLMService struct {
	client *genai.Client
	log    *zap.SugaredLogger
}

func NewLLMService(ctx context.Context, apiKey string, log *zap.SugaredLogger) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &LLMService{client: client, log: log}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.log.Warnw("error closing GenAI client", "error", err)
		}
	}
}

func (s *LLMService) model(systemInstruction string) *genai.GenerativeModel {
	model := s.client.GenerativeModel(chatModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}

	temp := float32(completionTemperature)
	maxTokens := int32(completionMaxTokens)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     &temp,
		MaxOutputTokens: &maxTokens,
	}
	return model
}

// Complete runs a buffered completion with the generic assistant prompt.
// It never returns an error: failures become a user-safe apology string.
func (s *LLMService) Complete(ctx context.Context, prompt string) string {
	return s.complete(ctx, assistantSystemInstruction, prompt)
}

// CompletePersonalized runs a buffered completion with the second-person
// markdown system prompt.
func (s *LLMService) CompletePersonalized(ctx context.Context, prompt string) string {
	return s.complete(ctx, personalSystemInstruction, prompt)
}

func (s *LLMService) complete(ctx context.Context, systemInstruction, prompt string) string {
	resp, err := s.model(systemInstruction).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		s.log.Errorw("chat completion failed", "error", err)
		return fallbackAnswer
	}

	text := responseText(resp)
	if text == "" {
		s.log.Warn("chat completion returned no text parts")
		return emptyResponseAnswer
	}
	return text
}

// StreamPersonalized drives one streaming completion, forwarding token
// chunks onto events. It blocks until the stream finishes, the transport
// errors, or ctx is cancelled (the caller's connection dropped), emits a
// terminal Done or Error event, and closes the channel exactly once.
// The caller owns spawning it on its own goroutine; no other goroutine
// may write to events.
func (s *LLMService) StreamPersonalized(ctx context.Context, prompt string, events chan<- StreamEvent) {
	defer close(events)

	iter := s.model(personalSystemInstruction).GenerateContentStream(ctx, genai.Text(prompt))
	first := true
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			s.emit(ctx, events, StreamEvent{Type: StreamDone})
			return
		}
		if err != nil {
			s.log.Errorw("streaming completion failed", "error", err)
			s.emit(ctx, events, StreamEvent{Type: StreamError})
			return
		}

		chunk := responseText(resp)
		if chunk == "" {
			continue
		}
		chunk = formatStreamChunk(chunk, first)
		first = false
		if !s.emit(ctx, events, StreamEvent{Type: StreamToken, Token: chunk}) {
			return
		}
	}
}

// emit delivers one event unless the consumer is gone. Returns false when
// ctx was cancelled, which tells the producer loop to stop forwarding.
func (s *LLMService) emit(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		s.log.Debugw("stream consumer gone, dropping event", "type", ev.Type)
		return false
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

// formatStreamChunk reconstructs word spacing for a streamed chunk. The
// upstream token stream does not reliably delimit words, so every chunk
// after the first gets a leading space unless it already opens with
// whitespace or a markdown/punctuation control character.
func formatStreamChunk(chunk string, first bool) string {
	if !first && needsLeadingSpace(chunk) {
		return " " + chunk
	}
	return chunk
}

// needsLeadingSpace reports whether a streamed chunk should be prefixed
// with a space before delivery. Chunks that already begin with whitespace
// or with markdown/punctuation control characters are left untouched.
func needsLeadingSpace(chunk string) bool {
	if chunk == "" {
		return false
	}
	switch c := chunk[0]; {
	case c == ' ', c == '\t', c == '\n', c == '\r':
		return false
	case strings.IndexByte(".,!?;:-*#`[]()_~", c) >= 0:
		return false
	}
	return true
}
