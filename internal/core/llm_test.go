package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestFormatStreamChunk_SpacingHeuristic(t *testing.T) {
	chunks := []string{"Hello", "world", "."}
	want := []string{"Hello", " world", "."}

	first := true
	for i, chunk := range chunks {
		got := formatStreamChunk(chunk, first)
		first = false
		assert.Equal(t, want[i], got, "chunk %d", i)
	}
}

func TestNeedsLeadingSpace(t *testing.T) {
	tests := []struct {
		chunk string
		want  bool
	}{
		{"world", true},
		{"Go", true},
		{" already spaced", false},
		{"\nnewline", false},
		{".", false},
		{", and", false},
		{"!", false},
		{"- list item", false},
		{"**bold**", false},
		{"## Header", false},
		{"`code`", false},
		{"(aside)", false},
		{"[link]", false},
		{"_emphasis_", false},
		{"~strike", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, needsLeadingSpace(tt.chunk), "chunk %q", tt.chunk)
	}
}

func TestEmit_DeliversToConsumer(t *testing.T) {
	svc := &LLMService{log: zaptest.NewLogger(t).Sugar()}
	events := make(chan StreamEvent, 1)

	ok := svc.emit(context.Background(), events, StreamEvent{Type: StreamToken, Token: "hi"})

	assert.True(t, ok)
	assert.Equal(t, StreamEvent{Type: StreamToken, Token: "hi"}, <-events)
}

func TestEmit_StopsWhenConsumerGone(t *testing.T) {
	svc := &LLMService{log: zaptest.NewLogger(t).Sugar()}
	// Unbuffered and never read from, as when the client disconnected and
	// the handler's range loop exited.
	events := make(chan StreamEvent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok := svc.emit(ctx, events, StreamEvent{Type: StreamToken, Token: "hi"})

	assert.False(t, ok, "a cancelled context must unblock the producer")
}
