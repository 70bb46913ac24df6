package vapi

import (
	"context"
	"encoding/json/v2"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readingcompanion/companion-server/internal/logger"
	"github.com/readingcompanion/companion-server/internal/voice"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", logger.New(logger.Config{Writer: io.Discard, Format: "pretty"}))
}

func TestStart(t *testing.T) {
	var got callRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/call", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.UnmarshalRead(r.Body, &got))
		_, _ = w.Write([]byte(`{"id": "call-123", "status": "queued"}`))
	})

	callID, err := c.Start(context.Background(), voice.CallOptions{
		ConversationID: "conv-1",
		BookTitle:      "Deep Work",
		Author:         "Cal Newport",
		ChapterNumber:  3,
		WebhookURL:     "https://example.com/hooks",
	})
	require.NoError(t, err)
	assert.Equal(t, "call-123", callID)

	a := got.Assistant
	assert.Equal(t, "assistant-speaks-first", a.FirstMessageMode)
	assert.Equal(t, "deepgram", a.Transcriber.Provider)
	assert.Equal(t, "nova-3", a.Transcriber.Model)
	assert.Equal(t, 300, a.Transcriber.Endpointing)
	assert.Equal(t, "gpt-4o", a.Model.Model)
	assert.InDelta(t, 0.3, a.Model.Temperature, 0.001)
	assert.Equal(t, "playht", a.Voice.Provider)
	assert.Equal(t, "michael", a.Voice.VoiceID)
	assert.InDelta(t, 0.88, a.Voice.Speed, 0.001)
	assert.Equal(t, "https://example.com/hooks", a.ServerURL)
	assert.Equal(t, "conv-1", got.Metadata["conversationId"])

	require.NotEmpty(t, a.Model.Messages)
	assert.Contains(t, a.Model.Messages[0].Content, "Deep Work")
	assert.Contains(t, a.Model.Messages[0].Content, "Cal Newport")
	assert.Contains(t, a.Model.Messages[0].Content, "chapter 3")
}

func TestStopAndMute(t *testing.T) {
	var controls []string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/call/call-123/control", r.URL.Path)
		var req controlRequest
		require.NoError(t, json.UnmarshalRead(r.Body, &req))
		controls = append(controls, req.Type)
		w.WriteHeader(http.StatusOK)
	})

	ctx := context.Background()
	require.NoError(t, c.SetMuted(ctx, "call-123", true))
	require.NoError(t, c.SetMuted(ctx, "call-123", false))
	require.NoError(t, c.Stop(ctx, "call-123"))

	assert.Equal(t, []string{"mute-customer", "unmute-customer", "end-call"}, controls)
}

func TestStartUpstreamError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "bad key"}`))
	})

	_, err := c.Start(context.Background(), voice.CallOptions{BookTitle: "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
