package vapi

import (
	"fmt"

	"github.com/readingcompanion/companion-server/internal/voice"
)

// callRequest is the body of POST /call.
type callRequest struct {
	Assistant assistant         `json:"assistant"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// callResponse is the subset of the call object we care about.
type callResponse struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

// controlRequest steers a live call.
type controlRequest struct {
	Type string `json:"type"`
}

type assistant struct {
	FirstMessageMode string      `json:"firstMessageMode"`
	Transcriber      transcriber `json:"transcriber"`
	Model            model       `json:"model"`
	Voice            voiceConfig `json:"voice"`
	ServerURL        string      `json:"serverUrl,omitempty"`
}

type transcriber struct {
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	Endpointing int    `json:"endpointing"`
}

type model struct {
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type voiceConfig struct {
	Provider string  `json:"provider"`
	VoiceID  string  `json:"voiceId"`
	Speed    float64 `json:"speed"`
}

const systemPromptFormat = `You are a concise coach for helping people reflect on Nonfiction books they are reading. The reader is currently working through %q%s%s. Ask one short question at a time about what they just read, wait for their answer, then follow up or move on. Keep questions under two sentences. Embed [[meta:{"question_type":"...","topic":"..."}]] at the end of each question you ask.`

// assistantConfig builds the coach assistant for a specific book.
func assistantConfig(opts voice.CallOptions) assistant {
	var byAuthor, onChapter string
	if opts.Author != "" {
		byAuthor = " by " + opts.Author
	}
	if opts.ChapterNumber > 0 {
		onChapter = fmt.Sprintf(", around chapter %d", opts.ChapterNumber)
	}

	return assistant{
		FirstMessageMode: "assistant-speaks-first",
		Transcriber: transcriber{
			Provider:    "deepgram",
			Model:       "nova-3",
			Endpointing: 300,
		},
		Model: model{
			Provider:    "openai",
			Model:       "gpt-4o",
			Temperature: 0.3,
			Messages: []message{
				{
					Role:    "system",
					Content: fmt.Sprintf(systemPromptFormat, opts.BookTitle, byAuthor, onChapter),
				},
			},
		},
		Voice: voiceConfig{
			Provider: "playht",
			VoiceID:  "michael",
			Speed:    0.88,
		},
	}
}
