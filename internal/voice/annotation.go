package voice

import (
	"encoding/json/v2"
	"regexp"
	"strings"
)

// Annotation is structured metadata the assistant embeds in its own
// speech as an inline block: [[meta:{"question_type":"probe","topic":"focus"}]].
// The block is stripped before the question text is shown to anyone.
type Annotation struct {
	QuestionType  string `json:"question_type"`
	Topic         string `json:"topic"`
	ChapterNumber int    `json:"chapter,omitempty"`
	ChapterName   string `json:"chapter_name,omitempty"`
}

var annotationRe = regexp.MustCompile(`\[\[meta:(\{.*?\})\]\]`)

// ParseAnnotation extracts the first annotation block from assistant text
// and returns the text with all blocks removed. A malformed block is
// dropped rather than surfaced, the spoken text still matters.
func ParseAnnotation(text string) (string, *Annotation) {
	matches := annotationRe.FindStringSubmatch(text)
	cleaned := strings.TrimSpace(annotationRe.ReplaceAllString(text, ""))
	if matches == nil {
		return cleaned, nil
	}

	var a Annotation
	if err := json.Unmarshal([]byte(matches[1]), &a); err != nil {
		return cleaned, nil
	}
	return cleaned, &a
}
