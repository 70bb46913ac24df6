package domain

import "fmt"

// NoteTags builds the deterministic tag set for a note. Order is fixed:
// book title, author, chapter, question type, topic. Empty parts fall
// back to "Question" and "General" so every note carries a full set.
func NoteTags(bookTitle, author string, chapterNumber int, questionType, topic string) []string {
	var tags []string
	if bookTitle != "" {
		tags = append(tags, bookTitle)
	}
	if author != "" {
		tags = append(tags, author)
	}
	if chapterNumber > 0 {
		tags = append(tags, fmt.Sprintf("Ch %d", chapterNumber))
	}
	if questionType != "" {
		tags = append(tags, questionType)
	} else {
		tags = append(tags, "Question")
	}
	if topic != "" {
		tags = append(tags, topic)
	} else {
		tags = append(tags, "General")
	}
	return tags
}
