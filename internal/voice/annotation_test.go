package voice

import "testing"

func TestParseAnnotation(t *testing.T) {
	text, ann := ParseAnnotation(
		`What stood out in this chapter? [[meta:{"question_type":"probe","topic":"focus"}]]`)
	if text != "What stood out in this chapter?" {
		t.Errorf("text = %q", text)
	}
	if ann == nil {
		t.Fatal("expected annotation")
	}
	if ann.QuestionType != "probe" || ann.Topic != "focus" {
		t.Errorf("annotation = %+v", ann)
	}
}

func TestParseAnnotationWithChapter(t *testing.T) {
	_, ann := ParseAnnotation(
		`Let's dig in. [[meta:{"question_type":"broad","topic":"habits","chapter":4,"chapter_name":"Identity"}]]`)
	if ann == nil {
		t.Fatal("expected annotation")
	}
	if ann.ChapterNumber != 4 || ann.ChapterName != "Identity" {
		t.Errorf("chapter fields = %+v", ann)
	}
}

func TestParseAnnotationAbsent(t *testing.T) {
	text, ann := ParseAnnotation("Just a plain question?")
	if text != "Just a plain question?" {
		t.Errorf("text = %q", text)
	}
	if ann != nil {
		t.Errorf("expected nil annotation, got %+v", ann)
	}
}

func TestParseAnnotationMalformed(t *testing.T) {
	// A broken block is stripped but yields no metadata.
	text, ann := ParseAnnotation(`Question here. [[meta:{"question_type":}]]`)
	if text != "Question here." {
		t.Errorf("text = %q", text)
	}
	if ann != nil {
		t.Errorf("expected nil annotation for malformed block, got %+v", ann)
	}
}
