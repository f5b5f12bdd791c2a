package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"quiztake-service/internal/domain"
)

func TestLoadQuizBareArray(t *testing.T) {
	dir := t.TempDir()
	writeQuizFile(t, dir, "general.json", `[
		{"question": "What is 2 + 2?", "options": ["3", "4"], "answerIndex": 1},
		{"question": "Capital of France?", "options": ["Paris", "Lyon"], "answerIndex": 0, "explanation": "Since 508."}
	]`)

	quiz, err := New(dir).LoadQuiz(context.Background(), "general")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if quiz.ID != "general" || quiz.Name != "general" {
		t.Fatalf("bare array must fall back to id as name, got %+v", quiz)
	}
	if len(quiz.Questions) != 2 || quiz.Questions[0].AnswerIndex != 1 {
		t.Fatalf("unexpected questions %+v", quiz.Questions)
	}
	if quiz.Questions[1].Explanation == "" {
		t.Fatalf("explanation dropped")
	}
}

func TestLoadQuizEnvelope(t *testing.T) {
	dir := t.TempDir()
	writeQuizFile(t, dir, "general.json", `{
		"name": "General Knowledge",
		"questions": [{"question": "Q", "options": ["a", "b"], "answerIndex": 0}]
	}`)

	quiz, err := New(dir).LoadQuiz(context.Background(), "general")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if quiz.Name != "General Knowledge" || len(quiz.Questions) != 1 {
		t.Fatalf("unexpected quiz %+v", quiz)
	}
}

func TestLoadQuizRejectsBadContent(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"scalar.json":       `42`,
		"no-questions.json": `{"name": "x"}`,
		"bad-index.json":    `[{"question": "Q", "options": ["a"], "answerIndex": 3}]`,
		"no-options.json":   `[{"question": "Q", "options": [], "answerIndex": 0}]`,
		"not-json.json":     `{{{`,
	}
	store := New(dir)
	for file, content := range cases {
		writeQuizFile(t, dir, file, content)
		quizID := file[:len(file)-len(".json")]
		if _, err := store.LoadQuiz(context.Background(), quizID); !errors.Is(err, domain.ErrQuizFormat) {
			t.Fatalf("%s: expected ErrQuizFormat, got %v", file, err)
		}
	}
}

func TestLoadQuizMissingAndTraversal(t *testing.T) {
	store := New(t.TempDir())

	if _, err := store.LoadQuiz(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
	for _, id := range []string{"", "..", "../etc/passwd", "a/b", `a\b`} {
		if _, err := store.LoadQuiz(context.Background(), id); !errors.Is(err, domain.ErrQuizNotFound) {
			t.Fatalf("id %q: expected ErrQuizNotFound, got %v", id, err)
		}
	}
}

func TestListQuizzesSkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	writeQuizFile(t, dir, "good.json", `{"name": "Good", "questions": [{"question": "Q", "options": ["a"], "answerIndex": 0}]}`)
	writeQuizFile(t, dir, "broken.json", `{{{`)
	writeQuizFile(t, dir, "notes.txt", `not a quiz`)

	infos, err := New(dir).ListQuizzes(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "good" || infos[0].Name != "Good" {
		t.Fatalf("unexpected listing %+v", infos)
	}
}

func writeQuizFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
