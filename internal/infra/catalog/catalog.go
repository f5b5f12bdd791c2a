package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"quiztake-service/internal/domain"
)

// Store reads quiz definitions from a directory of JSON files, one quiz per
// "<id>.json" file. Files are read fresh per request; the TTL cache in front
// of the store decides how often that actually hits disk.
type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

// LoadQuiz reads and normalizes a single quiz file.
func (s *Store) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if !validQuizID(quizID) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	raw, err := os.ReadFile(filepath.Join(s.dir, quizID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, fmt.Errorf("read quiz file: %w", err)
	}
	return Decode(quizID, raw)
}

// ListQuizzes enumerates the catalog directory. Files that fail to decode
// are skipped rather than failing the whole listing.
func (s *Store) ListQuizzes(_ context.Context) ([]domain.QuizInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scan quiz directory: %w", err)
	}
	infos := make([]domain.QuizInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		quizID := strings.TrimSuffix(entry.Name(), ".json")
		raw, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		quiz, err := Decode(quizID, raw)
		if err != nil {
			continue
		}
		infos = append(infos, domain.QuizInfo{ID: quizID, Name: quiz.Name})
	}
	return infos, nil
}

// quizEnvelope is the wrapped form: {"name": ..., "questions": [...]}.
type quizEnvelope struct {
	Name      string            `json:"name"`
	Questions []json.RawMessage `json:"questions"`
}

// Decode normalizes raw quiz content into the canonical schema. Two shapes
// are accepted: a bare question array, or an object wrapping the array under
// a "questions" key with an optional display name. Anything else is a
// format error, not a guess.
func Decode(quizID string, raw []byte) (domain.Quiz, error) {
	quiz := domain.Quiz{ID: quizID, Name: quizID}

	var rawQuestions []json.RawMessage
	switch firstByte(raw) {
	case '[':
		if err := json.Unmarshal(raw, &rawQuestions); err != nil {
			return domain.Quiz{}, fmt.Errorf("%w: %s: %v", domain.ErrQuizFormat, quizID, err)
		}
	case '{':
		var envelope quizEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return domain.Quiz{}, fmt.Errorf("%w: %s: %v", domain.ErrQuizFormat, quizID, err)
		}
		if envelope.Questions == nil {
			return domain.Quiz{}, fmt.Errorf("%w: %s: object form requires a questions array", domain.ErrQuizFormat, quizID)
		}
		if envelope.Name != "" {
			quiz.Name = envelope.Name
		}
		rawQuestions = envelope.Questions
	default:
		return domain.Quiz{}, fmt.Errorf("%w: %s: expected array or object", domain.ErrQuizFormat, quizID)
	}

	quiz.Questions = make([]domain.Question, 0, len(rawQuestions))
	for i, rq := range rawQuestions {
		var question domain.Question
		if err := json.Unmarshal(rq, &question); err != nil {
			return domain.Quiz{}, fmt.Errorf("%w: %s: question %d: %v", domain.ErrQuizFormat, quizID, i, err)
		}
		if len(question.Options) == 0 {
			return domain.Quiz{}, fmt.Errorf("%w: %s: question %d has no options", domain.ErrQuizFormat, quizID, i)
		}
		if question.AnswerIndex < 0 || question.AnswerIndex >= len(question.Options) {
			return domain.Quiz{}, fmt.Errorf("%w: %s: question %d answer index %d out of range", domain.ErrQuizFormat, quizID, i, question.AnswerIndex)
		}
		quiz.Questions = append(quiz.Questions, question)
	}
	return quiz, nil
}

func firstByte(raw []byte) byte {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

// validQuizID rejects ids that could escape the catalog directory.
func validQuizID(quizID string) bool {
	if quizID == "" || quizID == "." || quizID == ".." {
		return false
	}
	return !strings.ContainsAny(quizID, "/\\")
}
