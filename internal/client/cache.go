package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// SessionRecord is the locally persisted identity of an in-progress attempt.
// StartTime is the client's own clock in epoch milliseconds; it only matters
// when the server cannot be reached.
type SessionRecord struct {
	SessionID        string `json:"sessionId"`
	Token            string `json:"token"`
	QuizID           string `json:"quizId"`
	StartTime        int64  `json:"startTime"`
	TotalTimeSeconds int    `json:"totalTimeSeconds"`
}

type cacheFile struct {
	Session *SessionRecord    `json:"session,omitempty"`
	Name    string            `json:"name,omitempty"`
	Answers map[string][]*int `json:"answers,omitempty"`
}

// Cache mirrors attempt state to a single JSON file so a crashed or closed
// client can offer to resume. Writes are read-modify-write under a mutex;
// answer saves are best-effort and never interrupt the attempt.
type Cache struct {
	mu   sync.Mutex
	path string
}

func NewCache(path string) *Cache {
	return &Cache{path: path}
}

func (c *Cache) PersistSession(rec SessionRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.read()
	f.Session = &rec
	return c.write(f)
}

func (c *Cache) LoadSession() (SessionRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.read()
	if f.Session == nil {
		return SessionRecord{}, false
	}
	return *f.Session, true
}

func (c *Cache) ClearSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.read()
	f.Session = nil
	_ = c.write(f)
}

// SaveAnswers records the answer sheet for a quiz. Persistence failures are
// swallowed: losing the mirror must never break the attempt itself.
func (c *Cache) SaveAnswers(quizID string, answers []*int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.read()
	if f.Answers == nil {
		f.Answers = make(map[string][]*int)
	}
	f.Answers[quizID] = append([]*int(nil), answers...)
	_ = c.write(f)
}

// LoadAnswers returns the cached sheet for a quiz only when its length still
// matches the quiz. A mismatch means the quiz changed since the save, and a
// misaligned sheet is worse than an empty one.
func (c *Cache) LoadAnswers(quizID string, questionCount int) ([]*int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.read()
	answers, ok := f.Answers[quizID]
	if !ok || len(answers) != questionCount {
		return nil, false
	}
	return append([]*int(nil), answers...), true
}

func (c *Cache) ClearAnswers(quizID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.read()
	delete(f.Answers, quizID)
	_ = c.write(f)
}

func (c *Cache) SaveName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.read()
	f.Name = name
	_ = c.write(f)
}

func (c *Cache) LoadName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read().Name
}

// ClearAll wipes the mirror. Called after a confirmed server-side submit,
// when the server record becomes the single source of truth.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = os.Remove(c.path)
}

func (c *Cache) read() cacheFile {
	var f cacheFile
	data, err := os.ReadFile(c.path)
	if err != nil {
		return f
	}
	_ = json.Unmarshal(data, &f)
	return f
}

func (c *Cache) write(f cacheFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(c.path, data, 0o644)
}
