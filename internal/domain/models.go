package domain

// Question is a single multiple-choice question. AnswerIndex points into
// Options and must satisfy 0 <= AnswerIndex < len(Options).
type Question struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answerIndex"`
	Explanation string   `json:"explanation,omitempty"`
}

// Quiz is an ordered, immutable collection of questions.
type Quiz struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// QuizInfo is the catalog-listing view of a quiz.
type QuizInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Session records one attempt at one quiz. SubmitTime is zero until the
// session is finalized; its presence is the sole source of truth for
// "already submitted". Times are epoch milliseconds of the server clock.
// Answers entries are nil where the question was left unanswered or the
// submitted value was not numeric; nil never scores.
type Session struct {
	SessionID  string `json:"session"`
	Token      string `json:"-"`
	QuizID     string `json:"quizId"`
	UserID     string `json:"userId,omitempty"`
	Name       string `json:"name,omitempty"`
	StartTime  int64  `json:"startTime"`
	SubmitTime int64  `json:"submitTime,omitempty"`
	DurationMs int64  `json:"duration,omitempty"`
	Answers    []*int `json:"answers,omitempty"`
	Score      int    `json:"score"`
	Suspicious bool   `json:"suspicious"`
	IP         string `json:"-"`
	UserAgent  string `json:"-"`
}

// Submitted reports whether the session has been finalized.
func (s *Session) Submitted() bool { return s.SubmitTime != 0 }

// StartedSession is what Start hands back to the client: the lookup id, the
// owner secret, and the server clock at creation.
type StartedSession struct {
	SessionID string `json:"session"`
	Token     string `json:"token"`
	StartTime int64  `json:"startTime"`
	Name      string `json:"name"`
}

// SessionStatus is the read-only resume probe. Only TokenValid depends on
// the caller supplying the right token; existence and submission state are
// visible from the session id alone.
type SessionStatus struct {
	Exists     bool   `json:"exists"`
	Name       string `json:"name,omitempty"`
	StartTime  int64  `json:"startTime,omitempty"`
	Submitted  bool   `json:"submitted"`
	SubmitTime int64  `json:"submitTime,omitempty"`
	DurationMs int64  `json:"duration,omitempty"`
	Score      int    `json:"score,omitempty"`
	Suspicious bool   `json:"suspicious,omitempty"`
	TokenValid bool   `json:"token_valid"`
}

// SubmitResult is the outcome of finalizing a session.
type SubmitResult struct {
	Score      int    `json:"score"`
	Total      int    `json:"total"`
	DurationMs int64  `json:"durationMs"`
	Suspicious bool   `json:"suspicious"`
	Name       string `json:"name"`
}

// Finalization carries the write-once fields applied when a session closes.
// Stores must apply it atomically, guarded on SubmitTime still being absent.
type Finalization struct {
	SubmitTime int64
	DurationMs int64
	Score      int
	Answers    []*int
	Suspicious bool
}

// SessionSummary is the listing view used by the admin results endpoint and
// the live results feed.
type SessionSummary struct {
	SessionID  string `json:"session"`
	QuizID     string `json:"quizId,omitempty"`
	Name       string `json:"name,omitempty"`
	StartTime  int64  `json:"startTime"`
	SubmitTime int64  `json:"submitTime,omitempty"`
	DurationMs int64  `json:"duration,omitempty"`
	Score      int    `json:"score"`
	Suspicious bool   `json:"suspicious"`
}

// Summary derives the listing view of a session.
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		SessionID:  s.SessionID,
		QuizID:     s.QuizID,
		Name:       s.Name,
		StartTime:  s.StartTime,
		SubmitTime: s.SubmitTime,
		DurationMs: s.DurationMs,
		Score:      s.Score,
		Suspicious: s.Suspicious,
	}
}

// User is an optional account a session can be linked to. The password is
// stored and compared verbatim, matching the system this replaces; nothing
// here should be mistaken for real authentication.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Password   string `json:"-"`
	LoginToken string `json:"-"`
}

// ClientMeta is informational request metadata recorded on the session.
type ClientMeta struct {
	IP        string
	UserAgent string
}
