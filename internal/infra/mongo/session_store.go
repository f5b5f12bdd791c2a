package mongo

import (
	"context"
	"errors"
	"fmt"

	"quiztake-service/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SessionStore is the document-backed implementation of app.SessionStore.
// Field names match the collection layout this service inherited, so an
// existing sessions collection keeps working unchanged.
type SessionStore struct {
	col *mongo.Collection
}

func NewSessionStore(db *mongo.Database) *SessionStore {
	return &SessionStore{col: db.Collection("sessions")}
}

// EnsureIndexes creates the unique session-id index and the listing index.
func (s *SessionStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "startTime", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}},
		},
	})
	return err
}

type sessionDoc struct {
	SessionID  string `bson:"session"`
	Token      string `bson:"token"`
	Name       string `bson:"name,omitempty"`
	QuizID     string `bson:"quizId,omitempty"`
	UserID     string `bson:"userId,omitempty"`
	StartTime  int64  `bson:"startTime"`
	SubmitTime int64  `bson:"submitTime,omitempty"`
	Duration   int64  `bson:"duration,omitempty"`
	Score      int    `bson:"score,omitempty"`
	Answers    []*int `bson:"answers,omitempty"`
	IP         string `bson:"ip,omitempty"`
	UserAgent  string `bson:"userAgent,omitempty"`
	Suspicious bool   `bson:"suspicious,omitempty"`
}

func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	doc := sessionDoc{
		SessionID: session.SessionID,
		Token:     session.Token,
		Name:      session.Name,
		QuizID:    session.QuizID,
		UserID:    session.UserID,
		StartTime: session.StartTime,
		IP:        session.IP,
		UserAgent: session.UserAgent,
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	var doc sessionDoc
	err := s.col.FindOne(ctx, bson.M{"session": sessionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &domain.Session{
		SessionID:  doc.SessionID,
		Token:      doc.Token,
		Name:       doc.Name,
		QuizID:     doc.QuizID,
		UserID:     doc.UserID,
		StartTime:  doc.StartTime,
		SubmitTime: doc.SubmitTime,
		DurationMs: doc.Duration,
		Score:      doc.Score,
		Answers:    doc.Answers,
		IP:         doc.IP,
		UserAgent:  doc.UserAgent,
		Suspicious: doc.Suspicious,
	}, nil
}

// Finalize closes the session with a single conditional update: the filter
// only matches while submitTime is still absent, so of two racing submits
// exactly one observes MatchedCount == 1.
func (s *SessionStore) Finalize(ctx context.Context, sessionID string, fin domain.Finalization) error {
	filter := bson.M{
		"session":    sessionID,
		"submitTime": bson.M{"$exists": false},
	}
	update := bson.M{"$set": bson.M{
		"submitTime": fin.SubmitTime,
		"duration":   fin.DurationMs,
		"score":      fin.Score,
		"answers":    fin.Answers,
		"suspicious": fin.Suspicious,
	}}
	res, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("finalize session: %w", err)
	}
	if res.MatchedCount == 0 {
		count, err := s.col.CountDocuments(ctx, bson.M{"session": sessionID})
		if err != nil {
			return fmt.Errorf("finalize session recheck: %w", err)
		}
		if count == 0 {
			return domain.ErrSessionNotFound
		}
		return domain.ErrAlreadySubmitted
	}
	return nil
}

func (s *SessionStore) List(ctx context.Context, limit int) ([]domain.SessionSummary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "startTime", Value: -1}}).
		SetProjection(bson.M{
			"session": 1, "quizId": 1, "name": 1, "startTime": 1,
			"submitTime": 1, "duration": 1, "score": 1, "suspicious": 1,
		})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return decodeSummaries(ctx, cursor)
}

func (s *SessionStore) ListByUser(ctx context.Context, userID string) ([]domain.SessionSummary, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startTime", Value: -1}})
	cursor, err := s.col.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}
	return decodeSummaries(ctx, cursor)
}

func decodeSummaries(ctx context.Context, cursor *mongo.Cursor) ([]domain.SessionSummary, error) {
	defer cursor.Close(ctx)
	summaries := make([]domain.SessionSummary, 0)
	for cursor.Next(ctx) {
		var doc sessionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		summaries = append(summaries, domain.SessionSummary{
			SessionID:  doc.SessionID,
			QuizID:     doc.QuizID,
			Name:       doc.Name,
			StartTime:  doc.StartTime,
			SubmitTime: doc.SubmitTime,
			DurationMs: doc.Duration,
			Score:      doc.Score,
			Suspicious: doc.Suspicious,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return summaries, nil
}
