package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quiztake-service/internal/domain"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// UserStore is the relational implementation of app.UserStore.
type UserStore struct {
	db *bun.DB
}

func NewUserStore(db *bun.DB) *UserStore {
	return &UserStore{db: db}
}

type userRow struct {
	bun.BaseModel `bun:"table:users"`

	ID         string `bun:"id,pk"`
	Username   string `bun:"username,notnull"`
	Password   string `bun:"password,notnull"`
	LoginToken string `bun:"login_token,nullzero"`
}

func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	row := &userRow{ID: user.ID, Username: user.Username, Password: user.Password}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.findOne(ctx, "username = ?", username)
}

func (s *UserStore) FindByLoginToken(ctx context.Context, token string) (*domain.User, error) {
	return s.findOne(ctx, "login_token = ?", token)
}

func (s *UserStore) SetLoginToken(ctx context.Context, userID, token string) error {
	res, err := s.db.NewUpdate().
		Model((*userRow)(nil)).
		Set("login_token = ?", token).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set login token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set login token result: %w", err)
	}
	if affected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) findOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	row := new(userRow)
	err := s.db.NewSelect().Model(row).Where(where, arg).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &domain.User{
		ID:         row.ID,
		Username:   row.Username,
		Password:   row.Password,
		LoginToken: row.LoginToken,
	}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}
