package services

import (
	"context"
	"errors"
	"strings"

	"truthlens-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserExists   = errors.New("email already registered")
	ErrUserNotFound = errors.New("user not found")
)

// UserStore persists accounts and prediction votes in PostgreSQL.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Migrate() error {
	return s.db.AutoMigrate(&models.User{}, &models.Vote{})
}

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = "user"
	}
	err := s.db.WithContext(ctx).Create(user).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
		return ErrUserExists
	}
	return err
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SaveVote records or replaces the caller's vote on a prediction.
func (s *UserStore) SaveVote(ctx context.Context, vote *models.Vote) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "prediction_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "created_at"}),
	}).Create(vote).Error
}

type VoteTally struct {
	Up   int64 `json:"up"`
	Down int64 `json:"down"`
}

func (s *UserStore) Tally(ctx context.Context, predictionID string) (VoteTally, error) {
	var rows []struct {
		Value int
		Count int64
	}
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Select("value, count(*) as count").
		Where("prediction_id = ?", predictionID).
		Group("value").
		Scan(&rows).Error
	if err != nil {
		return VoteTally{}, err
	}

	var t VoteTally
	for _, r := range rows {
		switch {
		case r.Value > 0:
			t.Up += r.Count
		case r.Value < 0:
			t.Down += r.Count
		}
	}
	return t, nil
}

func (s *UserStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
