package services

import (
	"context"
	"errors"
	"testing"

	"truthlens-api/models"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockUserStore(t *testing.T) (*UserStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm open: %v", err)
	}
	return NewUserStore(gdb), mock
}

func TestUserStoreCreate(t *testing.T) {
	store, mock := newMockUserStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	user := models.User{Email: "  Reader@Example.COM ", Password: "hash"}
	if err := store.Create(context.Background(), &user); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.ID != 7 || user.Email != "reader@example.com" || user.Role != "user" {
		t.Errorf("user = %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUserStoreCreateDuplicate(t *testing.T) {
	store, mock := newMockUserStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users"`).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_users_email"`))
	mock.ExpectRollback()

	err := store.Create(context.Background(), &models.User{Email: "a@b.kz", Password: "hash"})
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("err = %v, want ErrUserExists", err)
	}
}

func TestUserStoreFindByEmail(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		store, mock := newMockUserStore(t)
		mock.ExpectQuery(`FROM "users"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role"}).
				AddRow(3, "a@b.kz", "hash", "user"))

		user, err := store.FindByEmail(context.Background(), "A@B.kz")
		if err != nil {
			t.Fatalf("FindByEmail: %v", err)
		}
		if user.ID != 3 || user.Password != "hash" {
			t.Errorf("user = %+v", user)
		}
	})

	t.Run("missing", func(t *testing.T) {
		store, mock := newMockUserStore(t)
		mock.ExpectQuery(`FROM "users"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role"}))

		if _, err := store.FindByEmail(context.Background(), "nobody@b.kz"); !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("err = %v, want ErrUserNotFound", err)
		}
	})
}

func TestUserStoreTally(t *testing.T) {
	store, mock := newMockUserStore(t)
	mock.ExpectQuery(`FROM "votes"`).
		WillReturnRows(sqlmock.NewRows([]string{"value", "count"}).
			AddRow(1, 3).
			AddRow(-1, 2))

	tally, err := store.Tally(context.Background(), "prediction_1_abcdef")
	if err != nil {
		t.Fatalf("Tally: %v", err)
	}
	if tally.Up != 3 || tally.Down != 2 {
		t.Errorf("tally = %+v", tally)
	}
}

func TestUserStorePing(t *testing.T) {
	store, _ := newMockUserStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
