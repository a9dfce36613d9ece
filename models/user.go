package models

import "time"

type User struct {
	ID        uint      `gorm:"column:id;primaryKey" json:"id"`
	Email     string    `gorm:"column:email;uniqueIndex;size:255;not null" json:"email"`
	Password  string    `gorm:"column:password_hash;not null" json:"-"`
	Role      string    `gorm:"column:role;default:user" json:"role"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (User) TableName() string { return "users" }

// Vote is a user's thumbs up (+1) or down (-1) on a stored prediction.
type Vote struct {
	UserID       uint      `gorm:"column:user_id;primaryKey" json:"user_id"`
	PredictionID string    `gorm:"column:prediction_id;primaryKey;size:64" json:"prediction_id"`
	Value        int       `gorm:"column:value;not null" json:"value"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Vote) TableName() string { return "votes" }
