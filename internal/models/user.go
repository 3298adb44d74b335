package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// User is the identity resolved from Casdoor; it is not stored locally.
type User struct {
	ID        string   `json:"id"`
	FullName  string   `json:"full_name"`
	Email     string   `json:"email"`
	Role      UserRole `json:"role"`
	AvatarURL *string  `json:"avatar_url,omitempty"`
}

func (u *User) IsStaff() bool {
	return u.Role == RoleTeacher || u.Role == RoleAdmin
}

// Student is the local profile that links a Casdoor user to exam attempts.
type Student struct {
	ID              uint   `json:"id" gorm:"primaryKey"`
	UserID          string `json:"user_id" gorm:"not null;uniqueIndex;size:255"`
	AdmissionNumber string `json:"admission_number" gorm:"not null;uniqueIndex;size:50"`
	FullName        string `json:"full_name" gorm:"not null;size:100"`
	ClassName       string `json:"class_name" gorm:"size:50;index"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Student) TableName() string {
	return "students"
}
