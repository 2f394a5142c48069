package member

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleMember  Role = "member"
	RoleTrainer Role = "trainer"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleMember || r == RoleTrainer || r == RoleAdmin
}

// IsStaff reports whether the role may run roster and attendance operations.
func (r Role) IsStaff() bool {
	return r == RoleTrainer || r == RoleAdmin
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusBlocked  Status = "blocked"
)

type Member struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	Name         string    `json:"name" gorm:"type:varchar(120);not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(100);not null"`
	Role         Role      `json:"role" gorm:"type:varchar(16);not null"`
	Status       Status    `json:"status" gorm:"type:varchar(16);not null;index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Member) TableName() string { return "members" }

// HashPassword hashes a plain password string
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plain password with a hash
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID int64
	Role   Role
}
