package auth

import (
	"context"

	"sportclub/internal/domain/member"
)

// MemberStore is the subset of the member repository the auth flow needs.
type MemberStore interface {
	Create(ctx context.Context, m *member.Member) error
	GetByEmail(ctx context.Context, email string) (*member.Member, error)
	GetByID(ctx context.Context, id int64) (*member.Member, error)
}

type TokenIssuer interface {
	GenerateToken(userID int64, role string) (string, error)
}
