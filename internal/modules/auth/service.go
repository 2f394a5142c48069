package auth

import (
	"context"
	"errors"

	"sportclub/internal/domain/member"
	"sportclub/internal/logging"
)

// Service is the development identity provider: it registers members and
// exchanges credentials for a token carrying user id and role. Everything
// downstream only reads those two claims.
type Service struct {
	members MemberStore
	tokens  TokenIssuer
}

type LoginResult struct {
	Member      *member.Member
	AccessToken string
}

func NewService(members MemberStore, tokens TokenIssuer) *Service {
	return &Service{members: members, tokens: tokens}
}

// Register creates a pending member. An admin has to approve the account
// before it can log in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*member.Member, error) {
	hash, err := member.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	m := &member.Member{
		Email:        member.NormalizeEmail(req.Email),
		Name:         req.Name,
		PasswordHash: hash,
		Role:         member.RoleMember,
		Status:       member.StatusPending,
	}
	if err := s.members.Create(ctx, m); err != nil {
		if errors.Is(err, member.ErrEmailAlreadyExists) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	logging.Ctx(ctx).Info().Int64("user_id", m.ID).Msg("member registered")
	return m, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	m, err := s.members.GetByEmail(ctx, member.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, member.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if member.CheckPassword(req.Password, m.PasswordHash) != nil {
		return nil, ErrInvalidCredentials
	}

	switch m.Status {
	case member.StatusApproved:
	case member.StatusBlocked:
		return nil, ErrBlocked
	default:
		return nil, ErrPendingApproval
	}

	token, err := s.tokens.GenerateToken(m.ID, string(m.Role))
	if err != nil {
		return nil, err
	}
	return &LoginResult{Member: m, AccessToken: token}, nil
}

func (s *Service) Me(ctx context.Context, userID int64) (*member.Member, error) {
	return s.members.GetByID(ctx, userID)
}

func toPublic(m *member.Member) MemberPublic {
	return MemberPublic{
		ID:     m.ID,
		Email:  m.Email,
		Name:   m.Name,
		Role:   string(m.Role),
		Status: string(m.Status),
	}
}
