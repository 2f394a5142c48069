package member

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"sportclub/internal/database"
)

var (
	ErrNotFound           = errors.New("member: not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func (r *Repository) Create(ctx context.Context, m *Member) error {
	m.Email = NormalizeEmail(m.Email)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrEmailAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Member, error) {
	var m Member
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*Member, error) {
	var m Member
	if err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// GetMany returns members keyed by id. Missing ids are absent from the map.
func (r *Repository) GetMany(ctx context.Context, ids []int64) (map[int64]Member, error) {
	out := make(map[int64]Member, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []Member
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, m := range rows {
		out[m.ID] = m
	}
	return out, nil
}

func (r *Repository) ListByStatus(ctx context.Context, status Status) ([]Member, error) {
	var out []Member
	err := r.db.WithContext(ctx).Where("status = ?", status).Order("created_at, id").Find(&out).Error
	return out, err
}

func (r *Repository) ListApprovedIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&Member{}).
		Where("status = ?", StatusApproved).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *Repository) SetStatus(ctx context.Context, id int64, status Status) error {
	res := r.db.WithContext(ctx).Model(&Member{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
