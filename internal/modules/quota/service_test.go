package quota

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sportclub/internal/database"
	"sportclub/internal/database/migrate"
	"sportclub/internal/domain/audit"
	"sportclub/internal/domain/member"
	"sportclub/internal/domain/quota"
	"sportclub/internal/pkg/apperr"
)

type fixture struct {
	svc     *Service
	quotas  *quota.Repository
	members *member.Repository
	audit   *audit.Repository
	admin   member.Actor
	ctx     context.Context
	seq     int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenInMemory(name)
	require.NoError(t, err)
	require.NoError(t, migrate.Run(db))

	f := &fixture{
		quotas:  quota.NewRepository(db, 12),
		members: member.NewRepository(db),
		audit:   audit.NewRepository(db),
		ctx:     context.Background(),
	}
	f.svc = NewService(db, f.quotas, nil, time.UTC)
	f.svc.SetClock(func() time.Time { return time.Date(2026, 10, 31, 23, 30, 0, 0, time.UTC) })
	f.admin = member.Actor{UserID: f.member(t, member.RoleAdmin, member.StatusApproved), Role: member.RoleAdmin}
	return f
}

func (f *fixture) member(t *testing.T, role member.Role, status member.Status) int64 {
	t.Helper()
	f.seq++
	m := &member.Member{Email: fmt.Sprintf("m%d@club.test", f.seq), Name: "M", PasswordHash: "x", Role: role, Status: status}
	require.NoError(t, f.members.Create(f.ctx, m))
	return m.ID
}

func TestGetOrCreateUsesDefaultMax(t *testing.T) {
	f := newFixture(t)
	id := f.member(t, member.RoleMember, member.StatusApproved)

	q, err := f.svc.GetOrCreateMonthlyQuota(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10, q.Month)
	assert.Equal(t, 2026, q.Year)
	assert.Equal(t, 12, q.RemainingClasses)
	assert.Equal(t, 12, q.MaxMonthlyClasses)
}

func TestAdjustMonthlyQuota(t *testing.T) {
	f := newFixture(t)
	id := f.member(t, member.RoleMember, member.StatusApproved)

	q, err := f.svc.AdjustMonthlyQuota(f.ctx, f.admin, id, 3, "bonus")
	require.NoError(t, err)
	assert.Equal(t, 15, q.RemainingClasses)

	_, err = f.svc.AdjustMonthlyQuota(f.ctx, f.admin, id, -16, "too much")
	p, ok := apperr.AsPolicy(err)
	require.True(t, ok)
	assert.Equal(t, "quota_would_be_negative", p.Code)

	q, err = f.svc.GetOrCreateMonthlyQuota(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 15, q.RemainingClasses)

	_, err = f.svc.AdjustMonthlyQuota(f.ctx, f.admin, id, 0, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	entries, err := f.audit.List(f.ctx, audit.ActionQuotaAdjust, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAdjustRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	id := f.member(t, member.RoleMember, member.StatusApproved)
	trainer := member.Actor{UserID: f.member(t, member.RoleTrainer, member.StatusApproved), Role: member.RoleTrainer}

	_, err := f.svc.AdjustMonthlyQuota(f.ctx, trainer, id, 1, "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.ResetMonthlyQuota(f.ctx, trainer, id, 5, 5)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestAdjustUnknownMember(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AdjustMonthlyQuota(f.ctx, f.admin, 9999, 1, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestResetMonthlyQuota(t *testing.T) {
	f := newFixture(t)
	id := f.member(t, member.RoleMember, member.StatusApproved)

	q, err := f.svc.ResetMonthlyQuota(f.ctx, f.admin, id, 4, 8)
	require.NoError(t, err)
	assert.Equal(t, 4, q.RemainingClasses)
	assert.Equal(t, 8, q.MaxMonthlyClasses)

	entries, err := f.svc.ListEntries(f.ctx, f.admin, id, f.svc.CurrentPeriod())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, -8, entries[0].Delta)
	assert.Equal(t, quota.KindReset, entries[0].Kind)

	_, err = f.svc.ResetMonthlyQuota(f.ctx, f.admin, id, -1, 8)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRolloverCarriesMaxAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := f.member(t, member.RoleMember, member.StatusApproved)
	b := f.member(t, member.RoleMember, member.StatusApproved)
	pending := f.member(t, member.RoleMember, member.StatusPending)

	_, err := f.svc.ResetMonthlyQuota(f.ctx, f.admin, a, 1, 20)
	require.NoError(t, err)

	res, err := f.svc.AdvanceAllToNextMonth(f.ctx, f.admin.UserID)
	require.NoError(t, err)
	assert.Equal(t, quota.Period{Month: 11, Year: 2026}, res.Period)
	assert.Equal(t, 3, res.Members)
	assert.Equal(t, 3, res.Created)

	next := quota.Period{Month: 11, Year: 2026}
	qa, err := f.quotas.Get(f.ctx, a, next)
	require.NoError(t, err)
	assert.Equal(t, 20, qa.RemainingClasses)
	assert.Equal(t, 20, qa.MaxMonthlyClasses)

	qb, err := f.quotas.Get(f.ctx, b, next)
	require.NoError(t, err)
	assert.Equal(t, 12, qb.RemainingClasses)

	_, err = f.quotas.Get(f.ctx, pending, next)
	assert.ErrorIs(t, err, quota.ErrNotFound)

	res, err = f.svc.AdvanceAllToNextMonth(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)

	entries, err := f.quotas.Entries(f.ctx, a, next)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, quota.KindRollover, entries[0].Kind)
}

func TestRolloverAcrossYearEnd(t *testing.T) {
	f := newFixture(t)
	f.member(t, member.RoleMember, member.StatusApproved)
	f.svc.SetClock(func() time.Time { return time.Date(2026, 12, 15, 12, 0, 0, 0, time.UTC) })

	res, err := f.svc.AdvanceAllToNextMonth(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, quota.Period{Month: 1, Year: 2027}, res.Period)
}

func TestListEntriesOwnership(t *testing.T) {
	f := newFixture(t)
	a := f.member(t, member.RoleMember, member.StatusApproved)
	b := f.member(t, member.RoleMember, member.StatusApproved)

	_, err := f.svc.ListEntries(f.ctx, member.Actor{UserID: b, Role: member.RoleMember}, a, f.svc.CurrentPeriod())
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.ListEntries(f.ctx, member.Actor{UserID: a, Role: member.RoleMember}, a, quota.Period{Month: 13, Year: 2026})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
