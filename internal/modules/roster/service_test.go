package roster

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	bookingdomain "sportclub/internal/domain/booking"
	"sportclub/internal/domain/member"
	"sportclub/internal/domain/schedule"
	"sportclub/internal/pkg/apperr"
)

type fakeBookings struct {
	list []bookingdomain.Booking
}

func (f fakeBookings) BookingsForDate(_ context.Context, actor member.Actor, _ string) ([]bookingdomain.Booking, error) {
	if !actor.Role.IsStaff() {
		return nil, apperr.ErrForbidden
	}
	return f.list, nil
}

type fakeSchedule []schedule.EffectiveOccurrence

func (f fakeSchedule) ResolveSchedule(context.Context, string) ([]schedule.EffectiveOccurrence, error) {
	return f, nil
}

type fakeMembers map[int64]member.Member

func (f fakeMembers) GetMany(_ context.Context, ids []int64) (map[int64]member.Member, error) {
	out := map[int64]member.Member{}
	for _, id := range ids {
		if m, ok := f[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func newService() *Service {
	yes := true
	return NewService(
		fakeBookings{list: []bookingdomain.Booking{
			{ID: 1, UserID: 10, OccurrenceKey: "recurring:1", Status: bookingdomain.StatusConfirmed, Attended: &yes},
			{ID: 2, UserID: 11, OccurrenceKey: "recurring:1", Status: bookingdomain.StatusCancelled},
			{ID: 3, UserID: 12, OccurrenceKey: "oneoff:9", Status: bookingdomain.StatusCancelled},
		}},
		fakeSchedule{
			{Ref: schedule.RecurringRef(1), Title: "Boxing", StartTime: "18:00", EndTime: "19:00", MaxCapacity: 10},
			{Ref: schedule.RecurringRef(2), Title: "Yoga", StartTime: "20:00", EndTime: "21:00", MaxCapacity: 8},
		},
		fakeMembers{
			10: {ID: 10, Name: "Zoe", Email: "zoe@club.test"},
			11: {ID: 11, Name: "Adam", Email: "adam@club.test"},
			12: {ID: 12, Name: "Bea", Email: "bea@club.test"},
		},
	)
}

var trainer = member.Actor{UserID: 1, Role: member.RoleTrainer}

func TestBuildGroupsByOccurrence(t *testing.T) {
	r, err := newService().Build(context.Background(), trainer, "2026-10-19")
	require.NoError(t, err)
	require.Len(t, r.Blocks, 3)

	boxing := r.Blocks[0]
	assert.Equal(t, "recurring:1", boxing.Ref)
	require.Len(t, boxing.Lines, 2)
	assert.Equal(t, "Zoe", boxing.Lines[0].Name, "confirmed lines come first")
	assert.Equal(t, "Adam", boxing.Lines[1].Name)

	assert.Empty(t, r.Blocks[1].Lines)

	orphan := r.Blocks[2]
	assert.Equal(t, "oneoff:9", orphan.Ref)
	assert.True(t, orphan.IsCancelled)
	require.Len(t, orphan.Lines, 1)
}

func TestBuildRequiresStaff(t *testing.T) {
	_, err := newService().Build(context.Background(), member.Actor{UserID: 5, Role: member.RoleMember}, "2026-10-19")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestExportXLSX(t *testing.T) {
	data, err := newService().ExportXLSX(context.Background(), trainer, "2026-10-19")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"2026-10-19"}, f.GetSheetList())
	rows, err := f.GetRows("2026-10-19")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 4)
	assert.Contains(t, rows[0][0], "Boxing")
	assert.Equal(t, []string{"Name", "Email", "Status", "Attended"}, rows[1])
	assert.Equal(t, []string{"Zoe", "zoe@club.test", "confirmed", "yes"}, rows[2])
}
