package schedule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sportclub/internal/database"
)

func strp(s string) *string { return &s }
func intp(n int) *int       { return &n }

// 2026-10-19 and 2026-10-26 are Mondays.
const (
	monday     = "2026-10-19"
	nextMonday = "2026-10-26"
)

func mondayClass() RecurringClass {
	return RecurringClass{
		ID: 1, Title: "Boxing", Instructor: strp("Aidar"), DayOfWeek: 1,
		StartTime: "18:00", EndTime: "19:00", MaxCapacity: 10, Active: true,
	}
}

func TestResolveOverridePrecedence(t *testing.T) {
	src := Sources{
		Classes: []RecurringClass{mondayClass()},
		Overrides: []DateOverride{{
			RecurringClassID: 1, Date: monday, MaxCapacity: intp(5), Instructor: strp("X"),
		}},
	}

	occs, err := Resolve(monday, src)
	require.NoError(t, err)
	require.Len(t, occs, 1)
	assert.Equal(t, 5, occs[0].MaxCapacity)
	assert.Equal(t, "X", occs[0].Instructor)
	assert.Equal(t, "18:00", occs[0].StartTime)
	assert.True(t, occs[0].IsSpecial)

	occs, err = Resolve(nextMonday, src)
	require.NoError(t, err)
	require.Len(t, occs, 1)
	assert.Equal(t, 10, occs[0].MaxCapacity)
	assert.Equal(t, "Aidar", occs[0].Instructor)
	assert.False(t, occs[0].IsSpecial)
}

func TestResolveCancelledOverrideSuppresses(t *testing.T) {
	src := Sources{
		Classes:   []RecurringClass{mondayClass()},
		Overrides: []DateOverride{{RecurringClassID: 1, Date: monday, IsCancelled: true}},
	}

	occs, err := Resolve(monday, src)
	require.NoError(t, err)
	assert.Empty(t, occs)

	_, status, err := Lookup(monday, RecurringRef(1), src)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, status)

	_, status, err = Lookup(nextMonday, RecurringRef(1), src)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, status)
}

func TestResolveNoOpOverrideStillSpecial(t *testing.T) {
	c := mondayClass()
	src := Sources{
		Classes: []RecurringClass{c},
		Overrides: []DateOverride{{
			RecurringClassID: 1, Date: monday,
			StartTime: strp(c.StartTime), EndTime: strp(c.EndTime), MaxCapacity: intp(c.MaxCapacity),
			Notes: "bring gloves",
		}},
	}
	occs, err := Resolve(monday, src)
	require.NoError(t, err)
	require.Len(t, occs, 1)
	assert.True(t, occs[0].IsSpecial)
	assert.Equal(t, "bring gloves", occs[0].Notes)
}

func TestResolveInstructorAssignments(t *testing.T) {
	src := Sources{
		Classes: []RecurringClass{mondayClass()},
		Assignments: []InstructorAssignment{
			{RecurringClassID: 1, Instructor: "Standing"},
			{RecurringClassID: 1, Date: strp(monday), Instructor: "Substitute"},
		},
	}

	occs, err := Resolve(monday, src)
	require.NoError(t, err)
	assert.Equal(t, "Substitute", occs[0].Instructor)
	assert.False(t, occs[0].IsSpecial)

	occs, err = Resolve(nextMonday, src)
	require.NoError(t, err)
	assert.Equal(t, "Standing", occs[0].Instructor)

	// an override without an instructor keeps the assigned one
	src.Overrides = []DateOverride{{RecurringClassID: 1, Date: monday, MaxCapacity: intp(3)}}
	occs, err = Resolve(monday, src)
	require.NoError(t, err)
	assert.Equal(t, "Substitute", occs[0].Instructor)
	assert.Equal(t, 3, occs[0].MaxCapacity)
}

func TestResolveMergesAndSorts(t *testing.T) {
	inactive := mondayClass()
	inactive.ID, inactive.Title, inactive.Active = 2, "Old Judo", false
	tuesday := mondayClass()
	tuesday.ID, tuesday.DayOfWeek = 3, 2
	early := mondayClass()
	early.ID, early.Title, early.StartTime, early.EndTime = 4, "Yoga", "07:00", "08:00"

	src := Sources{
		Classes: []RecurringClass{mondayClass(), inactive, tuesday, early},
		OneOffs: []OneOffOccurrence{
			{ID: 10, Title: "Open mat", Date: monday, StartTime: "18:00", EndTime: "20:00", MaxCapacity: 20, Enabled: true},
			{ID: 11, Title: "Seminar", Date: monday, StartTime: "12:00", EndTime: "14:00", MaxCapacity: 30, Enabled: true, Notes: "guest coach"},
			{ID: 12, Title: "Disabled", Date: monday, StartTime: "10:00", EndTime: "11:00", MaxCapacity: 5, Enabled: false},
			{ID: 13, Title: "Other day", Date: nextMonday, StartTime: "10:00", EndTime: "11:00", MaxCapacity: 5, Enabled: true},
		},
	}

	occs, err := Resolve(monday, src)
	require.NoError(t, err)
	require.Len(t, occs, 4)

	got := make([]string, 0, len(occs))
	for _, o := range occs {
		got = append(got, o.Ref.String())
	}
	assert.Equal(t, []string{"recurring:4", "oneoff:11", "recurring:1", "oneoff:10"}, got)
	assert.True(t, occs[1].IsSpecial)
	assert.False(t, occs[3].IsSpecial)
}

func TestResolveRejectsBadDate(t *testing.T) {
	_, err := Resolve("19.10.2026", Sources{})
	assert.Error(t, err)
}

func TestResolverReadsCurrentState(t *testing.T) {
	db, err := database.OpenInMemory(t.Name())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&RecurringClass{}, &DateOverride{}, &InstructorAssignment{}, &OneOffOccurrence{}))

	ctx := context.Background()
	repo := NewRepository(db)
	c := mondayClass()
	c.ID = 0
	require.NoError(t, repo.CreateClass(ctx, &c))

	resolver := NewResolver(repo)
	occs, err := resolver.ForDate(ctx, monday)
	require.NoError(t, err)
	require.Len(t, occs, 1)
	assert.Equal(t, 10, occs[0].MaxCapacity)

	require.NoError(t, repo.SaveOverride(ctx, &DateOverride{RecurringClassID: c.ID, Date: monday, MaxCapacity: intp(4)}))
	occs, err = resolver.ForDate(ctx, monday)
	require.NoError(t, err)
	assert.Equal(t, 4, occs[0].MaxCapacity)

	// saving again replaces rather than duplicating
	require.NoError(t, repo.SaveOverride(ctx, &DateOverride{RecurringClassID: c.ID, Date: monday, IsCancelled: true}))
	_, status, err := resolver.Find(ctx, monday, RecurringRef(c.ID))
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, status)

	overrides, err := repo.OverridesInRange(ctx, monday, monday)
	require.NoError(t, err)
	assert.Len(t, overrides, 1)

	all, err := resolver.ForRange(ctx, monday, nextMonday)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, nextMonday, all[0].Date)

	require.NoError(t, repo.SetClassActive(ctx, c.ID, false))
	_, status, err = resolver.Find(ctx, nextMonday, RecurringRef(c.ID))
	require.NoError(t, err)
	assert.Equal(t, StatusMissing, status)
}

func TestParseOccurrenceRef(t *testing.T) {
	ref, err := ParseOccurrenceRef("oneoff:5")
	require.NoError(t, err)
	assert.Equal(t, OneOffRef(5), ref)

	for _, bad := range []string{"", "5", "recurring:", "recurring:0", "class:3"} {
		_, err := ParseOccurrenceRef(bad)
		assert.ErrorIs(t, err, ErrInvalidRef, bad)
	}
}
