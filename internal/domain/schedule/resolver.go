package schedule

import (
	"context"
	"fmt"
	"sort"

	"sportclub/internal/pkg/caltime"
)

// Sources is the stored state the resolver merges for one or more dates.
type Sources struct {
	Classes     []RecurringClass
	Overrides   []DateOverride
	Assignments []InstructorAssignment
	OneOffs     []OneOffOccurrence
}

// Status of a single reference on a date.
type Status int

const (
	StatusMissing Status = iota
	StatusCancelled
	StatusActive
)

// Resolve merges the schedule sources into the occurrences bookable on date.
// Precedence for a recurring class: a cancelling override suppresses it, any
// other override replaces the fields it sets, and otherwise the template is
// used with the instructor assignment applied. Enabled one-offs are added
// as-is. The result is ordered by start time, then title.
func Resolve(date string, src Sources) ([]EffectiveOccurrence, error) {
	dow, err := caltime.Weekday(date)
	if err != nil {
		return nil, err
	}

	overrides := make(map[int64]*DateOverride, len(src.Overrides))
	for i := range src.Overrides {
		o := &src.Overrides[i]
		if o.Date == date {
			overrides[o.RecurringClassID] = o
		}
	}
	dated := make(map[int64]string)
	standing := make(map[int64]string)
	for _, a := range src.Assignments {
		switch {
		case a.Date == nil:
			standing[a.RecurringClassID] = a.Instructor
		case *a.Date == date:
			dated[a.RecurringClassID] = a.Instructor
		}
	}

	out := make([]EffectiveOccurrence, 0, len(src.Classes)+len(src.OneOffs))
	for _, c := range src.Classes {
		if !c.Active || c.DayOfWeek != dow {
			continue
		}

		instructor := derefOr(c.Instructor, "")
		if v, ok := standing[c.ID]; ok {
			instructor = v
		}
		if v, ok := dated[c.ID]; ok {
			instructor = v
		}

		occ := EffectiveOccurrence{
			Ref:         RecurringRef(c.ID),
			Date:        date,
			Title:       c.Title,
			Instructor:  instructor,
			StartTime:   c.StartTime,
			EndTime:     c.EndTime,
			MaxCapacity: c.MaxCapacity,
		}

		if o, ok := overrides[c.ID]; ok {
			if o.IsCancelled {
				continue
			}
			occ.StartTime = derefOr(o.StartTime, occ.StartTime)
			occ.EndTime = derefOr(o.EndTime, occ.EndTime)
			occ.Instructor = derefOr(o.Instructor, occ.Instructor)
			if o.MaxCapacity != nil {
				occ.MaxCapacity = *o.MaxCapacity
			}
			occ.Notes = o.Notes
			occ.IsSpecial = true
		}
		out = append(out, occ)
	}

	for _, o := range src.OneOffs {
		if !o.Enabled || o.Date != date {
			continue
		}
		out = append(out, EffectiveOccurrence{
			Ref:         OneOffRef(o.ID),
			Date:        date,
			Title:       o.Title,
			Instructor:  o.Instructor,
			StartTime:   o.StartTime,
			EndTime:     o.EndTime,
			MaxCapacity: o.MaxCapacity,
			IsSpecial:   o.Notes != "",
			Notes:       o.Notes,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

// Lookup resolves a single reference on date and reports whether it exists,
// was cancelled for that date, or is bookable.
func Lookup(date string, ref OccurrenceRef, src Sources) (EffectiveOccurrence, Status, error) {
	occs, err := Resolve(date, src)
	if err != nil {
		return EffectiveOccurrence{}, StatusMissing, err
	}
	for _, occ := range occs {
		if occ.Ref == ref {
			return occ, StatusActive, nil
		}
	}
	if ref.Kind == SourceRecurring {
		for _, o := range src.Overrides {
			if o.RecurringClassID == ref.ID && o.Date == date && o.IsCancelled {
				return EffectiveOccurrence{}, StatusCancelled, nil
			}
		}
	}
	return EffectiveOccurrence{}, StatusMissing, nil
}

func derefOr(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}

// Resolver loads Sources from the repository on every call. There is no
// cache: staff edits are visible to the next resolution.
type Resolver struct {
	repo *Repository
}

func NewResolver(repo *Repository) *Resolver {
	return &Resolver{repo: repo}
}

// ForDate returns the effective occurrences on date.
func (r *Resolver) ForDate(ctx context.Context, date string) ([]EffectiveOccurrence, error) {
	dow, err := caltime.Weekday(date)
	if err != nil {
		return nil, err
	}
	src, err := r.load(ctx, date, date, dow)
	if err != nil {
		return nil, err
	}
	return Resolve(date, src)
}

// ForRange resolves every date in [start, end] with one read per source.
func (r *Resolver) ForRange(ctx context.Context, start, end string) ([]EffectiveOccurrence, error) {
	dates, err := caltime.Dates(start, end)
	if err != nil {
		return nil, err
	}
	src, err := r.load(ctx, start, end, -1)
	if err != nil {
		return nil, err
	}
	var out []EffectiveOccurrence
	for _, d := range dates {
		occs, err := Resolve(d, src)
		if err != nil {
			return nil, err
		}
		out = append(out, occs...)
	}
	return out, nil
}

// Find resolves one reference on date.
func (r *Resolver) Find(ctx context.Context, date string, ref OccurrenceRef) (EffectiveOccurrence, Status, error) {
	if !ref.Valid() {
		return EffectiveOccurrence{}, StatusMissing, ErrInvalidRef
	}
	dow, err := caltime.Weekday(date)
	if err != nil {
		return EffectiveOccurrence{}, StatusMissing, err
	}
	src, err := r.load(ctx, date, date, dow)
	if err != nil {
		return EffectiveOccurrence{}, StatusMissing, err
	}
	return Lookup(date, ref, src)
}

// load reads the sources covering [from, to]. When dow >= 0 only templates
// on that weekday are read.
func (r *Resolver) load(ctx context.Context, from, to string, dow int) (Sources, error) {
	var (
		src Sources
		err error
	)
	if dow >= 0 {
		src.Classes, err = r.repo.ActiveClassesForWeekday(ctx, dow)
	} else {
		src.Classes, err = r.repo.ListClasses(ctx, false)
	}
	if err != nil {
		return Sources{}, fmt.Errorf("load classes: %w", err)
	}
	if src.Overrides, err = r.repo.OverridesInRange(ctx, from, to); err != nil {
		return Sources{}, fmt.Errorf("load overrides: %w", err)
	}
	if src.Assignments, err = r.repo.AssignmentsInRange(ctx, from, to); err != nil {
		return Sources{}, fmt.Errorf("load assignments: %w", err)
	}
	if src.OneOffs, err = r.repo.OneOffsInRange(ctx, from, to, true); err != nil {
		return Sources{}, fmt.Errorf("load one-offs: %w", err)
	}
	return src, nil
}
