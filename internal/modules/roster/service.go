// Package roster assembles per-date attendance sheets for staff.
package roster

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	bookingdomain "sportclub/internal/domain/booking"
	"sportclub/internal/domain/member"
	"sportclub/internal/domain/schedule"
)

// BookingSource lists every booking on a date. Authorization happens there.
type BookingSource interface {
	BookingsForDate(ctx context.Context, actor member.Actor, date string) ([]bookingdomain.Booking, error)
}

type ScheduleSource interface {
	ResolveSchedule(ctx context.Context, date string) ([]schedule.EffectiveOccurrence, error)
}

type MemberDirectory interface {
	GetMany(ctx context.Context, ids []int64) (map[int64]member.Member, error)
}

type Line struct {
	BookingID int64  `json:"booking_id"`
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Status    string `json:"status"`
	Attended  *bool  `json:"attended"`
}

// Block is one occurrence and the people booked on it.
type Block struct {
	Ref         string `json:"ref"`
	Title       string `json:"title"`
	Instructor  string `json:"instructor"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	MaxCapacity int    `json:"max_capacity"`
	IsCancelled bool   `json:"is_cancelled"`
	Lines       []Line `json:"lines"`
}

type Roster struct {
	Date   string  `json:"date"`
	Blocks []Block `json:"blocks"`
}

type Service struct {
	bookings BookingSource
	schedule ScheduleSource
	members  MemberDirectory
}

func NewService(bookings BookingSource, sched ScheduleSource, members MemberDirectory) *Service {
	return &Service{bookings: bookings, schedule: sched, members: members}
}

// Build returns the roster for date. Occurrences with no bookings are kept
// so the sheet mirrors the calendar. Bookings whose occurrence no longer
// resolves get a block of their own at the end.
func (s *Service) Build(ctx context.Context, actor member.Actor, date string) (*Roster, error) {
	bookings, err := s.bookings.BookingsForDate(ctx, actor, date)
	if err != nil {
		return nil, err
	}
	occs, err := s.schedule.ResolveSchedule(ctx, date)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(bookings))
	byKey := map[string][]bookingdomain.Booking{}
	for _, b := range bookings {
		ids = append(ids, b.UserID)
		byKey[b.OccurrenceKey] = append(byKey[b.OccurrenceKey], b)
	}
	people, err := s.members.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	r := &Roster{Date: date}
	for _, occ := range occs {
		key := occ.Ref.String()
		r.Blocks = append(r.Blocks, Block{
			Ref:         key,
			Title:       occ.Title,
			Instructor:  occ.Instructor,
			StartTime:   occ.StartTime,
			EndTime:     occ.EndTime,
			MaxCapacity: occ.MaxCapacity,
			IsCancelled: occ.IsCancelled,
			Lines:       lines(byKey[key], people),
		})
		delete(byKey, key)
	}

	orphans := make([]string, 0, len(byKey))
	for key := range byKey {
		orphans = append(orphans, key)
	}
	sort.Strings(orphans)
	for _, key := range orphans {
		r.Blocks = append(r.Blocks, Block{Ref: key, Title: key, IsCancelled: true, Lines: lines(byKey[key], people)})
	}
	return r, nil
}

func lines(bookings []bookingdomain.Booking, people map[int64]member.Member) []Line {
	out := make([]Line, 0, len(bookings))
	for _, b := range bookings {
		p := people[b.UserID]
		out = append(out, Line{
			BookingID: b.ID,
			UserID:    b.UserID,
			Name:      p.Name,
			Email:     p.Email,
			Status:    string(b.Status),
			Attended:  b.Attended,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status == string(bookingdomain.StatusConfirmed)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ExportXLSX renders the roster as a workbook with a single sheet named
// after the date.
func (s *Service) ExportXLSX(ctx context.Context, actor member.Actor, date string) ([]byte, error) {
	r, err := s.Build(ctx, actor, date)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := date
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	row := 1
	set := func(col int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, cell, v)
	}

	for _, b := range r.Blocks {
		title := fmt.Sprintf("%s  %s-%s  %s", b.Title, b.StartTime, b.EndTime, b.Instructor)
		if b.IsCancelled {
			title += "  (cancelled)"
		}
		if err := set(1, title); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, cellName(1, row), cellName(1, row), header); err != nil {
			return nil, err
		}
		row++
		for i, h := range []string{"Name", "Email", "Status", "Attended"} {
			if err := set(i+1, h); err != nil {
				return nil, err
			}
		}
		if err := f.SetCellStyle(sheet, cellName(1, row), cellName(4, row), header); err != nil {
			return nil, err
		}
		row++
		for _, l := range b.Lines {
			for i, v := range []any{l.Name, l.Email, l.Status, attendedLabel(l.Attended)} {
				if err := set(i+1, v); err != nil {
					return nil, err
				}
			}
			row++
		}
		row++
	}
	if err := f.SetColWidth(sheet, "A", "B", 32); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func attendedLabel(v *bool) string {
	switch {
	case v == nil:
		return ""
	case *v:
		return "yes"
	default:
		return "no"
	}
}
