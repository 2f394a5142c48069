package booking

type CreateReservationRequest struct {
	Date          string `json:"date" binding:"required,caldate"`
	OccurrenceRef string `json:"occurrence_ref" binding:"required"`
}

type ForceCancelRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

type MarkAttendanceRequest struct {
	Attended *bool `json:"attended" binding:"required"`
}

type DateOverrideRequest struct {
	RecurringClassID        int64   `json:"recurring_class_id" binding:"required,gt=0"`
	Date                    string  `json:"date" binding:"required,caldate"`
	StartTime               *string `json:"start_time" binding:"omitempty,clock"`
	EndTime                 *string `json:"end_time" binding:"omitempty,clock"`
	Instructor              *string `json:"instructor" binding:"omitempty,max=120"`
	MaxCapacity             *int    `json:"max_capacity" binding:"omitempty,gte=1"`
	IsCancelled             bool    `json:"is_cancelled"`
	MigrateExistingBookings bool    `json:"migrate_existing_bookings"`
	Notes                   string  `json:"notes" binding:"max=1000"`
}

type DisableClassRequest struct {
	Date   string `json:"date" binding:"required,caldate"`
	Reason string `json:"reason" binding:"max=500"`
}

type ToggleClassRequest struct {
	Active *bool `json:"active" binding:"required"`
}
