package schedule

type CreateClassRequest struct {
	Title       string  `json:"title" binding:"required,max=120"`
	Instructor  *string `json:"instructor" binding:"omitempty,max=120"`
	DayOfWeek   *int    `json:"day_of_week" binding:"required,gte=0,lte=6"`
	StartTime   string  `json:"start_time" binding:"required,clock"`
	EndTime     string  `json:"end_time" binding:"required,clock"`
	MaxCapacity int     `json:"max_capacity" binding:"required,gte=1"`
}

type CreateOneOffRequest struct {
	Title       string `json:"title" binding:"required,max=120"`
	Instructor  string `json:"instructor" binding:"max=120"`
	Date        string `json:"date" binding:"required,caldate"`
	StartTime   string `json:"start_time" binding:"required,clock"`
	EndTime     string `json:"end_time" binding:"required,clock"`
	MaxCapacity int    `json:"max_capacity" binding:"required,gte=1"`
	Notes       string `json:"notes" binding:"max=1000"`
}

type InstructorAssignmentRequest struct {
	Date       *string `json:"date" binding:"omitempty,caldate"`
	Instructor string  `json:"instructor" binding:"max=120"`
}
