package task

import (
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// DateLayout is the calendar-day encoding used for Task.Date.
const DateLayout = "2006-01-02"

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusDone}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Priorities lists every priority from highest to lowest.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ErrInvalidTask is returned when a task fails validation. No store
// interaction happens for an invalid task.
var ErrInvalidTask = errors.BadRequest("INVALID_TASK", "invalid task")

// Task is the single persisted unit of work.
type Task struct {
	ID          string   `json:"id" cbor:"id" validate:"required"`
	Title       string   `json:"title" cbor:"title" validate:"notblank"`
	Description string   `json:"description,omitempty" cbor:"description,omitempty"`
	Status      Status   `json:"status" cbor:"status" validate:"status"`
	Priority    Priority `json:"priority" cbor:"priority" validate:"priority"`
	Date        string   `json:"date,omitempty" cbor:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Progress    int      `json:"progress" cbor:"progress" validate:"min=0,max=100"`
}

// Draft is the partial input a user supplies when creating a task. Zero
// values mean "not set".
type Draft struct {
	ID          string
	Title       string
	Description string
	Status      Status
	Priority    Priority
	Date        string
	Progress    int
}

// New completes a draft into a Task. Every optional field gets its default:
//
//	ID        fresh time-ordered id
//	Status    Pending
//	Priority  Medium
//	Date      the calendar day of now
//	Progress  0, and always clamped to [0,100]
//
// The result is validated before it is returned.
func New(d Draft, now time.Time) (Task, error) {
	t := Task{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Status:      d.Status,
		Priority:    d.Priority,
		Date:        d.Date,
		Progress:    ClampProgress(d.Progress),
	}
	if t.ID == "" {
		t.ID = NewID()
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Date == "" {
		t.Date = now.Format(DateLayout)
	}
	if err := Validate(t); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Normalize fills the fields a stored record may lack. It is applied to
// records read back from storage; it does not validate.
func Normalize(t Task, now time.Time) Task {
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Date == "" {
		t.Date = now.Format(DateLayout)
	}
	t.Progress = ClampProgress(t.Progress)
	return t
}

func ClampProgress(p int) int {
	return min(max(p, 0), 100)
}

// NewID returns a v7 UUID, which sorts by creation time.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// DueDate returns the task date at midnight in loc.
func (t Task) DueDate(loc *time.Location) (time.Time, bool) {
	if t.Date == "" {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(DateLayout, t.Date, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return Priority(fl.Field().String()).IsValid()
	})
	return v
}

// Validate checks t and returns ErrInvalidTask describing every failing
// field, or nil.
func Validate(t Task) error {
	err := validate.Struct(t)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ErrInvalidTask.WithCause(err)
	}
	fields := make([]string, 0, len(verrs))
	md := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		fields = append(fields, name)
		md[name] = fe.Tag()
	}
	e := errors.BadRequest(ErrInvalidTask.Reason, "invalid task: "+strings.Join(fields, ", "))
	return e.WithMetadata(md)
}
