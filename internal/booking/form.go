package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spacebook/client/internal/apiclient"
	"github.com/spacebook/client/internal/models"
)

// DateLayout is the wire format of a booking date.
const DateLayout = "2006-01-02"

// Validation messages shown next to the form.
const (
	MessageRequiredFields  = "please fill in all required fields"
	MessageInvalidDate     = "date must be in YYYY-MM-DD format"
	MessagePastDate        = "date cannot be in the past"
	MessageNoDate          = "select a date first"
	MessageNoStart         = "select a start time first"
	MessageStartReserved   = "that start time is not available"
	MessageEndUnavailable  = "that end time is not available"
	MessagePeopleTooFew    = "at least 1 person is required"
	MessagePeopleTooMany   = "the number of people exceeds the space capacity"
	MessagePurposeTooLong  = "purpose must be at most 200 characters"
	maxPurposeLength       = 200
)

var (
	// ErrFormBusy is returned when a form is changed while its submission is in flight.
	ErrFormBusy = errors.New("booking form is being submitted")

	// ErrFormClosed is returned when a confirmed form is changed or submitted again.
	ErrFormClosed = errors.New("booking form is already confirmed")
)

// ValidationError lists the rules a draft violates. It never reaches the network.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

func invalid(messages ...string) *ValidationError {
	return &ValidationError{Messages: messages}
}

// State is the lifecycle position of a booking form.
type State string

const (
	StateUnset            State = "UNSET"
	StateStartChosen      State = "START_CHOSEN"
	StateFullyChosen      State = "FULLY_CHOSEN"
	StateSubmitting       State = "SUBMITTING"
	StateConfirmed        State = "CONFIRMED"
	StateFailedValidation State = "FAILED_VALIDATION"
	StateFailedSubmission State = "FAILED_SUBMISSION"
)

// SpaceInfo is what a form needs to know about the space being booked.
type SpaceInfo struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	PricePerHour int64  `json:"pricePerHour"`
	// Capacity of zero means unknown
	Capacity int `json:"capacity"`
}

// SpaceInfoFrom extracts the booking-relevant fields of a space.
func SpaceInfoFrom(space models.Space) SpaceInfo {
	return SpaceInfo{
		ID:           space.ID,
		Name:         space.SpaceName,
		PricePerHour: space.PricePerHour,
		Capacity:     space.Capacity,
	}
}

// Submitter sends a finished draft to the reservation service.
type Submitter interface {
	CreateReservation(ctx context.Context, req models.CreateReservationRequest) (*models.Reservation, error)
}

// Form is one booking in progress. All methods are safe for concurrent use.
type Form struct {
	mu sync.Mutex

	id    string
	space SpaceInfo
	now   func() time.Time

	date     string
	start    int // 0 when unset; no grid hour is 0
	end      int
	people   int
	purpose  string
	reserved Reserved

	state       State
	lastErrors  []string
	reservation *models.Reservation
}

// NewForm creates an empty form for space.
func NewForm(id string, space SpaceInfo) *Form {
	return &Form{
		id:    id,
		space: space,
		now:   time.Now,
		state: StateUnset,
	}
}

// ID returns the form's identifier.
func (f *Form) ID() string {
	return f.id
}

// Space returns the space the form books.
func (f *Form) Space() SpaceInfo {
	return f.space
}

// Date returns the selected date, or "" when none is selected.
func (f *Form) Date() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.date
}

// State returns the current lifecycle state.
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// editable reports whether the selection may change. Callers hold f.mu.
func (f *Form) editable() error {
	switch f.state {
	case StateSubmitting:
		return ErrFormBusy
	case StateConfirmed:
		return ErrFormClosed
	}
	return nil
}

// settle recomputes the selection state after an edit. Callers hold f.mu.
func (f *Form) settle() {
	f.lastErrors = nil
	switch {
	case f.start == 0:
		f.state = StateUnset
	case f.end == 0:
		f.state = StateStartChosen
	default:
		f.state = StateFullyChosen
	}
}

// SelectDate switches the form to date and drops the chosen hours and the
// previous date's reserved intervals.
func (f *Form) SelectDate(date string) error {
	day, err := time.ParseInLocation(DateLayout, date, time.Local)
	if err != nil {
		return invalid(MessageInvalidDate)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.editable(); err != nil {
		return err
	}
	if day.Format(DateLayout) < f.now().Format(DateLayout) {
		return invalid(MessagePastDate)
	}

	f.date = day.Format(DateLayout)
	f.start, f.end = 0, 0
	f.reserved = nil
	f.settle()
	return nil
}

// LoadReserved installs the reserved intervals of date. Results for a date
// the form has since moved away from are ignored. A chosen start that is now
// reserved, or an end that is no longer reachable, is cleared.
// It reports whether the interval set changed and whether the selection was cut back.
func (f *Form) LoadReserved(date string, intervals []models.ReservedTime) (changed, cleared bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if date != f.date || f.editable() != nil {
		return false, false
	}

	next := make(Reserved, len(intervals))
	copy(next, intervals)
	changed = f.reserved == nil || !f.reserved.Equal(next)
	f.reserved = next

	if f.start != 0 && next.IsReserved(f.start) {
		f.start, f.end = 0, 0
		cleared = true
	} else if f.end != 0 && !next.IsValidEnd(f.start, f.end) {
		f.end = 0
		cleared = true
	}
	if changed || cleared {
		f.settle()
	}
	return changed, cleared
}

// Reserved returns the reserved intervals of the selected date.
func (f *Form) Reserved() Reserved {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(Reserved, len(f.reserved))
	copy(out, f.reserved)
	return out
}

// ChooseStart selects the start hour. An end that is still reachable from
// the new start is kept.
func (f *Form) ChooseStart(hour int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.editable(); err != nil {
		return err
	}
	if f.date == "" {
		return invalid(MessageNoDate)
	}
	if !InGrid(hour) || f.reserved.IsReserved(hour) {
		return invalid(MessageStartReserved)
	}

	f.start = hour
	if f.end != 0 && !f.reserved.IsValidEnd(f.start, f.end) {
		f.end = 0
	}
	f.settle()
	return nil
}

// ChooseEnd selects the end hour; it must be one of the valid ends for the start.
func (f *Form) ChooseEnd(hour int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.editable(); err != nil {
		return err
	}
	if f.start == 0 {
		return invalid(MessageNoStart)
	}
	if !f.reserved.IsValidEnd(f.start, hour) {
		return invalid(MessageEndUnavailable)
	}

	f.end = hour
	f.settle()
	return nil
}

// SetPeople records the head count. Range checks happen in Draft.
func (f *Form) SetPeople(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.editable(); err != nil {
		return err
	}
	f.people = n
	f.settle()
	return nil
}

// SetPurpose records the optional purpose text.
func (f *Form) SetPurpose(purpose string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.editable(); err != nil {
		return err
	}
	f.purpose = strings.TrimSpace(purpose)
	f.settle()
	return nil
}

// Update is a partial edit of a form; nil fields are left alone.
type Update struct {
	Date        *string `json:"date,omitempty"`
	StartHour   *int    `json:"startHour,omitempty"`
	EndHour     *int    `json:"endHour,omitempty"`
	PeopleCount *int    `json:"peopleCount,omitempty"`
	Purpose     *string `json:"purpose,omitempty"`
}

// Apply performs u in date, start, end, people, purpose order and stops at
// the first rejected field. A date equal to the current one is not a change.
// It reports whether the date changed so the caller can reload availability.
func (f *Form) Apply(u Update) (dateChanged bool, err error) {
	if u.Date != nil && *u.Date != f.Date() {
		if err := f.SelectDate(*u.Date); err != nil {
			return false, err
		}
		dateChanged = true
	}
	if u.StartHour != nil {
		if err := f.ChooseStart(*u.StartHour); err != nil {
			return dateChanged, err
		}
	}
	if u.EndHour != nil {
		if err := f.ChooseEnd(*u.EndHour); err != nil {
			return dateChanged, err
		}
	}
	if u.PeopleCount != nil {
		if err := f.SetPeople(*u.PeopleCount); err != nil {
			return dateChanged, err
		}
	}
	if u.Purpose != nil {
		if err := f.SetPurpose(*u.Purpose); err != nil {
			return dateChanged, err
		}
	}
	return dateChanged, nil
}

// Draft validates the form and builds the reservation request.
func (f *Form) Draft() (*models.CreateReservationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft()
}

func (f *Form) draft() (*models.CreateReservationRequest, error) {
	if f.date == "" || f.start == 0 || f.end == 0 || f.people == 0 {
		return nil, invalid(MessageRequiredFields)
	}

	var problems []string
	if f.people < 1 {
		problems = append(problems, MessagePeopleTooFew)
	}
	if f.space.Capacity > 0 && f.people > f.space.Capacity {
		problems = append(problems, MessagePeopleTooMany)
	}
	if len([]rune(f.purpose)) > maxPurposeLength {
		problems = append(problems, MessagePurposeTooLong)
	}
	if !f.reserved.IsValidEnd(f.start, f.end) || f.reserved.IsReserved(f.start) {
		problems = append(problems, MessageEndUnavailable)
	}
	if len(problems) > 0 {
		return nil, invalid(problems...)
	}

	return &models.CreateReservationRequest{
		SpaceID:     f.space.ID,
		StartTime:   fmt.Sprintf("%sT%02d:00:00", f.date, f.start),
		EndTime:     fmt.Sprintf("%sT%02d:00:00", f.date, f.end),
		PeopleCount: f.people,
		Purpose:     f.purpose,
	}, nil
}

// Submit validates the draft and sends it. A validation failure lands in
// FailedValidation without network I/O; a rejected call lands in
// FailedSubmission with the pipeline's message.
func (f *Form) Submit(ctx context.Context, submitter Submitter) (*models.Reservation, error) {
	f.mu.Lock()
	if err := f.editable(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	req, err := f.draft()
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			f.lastErrors = verr.Messages
		}
		f.state = StateFailedValidation
		f.mu.Unlock()
		return nil, err
	}
	f.state = StateSubmitting
	f.lastErrors = nil
	f.mu.Unlock()

	reservation, err := submitter.CreateReservation(ctx, *req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = StateFailedSubmission
		f.lastErrors = []string{apiclient.UserMessage(err)}
		return nil, err
	}
	f.state = StateConfirmed
	f.reservation = reservation
	return reservation, nil
}

// TotalPrice is the price of the chosen interval, or zero before both ends are chosen.
func (f *Form) TotalPrice() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.start == 0 || f.end == 0 {
		return 0
	}
	return Price(f.start, f.end, f.space.PricePerHour)
}

// Snapshot is the JSON view of a form.
type Snapshot struct {
	ID           string              `json:"id"`
	Space        SpaceInfo           `json:"space"`
	State        State               `json:"state"`
	Date         string              `json:"date,omitempty"`
	StartHour    *int                `json:"startHour,omitempty"`
	EndHour      *int                `json:"endHour,omitempty"`
	PeopleCount  int                 `json:"peopleCount,omitempty"`
	Purpose      string              `json:"purpose,omitempty"`
	Reserved     Reserved            `json:"reserved"`
	StartOptions []HourOption        `json:"startOptions,omitempty"`
	EndOptions   []HourOption        `json:"endOptions,omitempty"`
	TotalPrice   int64               `json:"totalPrice"`
	Errors       []string            `json:"errors,omitempty"`
	Reservation  *models.Reservation `json:"reservation,omitempty"`
}

// Snapshot captures the form for rendering.
func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := Snapshot{
		ID:          f.id,
		Space:       f.space,
		State:       f.state,
		Date:        f.date,
		PeopleCount: f.people,
		Purpose:     f.purpose,
		Reserved:    make(Reserved, len(f.reserved)),
		Errors:      append([]string(nil), f.lastErrors...),
		Reservation: f.reservation,
	}
	copy(snap.Reserved, f.reserved)

	if f.date != "" {
		snap.StartOptions = f.reserved.StartOptions()
	}
	if f.start != 0 {
		start := f.start
		snap.StartHour = &start
		snap.EndOptions = f.reserved.EndOptions(f.start)
	}
	if f.end != 0 {
		end := f.end
		snap.EndHour = &end
		snap.TotalPrice = Price(f.start, f.end, f.space.PricePerHour)
	}
	return snap
}
