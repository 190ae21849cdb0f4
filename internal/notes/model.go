package notes

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the only accepted textual form of a calendar date.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidDate indicates that a date value does not match DateLayout.
	ErrInvalidDate = errors.New("notes: invalid date")
	// ErrInvalidNoteID indicates that a note identifier is not a 32-bit integer.
	ErrInvalidNoteID = errors.New("notes: invalid note id")
	// ErrInvalidGuestID indicates that a guest identifier is not a 32-bit integer.
	ErrInvalidGuestID = errors.New("notes: invalid guest id")
)

// Date is a calendar date without a time component.
type Date struct {
	year  int
	month time.Month
	day   int
}

// NewDate returns the date for the provided calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return dateFromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses a YYYY-MM-DD value.
func ParseDate(rawInput string) (Date, error) {
	parsed, err := time.Parse(DateLayout, rawInput)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, rawInput)
	}
	return dateFromTime(parsed), nil
}

func dateFromTime(value time.Time) Date {
	year, month, day := value.Date()
	return Date{year: year, month: month, day: day}
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether the date was never set.
func (d Date) IsZero() bool {
	return d == Date{}
}

// AddDays returns the date shifted by the provided number of days.
func (d Date) AddDays(days int) Date {
	return dateFromTime(d.Time().AddDate(0, 0, days))
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Time().Format(DateLayout)
}

// MarshalJSON encodes the date as a YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts only a YYYY-MM-DD string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var rawInput string
	if err := json.Unmarshal(data, &rawInput); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	parsed, err := ParseDate(rawInput)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the date as midnight UTC.
func (d Date) Value() (driver.Value, error) {
	return d.Time(), nil
}

// Scan reads a date column. Postgres yields time.Time while SQLite may yield text.
func (d *Date) Scan(source any) error {
	switch value := source.(type) {
	case time.Time:
		*d = dateFromTime(value)
		return nil
	case string:
		return d.scanText(value)
	case []byte:
		return d.scanText(string(value))
	case nil:
		*d = Date{}
		return nil
	default:
		return fmt.Errorf("%w: unsupported source %T", ErrInvalidDate, source)
	}
}

func (d *Date) scanText(value string) error {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) < len(DateLayout) {
		return fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	parsed, err := ParseDate(trimmed[:len(DateLayout)])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// idBitSize matches the integer columns backing guests and notes.
const idBitSize = 32

// NoteID is a validated note identifier.
type NoteID int64

// ParseNoteID validates a textual path parameter. Zero and negative values
// parse; they simply match no row.
func ParseNoteID(rawInput string) (NoteID, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(rawInput), 10, idBitSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNoteID, rawInput)
	}
	return NoteID(value), nil
}

// ParseGuestID validates a textual guest identifier such as a query parameter.
func ParseGuestID(rawInput string) (int64, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(rawInput), 10, idBitSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGuestID, rawInput)
	}
	return value, nil
}

// Int64 exposes the raw identifier.
func (id NoteID) Int64() int64 {
	return int64(id)
}

// Guest owns zero or more notes.
type Guest struct {
	ID int64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
}

// TableName provides the explicit table binding for GORM.
func (Guest) TableName() string {
	return "guests"
}

// Note is a dated text entry owned by exactly one guest.
type Note struct {
	ID      int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Date    Date   `gorm:"column:date;type:date;not null" json:"date"`
	Content string `gorm:"column:content;type:text;not null" json:"content"`
	GuestID int64  `gorm:"column:guest_id;not null" json:"-"`
	Guest   *Guest `gorm:"foreignKey:GuestID;references:ID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
}

// TableName provides the explicit table binding for GORM.
func (Note) TableName() string {
	return "notes"
}
