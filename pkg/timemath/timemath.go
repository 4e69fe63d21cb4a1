// Package timemath converts the local date, time and UTC offset strings stored on events
// into absolute instants and applies interval arithmetic to them.
package timemath

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	// DateLayout is the yyyy-mm-dd layout used for event dates.
	DateLayout = "2006-01-02"
	// ClockLayout is the 24h hh:mm layout used for event times.
	ClockLayout = "15:04"
	// None marks an absent notice time or a one-shot interval.
	None = "-"
)

// Unit is a period unit suffix.
type Unit string

const (
	UnitYear   Unit = "y"
	UnitMonth  Unit = "m"
	UnitDay    Unit = "d"
	UnitHour   Unit = "h"
	UnitMinute Unit = "min"
)

// maxAmount bounds each unit to roughly two centuries so that fixed periods stay well inside
// time.Duration and calendar shifts stay inside the supported date range.
var maxAmount = map[Unit]int{
	UnitYear:   200,
	UnitMonth:  200 * 12,
	UnitDay:    200 * 365,
	UnitHour:   200 * 365 * 24,
	UnitMinute: 200 * 365 * 24 * 60,
}

var (
	datePattern   = regexp.MustCompile(`^\d{4}-(0[1-9]|1[012])-(0[1-9]|[12][0-9]|3[01])$`)
	clockPattern  = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	periodPattern = regexp.MustCompile(`^(\d+)(y|m|d|h|min)$`)
	offsetPattern = regexp.MustCompile(`^([+-])(\d{1,2})(?::(\d{2}))?$`)
)

// FormatError reports a malformed scheduling string.
type FormatError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Period is a parsed notice time or interval such as "30min" or "2m".
type Period struct {
	Amount int
	Unit   Unit
}

// IsZero reports whether the period came from the "-" sentinel.
func (p Period) IsZero() bool {
	return p.Unit == ""
}

// String renders the period back into its stored form.
func (p Period) String() string {
	if p.IsZero() {
		return None
	}
	return fmt.Sprintf("%d%s", p.Amount, p.Unit)
}

// Phrase renders the period for humans, e.g. "30 minutes" or "1 year".
func (p Period) Phrase() string {
	if p.IsZero() {
		return ""
	}
	var noun string
	switch p.Unit {
	case UnitYear:
		noun = "year"
	case UnitMonth:
		noun = "month"
	case UnitDay:
		noun = "day"
	case UnitHour:
		noun = "hour"
	default:
		noun = "minute"
	}
	if p.Amount != 1 {
		noun += "s"
	}
	return fmt.Sprintf("%d %s", p.Amount, noun)
}

// Fixed returns the period as a duration when its unit has a constant length.
func (p Period) Fixed() (time.Duration, bool) {
	switch p.Unit {
	case UnitDay:
		return time.Duration(p.Amount) * 24 * time.Hour, true
	case UnitHour:
		return time.Duration(p.Amount) * time.Hour, true
	case UnitMinute:
		return time.Duration(p.Amount) * time.Minute, true
	default:
		return 0, false
	}
}

// ParsePeriod parses a notice time or interval. The "-" sentinel yields a zero Period.
func ParsePeriod(field, raw string) (Period, error) {
	if raw == None {
		return Period{}, nil
	}
	m := periodPattern.FindStringSubmatch(raw)
	if m == nil {
		return Period{}, &FormatError{Field: field, Value: raw, Reason: `expected <number><y|m|d|h|min> or "-"`}
	}
	unit := Unit(m[2])
	n, err := strconv.Atoi(m[1])
	if err != nil || n > maxAmount[unit] {
		return Period{}, &FormatError{Field: field, Value: raw, Reason: "amount out of range"}
	}
	return Period{Amount: n, Unit: unit}, nil
}

// ParseOffset parses "±H[:MM]" into the signed distance of local time ahead of UTC.
func ParseOffset(raw string) (time.Duration, error) {
	m := offsetPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, &FormatError{Field: "utc_offset", Value: raw, Reason: "expected ±H[:MM]"}
	}
	hours, _ := strconv.Atoi(m[2])
	minutes := 0
	if m[3] != "" {
		minutes, _ = strconv.Atoi(m[3])
	}
	if hours > 23 || minutes > 59 {
		return 0, &FormatError{Field: "utc_offset", Value: raw, Reason: "offset out of range"}
	}
	d := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}

// ValidateDate checks a yyyy-mm-dd string, including calendar validity.
func ValidateDate(raw string) error {
	if !datePattern.MatchString(raw) {
		return &FormatError{Field: "date", Value: raw, Reason: "expected yyyy-mm-dd"}
	}
	if _, err := time.Parse(DateLayout, raw); err != nil {
		return &FormatError{Field: "date", Value: raw, Reason: "no such calendar day"}
	}
	return nil
}

// ValidateClock checks an hh:mm string.
func ValidateClock(raw string) error {
	if !clockPattern.MatchString(raw) {
		return &FormatError{Field: "time", Value: raw, Reason: "expected hh:mm (24h)"}
	}
	return nil
}

// ValidateOffset checks a ±H[:MM] string.
func ValidateOffset(raw string) error {
	_, err := ParseOffset(raw)
	return err
}

// ValidatePeriod checks a notice time or interval string for the named field.
func ValidatePeriod(field, raw string) error {
	_, err := ParsePeriod(field, raw)
	return err
}

// ValidateInterval is ValidatePeriod for recurrence intervals, which must be non-empty.
func ValidateInterval(raw string) error {
	p, err := ParsePeriod("interval", raw)
	if err != nil {
		return err
	}
	if !p.IsZero() && p.Amount == 0 {
		return &FormatError{Field: "interval", Value: raw, Reason: "interval must be positive"}
	}
	return nil
}

// ToUTC interprets date and clock as wall time at the given offset and returns the UTC instant.
func ToUTC(date, clock, utcOffset string) (time.Time, error) {
	if err := ValidateDate(date); err != nil {
		return time.Time{}, err
	}
	if err := ValidateClock(clock); err != nil {
		return time.Time{}, err
	}
	offset, err := ParseOffset(utcOffset)
	if err != nil {
		return time.Time{}, err
	}
	local, err := time.ParseInLocation(DateLayout+" "+ClockLayout, date+" "+clock, time.UTC)
	if err != nil {
		return time.Time{}, &FormatError{Field: "date", Value: date + " " + clock, Reason: err.Error()}
	}
	return local.Add(-offset), nil
}

// ToLocal converts a UTC instant back into date and clock strings at the given offset.
func ToLocal(t time.Time, utcOffset string) (string, string, error) {
	offset, err := ParseOffset(utcOffset)
	if err != nil {
		return "", "", err
	}
	local := t.UTC().Add(offset)
	return local.Format(DateLayout), local.Format(ClockLayout), nil
}

// ToAbsoluteTimestamp returns the Unix second at which a reminder for the given local
// schedule should fire: the UTC instant minus the notice lead time.
func ToAbsoluteTimestamp(date, clock, utcOffset, noticeTime string) (int64, error) {
	fire, err := FireInstant(date, clock, utcOffset, noticeTime)
	if err != nil {
		return 0, err
	}
	return fire.Unix(), nil
}

// FireInstant is ToAbsoluteTimestamp as a time.Time.
func FireInstant(date, clock, utcOffset, noticeTime string) (time.Time, error) {
	t, err := ToUTC(date, clock, utcOffset)
	if err != nil {
		return time.Time{}, err
	}
	notice, err := ParsePeriod("notice_time", noticeTime)
	if err != nil {
		return time.Time{}, err
	}
	return Rewind(t, notice), nil
}

// Advance moves t forward by one period. Years and months follow the calendar and clamp
// to the last day of a shorter month; days, hours and minutes are fixed durations.
func Advance(t time.Time, p Period) time.Time {
	return AdvanceN(t, p, 1)
}

// Rewind moves t backward by one period.
func Rewind(t time.Time, p Period) time.Time {
	return AdvanceN(t, p, -1)
}

// AdvanceN moves t by n whole periods, backwards for negative n. Every multiple is taken from t
// itself, so calendar clamping does not accumulate across steps. Fixed units are added in seconds
// and cannot overflow time.Duration however large n gets.
func AdvanceN(t time.Time, p Period, n int) time.Time {
	if p.IsZero() || n == 0 {
		return t
	}
	if d, ok := p.Fixed(); ok {
		secs := int64(d/time.Second) * int64(n)
		return time.Unix(t.Unix()+secs, int64(t.Nanosecond())).In(t.Location())
	}
	months := p.Amount
	if p.Unit == UnitYear {
		months *= 12
	}
	return addMonths(t, months*n)
}

func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first); day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
