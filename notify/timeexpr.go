package notify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sho0pi/naturaltime"
)

const (
	day   = 24 * time.Hour
	month = 30 * day

	// longest accepted relative offset
	maxOffset = 100 * 365 * day

	dateOnlyLayout = "2-1-2006"
	dateTimeLayout = "2-1-2006_15:04"
)

var offsetPattern = regexp.MustCompile(`^(?:(\d+)\s*mo(?:nths?)?)?\s*` +
	`(?:(\d+)\s*d(?:ays?)?)?\s*` +
	`(?:(\d+)\s*h(?:ours?)?)?\s*` +
	`(?:(\d+)\s*m(?:in(?:ute)?s?)?)?\s*` +
	`(?:(\d+)\s*s(?:ec(?:ond)?s?)?)?$`)

var offsetUnits = [...]time.Duration{month, day, time.Hour, time.Minute, time.Second}

var (
	zoneCET  = time.FixedZone("CET", 1*60*60)
	zoneCEST = time.FixedZone("CEST", 2*60*60)
)

// SeasonalZone returns the fixed offset used for t: UTC+2 from March through
// October, UTC+1 otherwise.
func SeasonalZone(t time.Time) *time.Location {
	return zoneForMonth(t.UTC().Month())
}

func zoneForMonth(m time.Month) *time.Location {
	if m >= time.March && m <= time.October {
		return zoneCEST
	}
	return zoneCET
}

// Parser turns user supplied time expressions into absolute instants.
type Parser struct {
	Now     func() time.Time
	natural *naturaltime.Parser
}

// NewParser returns a Parser. When natural is true, free-form phrases such as
// "next friday at 5pm" are accepted after every strict form failed to match.
func NewParser(natural bool) (*Parser, error) {
	p := &Parser{Now: time.Now}
	if natural {
		np, err := naturaltime.New()
		if err != nil {
			return nil, fmt.Errorf("natural time parser: %w", err)
		}
		p.natural = np
	}
	return p, nil
}

func (p *Parser) now() time.Time {
	n := time.Now
	if p.Now != nil {
		n = p.Now
	}
	t := n()
	return t.In(SeasonalZone(t))
}

// Parse tries, in order, a literal (tomorrow, week, +7d), an absolute date
// (DD-MM-YYYY or DD-MM-YYYY_HH:MM) and a relative offset like "1mo 2d 3h 4m 5s".
func (p *Parser) Parse(text string) (time.Time, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return time.Time{}, ErrInvalidTimeFormat
	}
	now := p.now()

	if t, ok := parseLiteral(text, now); ok {
		return t, nil
	}
	if t, ok := parseDate(text); ok {
		return t, nil
	}

	d, matched, err := parseOffset(text)
	if err != nil {
		return time.Time{}, err
	}
	if matched {
		return now.Add(d), nil
	}

	if p.natural != nil {
		if t, err := p.natural.ParseDate(text, now); err == nil && t != nil {
			return t.In(SeasonalZone(*t)), nil
		}
	}
	return time.Time{}, ErrInvalidTimeFormat
}

func parseLiteral(text string, now time.Time) (time.Time, bool) {
	switch text {
	case "tomorrow":
		return now.Add(day), true
	case "week", "+7d":
		return now.Add(7 * day), true
	}
	return time.Time{}, false
}

func parseDate(text string) (time.Time, bool) {
	layout, hour, minute := dateOnlyLayout, 9, 0
	if strings.Contains(text, "_") {
		layout = dateTimeLayout
	}
	t, err := time.Parse(layout, text)
	if err != nil {
		return time.Time{}, false
	}
	if layout == dateTimeLayout {
		hour, minute = t.Hour(), t.Minute()
	}
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, zoneForMonth(t.Month())), true
}

// parseOffset reports matched=false when the text is not an offset at all.
// A syntactically valid offset that sums to zero is an error.
func parseOffset(text string) (time.Duration, bool, error) {
	m := offsetPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false, nil
	}
	var total time.Duration
	for i, unit := range offsetUnits {
		s := m[i+1]
		if s == "" {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n > int64(maxOffset/unit) {
			return 0, true, fmt.Errorf("%w: %q is out of range", ErrInvalidTimeFormat, text)
		}
		total += time.Duration(n) * unit
		if total > maxOffset {
			return 0, true, fmt.Errorf("%w: %q is out of range", ErrInvalidTimeFormat, text)
		}
	}
	if total == 0 {
		return 0, true, ErrInvalidTimeFormat
	}
	return total, true, nil
}

// FormatTime renders t in its seasonal zone.
func FormatTime(t time.Time) string {
	return t.In(SeasonalZone(t)).Format("2006-01-02 15:04:05")
}
