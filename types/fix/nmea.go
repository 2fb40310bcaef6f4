package fix

import (
	"errors"
	"fmt"
	nmea "github.com/adrianmo/go-nmea"
	"strings"
	"time"
)

// ErrNoFix is returned for well-formed sentences that carry no usable position,
// eg. a void RMC or a GGA without a fix. Callers should skip these.
var ErrNoFix = errors.New("sentence carries no fix")

// NMEADate is the date carried between sentences; see ParseNMEA.
type NMEADate = nmea.Date

// ParseNMEA decodes an RMC or GGA sentence into a Fix.
// GGA sentences carry no date; the date of the most recent RMC
// (lastDate) is used, falling back to today's UTC date.
// Other sentence types return ErrNoFix.
func ParseNMEA(line string, lastDate nmea.Date) (Fix, nmea.Date, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Fix{}, lastDate, fmt.Errorf("%w: not a sentence", ErrNoFix)
	}
	sentence, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, lastDate, err
	}
	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		if m.Validity != nmea.ValidRMC {
			return Fix{}, m.Date, ErrNoFix
		}
		return New(m.Latitude, m.Longitude, nmeaTime(m.Date, m.Time)), m.Date, nil
	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		if m.FixQuality == nmea.Invalid || m.FixQuality == "" {
			return Fix{}, lastDate, ErrNoFix
		}
		date := lastDate
		if !date.Valid {
			now := time.Now().UTC()
			date = nmea.Date{Valid: true, DD: now.Day(), MM: int(now.Month()), YY: now.Year() % 100}
		}
		return New(m.Latitude, m.Longitude, nmeaTime(date, m.Time)), lastDate, nil
	}
	return Fix{}, lastDate, ErrNoFix
}

func nmeaTime(d nmea.Date, t nmea.Time) time.Time {
	year := 2000 + d.YY
	if d.YY >= 80 {
		year = 1900 + d.YY
	}
	return time.Date(year, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}
