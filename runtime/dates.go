// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package runtime

import (
	"fmt"
	"strconv"
	"time"
)

// parseZoneOffset parses the `date`/`currentdate` ":zone" argument
// (RFC 5260 §5.1), a signed four-digit UTC offset like "+0100"/"-0500".
func parseZoneOffset(z string) (*time.Location, error) {
	if len(z) != 5 || (z[0] != '+' && z[0] != '-') {
		return nil, fmt.Errorf("sieve: invalid zone %q", z)
	}
	hh, err := strconv.Atoi(z[1:3])
	if err != nil {
		return nil, err
	}
	mm, err := strconv.Atoi(z[3:5])
	if err != nil {
		return nil, err
	}
	secs := hh*3600 + mm*60
	if z[0] == '-' {
		secs = -secs
	}
	return time.FixedZone(z, secs), nil
}

// formatDatePart renders the RFC 5260 §5.2 date-part of when. Unknown
// parts fall back to RFC 3339, rather than failing the test outright,
// so a typo in a rarely used part degrades to "never matches" instead
// of a runtime error.
func formatDatePart(when time.Time, part string) string {
	switch part {
	case "year":
		return fmt.Sprintf("%04d", when.Year())
	case "month":
		return fmt.Sprintf("%02d", int(when.Month()))
	case "day":
		return fmt.Sprintf("%02d", when.Day())
	case "date":
		return when.Format("2006-01-02")
	case "time":
		return when.Format("15:04:05")
	case "julian":
		return strconv.Itoa(julianDay(when))
	case "hour":
		return fmt.Sprintf("%02d", when.Hour())
	case "minute":
		return fmt.Sprintf("%02d", when.Minute())
	case "second":
		return fmt.Sprintf("%02d", when.Second())
	case "weekday":
		return strconv.Itoa(int(when.Weekday()))
	case "zone":
		return when.Format("-0700")
	case "iso8601":
		return when.Format(time.RFC3339)
	case "std11":
		return when.Format(time.RFC1123Z)
	}
	return when.Format(time.RFC3339)
}

// julianDay computes the Julian day number (RFC 5260's "julian"
// date-part) for the date portion of when, ignoring its time of day.
func julianDay(when time.Time) int {
	y, m, d := when.Date()
	a := (14 - int(m)) / 12
	y2 := y + 4800 - a
	m2 := int(m) + 12*a - 3
	return d + (153*m2+2)/5 + 365*y2 + y2/4 - y2/100 + y2/400 - 32045
}
