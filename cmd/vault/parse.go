package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/journeyvault/internal/device"
	"github.com/and161185/journeyvault/internal/filter"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseWhen reads an absolute time in local time, or an offset from now
// such as "3d", "36h" or "1d12h".
func parseWhen(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty time", errUsage)
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}
	d, err := parseOffset(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is neither a date nor an offset", errUsage, s)
	}
	return now.Add(d), nil
}

// parseOffset extends time.ParseDuration with a leading day count.
func parseOffset(s string) (time.Duration, error) {
	s = strings.TrimPrefix(s, "+")
	var days time.Duration
	if i := strings.IndexByte(s, 'd'); i > 0 {
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return 0, err
		}
		days = time.Duration(n) * 24 * time.Hour
		s = s[i+1:]
	}
	if s == "" {
		if days <= 0 {
			return 0, fmt.Errorf("non-positive offset")
		}
		return days, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if days+d <= 0 {
		return 0, fmt.Errorf("non-positive offset")
	}
	return days + d, nil
}

func parseFacing(s string) (device.Facing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "back", "environment":
		return device.FacingEnvironment, nil
	case "front", "user":
		return device.FacingUser, nil
	}
	return 0, fmt.Errorf("%w: unknown facing %q (back|front)", errUsage, s)
}

func parseFilter(s string) (filter.Filter, error) {
	if s == "" {
		return filter.None, nil
	}
	f, ok := filter.Parse(s)
	if !ok {
		return filter.None, fmt.Errorf("%w: unknown filter %q", errUsage, s)
	}
	return f, nil
}
