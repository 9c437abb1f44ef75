// Package schedule вычисляет момент, когда ожидается новый пост.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DefaultClock = "06:00"

var ErrInvalidTimeFormat = errors.New("invalid time format")

// Location: локальная зона или UTC
func Location(local bool) *time.Location {
	if local {
		return time.Local
	}
	return time.UTC
}

// ParseClock разбирает "HH:MM".
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q (want HH:MM)", ErrInvalidTimeFormat, s)
	}
	hour, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q: bad hour", ErrInvalidTimeFormat, s)
	}
	minute, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q: bad minute", ErrInvalidTimeFormat, s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q: out of range", ErrInvalidTimeFormat, s)
	}
	return hour, minute, nil
}

// At: сегодня в hh:mm:00 по зоне loc; если это уже не будущее, то ровно на сутки позже.
func At(now time.Time, loc *time.Location, hour, minute int) time.Time {
	local := now.In(loc)
	at := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

// NextSharpHour: now+1h, обрезанное до начала часа UTC. Всегда в (now, now+1h].
// Считается по моменту, а не по настенному времени: в час перевода часов
// локальное время неоднозначно. loc влияет только на зону результата.
func NextSharpHour(now time.Time, loc *time.Location) time.Time {
	return now.Add(time.Hour).UTC().Truncate(time.Hour).In(loc)
}

// Resolve выбирает режим: sharp игнорирует clock целиком.
func Resolve(now time.Time, loc *time.Location, clock string, sharp bool) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if sharp {
		return NextSharpHour(now, loc), nil
	}
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return At(now, loc, hour, minute), nil
}
