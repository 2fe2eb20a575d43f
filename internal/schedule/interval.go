// Package schedule derives recurring refresh schedules from a coarse interval
// class and manages the single named trigger an installation owns.
package schedule

import (
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind enumerates the interval classes.
type Kind int

const (
	KindNever Kind = iota
	KindEveryMinute
	KindHourly
	KindEveryNMinutes
)

func (k Kind) String() string {
	switch k {
	case KindNever:
		return "never"
	case KindEveryMinute:
		return "every-minute"
	case KindHourly:
		return "hourly"
	case KindEveryNMinutes:
		return "every-n-minutes"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IntervalClass is the user-selected refresh frequency. The zero value is Never.
type IntervalClass struct {
	kind Kind
	n    int
}

var (
	Never       = IntervalClass{kind: KindNever}
	EveryMinute = IntervalClass{kind: KindEveryMinute}
	Hourly      = IntervalClass{kind: KindHourly}
)

// EveryNMinutes returns the class firing every n minutes. Only 15 and 30 are
// supported.
func EveryNMinutes(n int) (IntervalClass, error) {
	if n != 15 && n != 30 {
		return IntervalClass{}, fmt.Errorf("unsupported interval of %d minutes; expected 15 or 30", n)
	}
	return IntervalClass{kind: KindEveryNMinutes, n: n}, nil
}

// ParseInterval maps a scheduleInterval setting to its class:
// "never", "1" (every minute), "0" (hourly), "15" and "30".
func ParseInterval(s string) (IntervalClass, error) {
	switch s {
	case "never":
		return Never, nil
	case "1":
		return EveryMinute, nil
	case "0":
		return Hourly, nil
	case "15", "30":
		n, _ := strconv.Atoi(s)
		return EveryNMinutes(n)
	default:
		return IntervalClass{}, fmt.Errorf("unknown schedule interval %q", s)
	}
}

func (c IntervalClass) Kind() Kind { return c.kind }

// N is the period in minutes for KindEveryNMinutes, zero otherwise.
func (c IntervalClass) N() int { return c.n }

// String renders the class back to its setting token.
func (c IntervalClass) String() string {
	switch c.kind {
	case KindNever:
		return "never"
	case KindEveryMinute:
		return "1"
	case KindHourly:
		return "0"
	case KindEveryNMinutes:
		return strconv.Itoa(c.n)
	default:
		return c.kind.String()
	}
}

// Timezone is the zone every descriptor is expressed in.
const Timezone = "UTC"

// Descriptor is the recurrence derived from an interval class and the minute
// it was computed at. It fires at minutes Start, Start+Period, ... of every
// hour. Period is 1 for every-minute and 60 for hourly schedules.
type Descriptor struct {
	Kind     Kind   `json:"kind"`
	Start    int    `json:"start"`
	Period   int    `json:"period"`
	Timezone string `json:"timezone"`
}

// None reports whether the descriptor means "no recurrence".
func (d Descriptor) None() bool { return d.Kind == KindNever }

// Cron renders the descriptor as a standard five-field cron expression.
// It returns "" for a descriptor without recurrence.
func (d Descriptor) Cron() string {
	switch d.Kind {
	case KindNever:
		return ""
	case KindEveryMinute:
		return "*/1 * * * *"
	case KindHourly:
		return fmt.Sprintf("%d * * * *", d.Start)
	case KindEveryNMinutes:
		return fmt.Sprintf("%d/%d * * * *", d.Start, d.Period)
	default:
		return ""
	}
}

// Minutes lists the minutes of the hour at which the descriptor fires.
func (d Descriptor) Minutes() []int {
	if d.None() || d.Period <= 0 {
		return nil
	}
	var minutes []int
	for m := d.Start; m < 60; m += d.Period {
		minutes = append(minutes, m)
	}
	return minutes
}

// Next returns the first firing instant strictly after t, or the zero time
// for a descriptor without recurrence.
func (d Descriptor) Next(t time.Time) time.Time {
	expr := d.Cron()
	if expr == "" {
		return time.Time{}
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(t.UTC())
}

// Derive computes the descriptor for class at wall-clock time now. Only the
// phase of the recurrence depends on now; the period is fixed by the class.
func Derive(class IntervalClass, now time.Time) Descriptor {
	minute := now.UTC().Minute()

	switch class.kind {
	case KindNever:
		return Descriptor{Kind: KindNever, Timezone: Timezone}
	case KindEveryMinute:
		return Descriptor{Kind: KindEveryMinute, Start: 0, Period: 1, Timezone: Timezone}
	case KindHourly:
		return Descriptor{Kind: KindHourly, Start: minute, Period: 60, Timezone: Timezone}
	case KindEveryNMinutes:
		n := class.n
		start := minute - (minute/n)*n
		return Descriptor{Kind: KindEveryNMinutes, Start: start, Period: n, Timezone: Timezone}
	default:
		panic(fmt.Sprintf("schedule: unhandled interval kind %v", class.kind))
	}
}
