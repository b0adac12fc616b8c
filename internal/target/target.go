// Package target maps time (and optionally sun position) to a desired
// actuator traversal fraction. All policies are pure functions: evaluating
// twice with the same inputs yields the same demand, and nothing here is
// persisted between evaluations.
package target

import (
	"math"
	"time"

	"github.com/jpangburn/solar-tracker/internal/astro"
)

// Demand is a freshly computed movement request. Fraction is the desired
// traversal as a share of full travel: 0 is full east, 1 is full west.
type Demand struct {
	Move     bool
	Fraction float64
}

// Ticks converts the demand fraction to an absolute actuator position.
func (d Demand) Ticks(fullWest int) int {
	return int(math.Round(d.Fraction * float64(fullWest)))
}

// Policy computes the desired position for a point in time. Policies that
// do not use the sun ignore it.
type Policy interface {
	Evaluate(now time.Time, sun astro.Position) Demand
}

// Regression maps solar azimuth to an actuator position with a cubic fit
// measured on the installed hardware. When the sun is below the horizon the
// demand is full east, parking the panel for the next morning before the
// battery drains overnight.
type Regression struct {
	C3, C2, C1, C0 float64
	FullWest       int
}

// Evaluate computes the cubic in azimuth, clamped to [0, FullWest].
func (r Regression) Evaluate(now time.Time, sun astro.Position) Demand {
	if sun.Elevation < 0 {
		return Demand{Move: true, Fraction: 0}
	}

	az := sun.Azimuth
	pos := r.C3*az*az*az + r.C2*az*az + r.C1*az + r.C0
	pos = math.Max(0, math.Min(float64(r.FullWest), pos))
	return Demand{Move: true, Fraction: pos / float64(r.FullWest)}
}

// Linear interpolates between the measured full-east and full-west sun
// azimuths. Cheaper to calibrate than the regression fit: only the two
// boundary angles need measuring.
type Linear struct {
	EastAngle float64
	WestAngle float64
}

// Evaluate returns the azimuth's clamped position within the angle span.
func (l Linear) Evaluate(now time.Time, sun astro.Position) Demand {
	if sun.Elevation < 0 {
		return Demand{Move: true, Fraction: 0}
	}

	frac := (sun.Azimuth - l.EastAngle) / (l.WestAngle - l.EastAngle)
	frac = math.Max(0, math.Min(1, frac))
	return Demand{Move: true, Fraction: frac}
}

// Schedule drives the tracker from clock time alone: no astronomy needed,
// just the clock times the panel should be full east and full west,
// measured on a reference day. The optional equation-of-time correction
// keeps the schedule aligned with the sun as solar noon drifts through the
// seasons.
type Schedule struct {
	// EastStart and WestEnd are minutes after local midnight.
	EastStart int
	WestEnd   int

	// RefDayOfYear is the day the boundary times were measured.
	// Zero disables the equation-of-time correction.
	RefDayOfYear int

	// WestTolerance snaps fractions within this much schedule time of the
	// west end to exactly 1, so discretization cannot strand the panel
	// just short of the west limit.
	WestTolerance time.Duration
}

// Evaluate returns the elapsed share of the tracking span, or no move
// outside it (too early or after hours).
func (s Schedule) Evaluate(now time.Time, sun astro.Position) Demand {
	start := float64(s.EastStart)
	end := float64(s.WestEnd)
	if s.RefDayOfYear > 0 {
		// The boundaries were measured against the sun on the reference
		// day; shift them by the seasonal solar-noon drift since then.
		adj := EquationOfTimeMinutes(s.RefDayOfYear) - EquationOfTimeMinutes(now.YearDay())
		start += adj
		end += adj
	}

	span := end - start
	minute := float64(now.Hour()*60+now.Minute()) + float64(now.Second())/60.0
	frac := (minute - start) / span
	if frac < 0 || frac > 1 {
		return Demand{}
	}

	tol := s.WestTolerance.Minutes() / span
	if frac >= 1-tol {
		frac = 1
	}
	return Demand{Move: true, Fraction: frac}
}

// NightReturn issues one forced move to full east at a fixed evening time,
// independent of the day's tracking span, so the panel faces east overnight
// even on schedule-only installations.
type NightReturn struct {
	// At is minutes after local midnight.
	At int
}

// Due reports whether the nightly return should fire now, given when it
// last fired. It fires at most once per trigger time.
func (n NightReturn) Due(now, lastFired time.Time) bool {
	trigger := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
		Add(time.Duration(n.At) * time.Minute)
	return !now.Before(trigger) && lastFired.Before(trigger)
}

// EquationOfTimeMinutes returns how many minutes sundial time leads clock
// time on the given day of year.
func EquationOfTimeMinutes(dayOfYear int) float64 {
	b := 2 * math.Pi * float64(dayOfYear-81) / 365.0
	return 9.87*math.Sin(2*b) - 7.53*math.Cos(b) - 1.5*math.Sin(b)
}
