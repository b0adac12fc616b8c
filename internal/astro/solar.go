// Package astro computes the sun's horizontal coordinates for the tracker's
// azimuth-based target policies. NOAA solar calculator algorithm, accurate
// to roughly one arcminute, far tighter than the single-degree resolution
// the actuator mapping needs.
package astro

import (
	"math"
	"time"
)

// Position is the sun's horizontal position as seen from the tracker.
type Position struct {
	// Azimuth in degrees clockwise from true north.
	Azimuth float64
	// Elevation in degrees above the horizon; negative means sun down.
	Elevation float64
}

// SunPosition returns the sun's azimuth and elevation for an observer at
// the given latitude/longitude (degrees, east positive) at time t.
func SunPosition(latitude, longitude float64, t time.Time) Position {
	jd := julianDate(t.UTC())
	jc := (jd - 2451545.0) / 36525.0 // Julian centuries from J2000.0

	// Geometric mean longitude and mean anomaly of the sun (degrees).
	meanLong := math.Mod(280.46646+jc*(36000.76983+jc*0.0003032), 360.0)
	meanAnom := 357.52911 + jc*(35999.05029-0.0001537*jc)
	anomRad := radians(meanAnom)

	// Equation of center, then true and apparent longitude.
	center := math.Sin(anomRad)*(1.914602-jc*(0.004817+0.000014*jc)) +
		math.Sin(2*anomRad)*(0.019993-0.000101*jc) +
		math.Sin(3*anomRad)*0.000289
	trueLong := meanLong + center
	omega := 125.04 - 1934.136*jc
	appLong := trueLong - 0.00569 - 0.00478*math.Sin(radians(omega))

	// Obliquity of the ecliptic, corrected for nutation.
	obliq0 := 23.0 + (26.0+(21.448-jc*(46.815+jc*(0.00059-jc*0.001813))))/3600.0
	obliq := obliq0 + 0.00256*math.Cos(radians(omega))

	appLongRad := radians(appLong)
	obliqRad := radians(obliq)

	// Right ascension and declination.
	ra := degrees(math.Atan2(math.Cos(obliqRad)*math.Sin(appLongRad), math.Cos(appLongRad)))
	if ra < 0 {
		ra += 360
	}
	dec := math.Asin(math.Sin(obliqRad) * math.Sin(appLongRad))

	// Local hour angle via Greenwich mean sidereal time.
	gmst := math.Mod(280.46061837+360.98564736629*(jd-2451545.0)+
		0.000387933*jc*jc-jc*jc*jc/38710000.0, 360.0)
	ha := math.Mod(gmst+longitude, 360.0) - ra
	if ha < 0 {
		ha += 360
	}
	if ha > 180 {
		ha -= 360
	}
	haRad := radians(ha)

	latRad := radians(latitude)

	// Horizontal coordinates.
	sinElev := math.Sin(latRad)*math.Sin(dec) + math.Cos(latRad)*math.Cos(dec)*math.Cos(haRad)
	elev := math.Asin(sinElev)

	cosAz := (math.Sin(dec) - math.Sin(latRad)*sinElev) / (math.Cos(latRad) * math.Cos(elev))
	cosAz = math.Max(-1, math.Min(1, cosAz))
	az := degrees(math.Acos(cosAz))
	if math.Sin(haRad) > 0 {
		az = 360.0 - az
	}

	return Position{Azimuth: az, Elevation: degrees(elev)}
}

// julianDate converts a UTC time to a Julian Date.
func julianDate(t time.Time) float64 {
	year, month, day := t.Year(), int(t.Month()), t.Day()
	if month <= 2 {
		year--
		month += 12
	}

	a := year / 100
	b := 2 - a + a/4

	jd := float64(int(365.25*float64(year+4716))) +
		float64(int(30.6001*float64(month+1))) +
		float64(day+b) - 1524.5

	frac := (float64(t.Hour()) + float64(t.Minute())/60.0 + float64(t.Second())/3600.0) / 24.0
	return jd + frac
}

func radians(deg float64) float64 { return deg * math.Pi / 180.0 }

func degrees(rad float64) float64 { return rad * 180.0 / math.Pi }
