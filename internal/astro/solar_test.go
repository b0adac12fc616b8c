package astro

import (
	"math"
	"testing"
	"time"
)

// Reference installation: Ramona, CA.
const (
	testLat = 33.11
	testLon = -116.98
)

// Local solar noon for longitude -116.98 is about 19:48 UTC.
func solarNoonUTC(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 19, 48, 0, 0, time.UTC)
}

func TestSunDueSouthAtSolarNoon(t *testing.T) {
	for _, date := range []time.Time{
		solarNoonUTC(2026, time.March, 20),
		solarNoonUTC(2026, time.June, 21),
		solarNoonUTC(2026, time.September, 22),
		solarNoonUTC(2026, time.December, 21),
	} {
		pos := SunPosition(testLat, testLon, date)
		// Equation of time shifts true noon by up to ~16 min, so allow
		// several degrees of azimuth slack.
		if math.Abs(pos.Azimuth-180) > 8 {
			t.Errorf("%s: azimuth at solar noon = %.2f, want ~180", date.Format("2006-01-02"), pos.Azimuth)
		}
		if pos.Elevation <= 0 {
			t.Errorf("%s: elevation at solar noon = %.2f, want > 0", date.Format("2006-01-02"), pos.Elevation)
		}
	}
}

func TestSummerSolsticeNoonElevation(t *testing.T) {
	pos := SunPosition(testLat, testLon, solarNoonUTC(2026, time.June, 21))
	// 90 - latitude + obliquity = ~80.3 degrees.
	want := 90 - testLat + 23.44
	if math.Abs(pos.Elevation-want) > 1.0 {
		t.Errorf("solstice noon elevation = %.2f, want %.2f +/- 1", pos.Elevation, want)
	}
}

func TestSunDownAtLocalMidnight(t *testing.T) {
	// 07:48 UTC is local solar midnight.
	pos := SunPosition(testLat, testLon, time.Date(2026, time.June, 21, 7, 48, 0, 0, time.UTC))
	if pos.Elevation >= 0 {
		t.Errorf("elevation at local midnight = %.2f, want < 0", pos.Elevation)
	}
}

func TestAzimuthSweepsEastToWest(t *testing.T) {
	day := time.Date(2026, time.June, 21, 0, 0, 0, 0, time.UTC)

	morning := SunPosition(testLat, testLon, day.Add(15*time.Hour)) // ~07:00 local
	evening := SunPosition(testLat, testLon, day.Add(25*time.Hour)) // ~17:00 local

	if morning.Azimuth >= 180 {
		t.Errorf("morning azimuth = %.2f, want east of south", morning.Azimuth)
	}
	if evening.Azimuth <= 180 {
		t.Errorf("evening azimuth = %.2f, want west of south", evening.Azimuth)
	}

	// Azimuth increases monotonically through the daylight hours.
	prev := morning.Azimuth
	for h := 16; h <= 24; h++ {
		pos := SunPosition(testLat, testLon, day.Add(time.Duration(h)*time.Hour))
		if pos.Azimuth <= prev {
			t.Errorf("azimuth not increasing at hour %d: %.2f -> %.2f", h, prev, pos.Azimuth)
		}
		prev = pos.Azimuth
	}
}

func TestSunPositionIsPure(t *testing.T) {
	at := time.Date(2026, time.April, 10, 20, 0, 0, 0, time.UTC)
	a := SunPosition(testLat, testLon, at)
	b := SunPosition(testLat, testLon, at)
	if a != b {
		t.Errorf("identical inputs gave different outputs: %+v vs %+v", a, b)
	}
}
