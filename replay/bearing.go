package replay

import (
	"math"

	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

// BearingDegrees returns the initial great-circle bearing from (lat1,lon1)
// to (lat2,lon2), normalized to [0,360).
func BearingDegrees(lat1, lon1, lat2, lon2 float64) float64 {
	la1 := lat1 * math.Pi / 180
	la2 := lat2 * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	y := math.Sin(dLon) * math.Cos(la2)
	x := math.Cos(la1)*math.Sin(la2) - math.Sin(la1)*math.Cos(la2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	deg = math.Mod(deg+360, 360)
	return deg
}

// headingAt resolves the heading at index k: a reported GPS angle wins;
// otherwise the bearing between the nearest valid fixes before and after k,
// skipping invalid positions; with no valid neighbors the heading is 0.
func headingAt(history []telemetry.Sample, k int) float64 {
	if k < 0 || k >= len(history) {
		return 0
	}
	if a := history[k].GPS.Angle; a != nil && !math.IsNaN(*a) {
		return math.Mod(math.Mod(*a, 360)+360, 360)
	}
	before := -1
	for i := k; i >= 0; i-- {
		if history[i].HasValidFix() {
			before = i
			break
		}
	}
	after := -1
	for i := k + 1; i < len(history); i++ {
		if history[i].HasValidFix() {
			after = i
			break
		}
	}
	if before < 0 || after < 0 {
		return 0
	}
	b := history[before].GPS
	a := history[after].GPS
	return BearingDegrees(b.Latitude, b.Longitude, a.Latitude, a.Longitude)
}
