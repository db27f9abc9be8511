package dedupe

import "math"

const earthRadiusKM = 6371.0088

// haversineKM returns the great-circle distance in kilometers between two
// WGS84 points. Accurate to well under the 50m exact-match band used by
// the proximity signal.
func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180.0
	phi1, phi2 := lat1*rad, lat2*rad
	dPhi := (lat2 - lat1) * rad
	dLambda := (lon2 - lon1) * rad

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)

	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}
