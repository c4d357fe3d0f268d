package reproject

// swissLV95 implements EPSG:2056 (CH1903+ / LV95) using swisstopo's
// published polynomial approximation formulas. Accuracy is roughly 1
// meter, adequate for bbox/radius region resolution.
//
// Reference: https://www.swisstopo.admin.ch/en/knowledge-facts/surveying-geodesy/reference-frames/local/lv95.html
type swissLV95 struct{}

func (swissLV95) toWGS84(easting, northing float64) (lon, lat float64) {
	y := (easting - 2_600_000) / 1_000_000
	x := (northing - 1_200_000) / 1_000_000

	lonSec := 2.6779094 +
		4.728982*y +
		0.791484*y*x +
		0.1306*y*x*x -
		0.0436*y*y*y

	latSec := 16.9023892 +
		3.238272*x -
		0.270978*y*y -
		0.002528*x*x -
		0.0447*y*y*x -
		0.0140*x*x*x

	lon = lonSec * 100.0 / 36.0
	lat = latSec * 100.0 / 36.0
	return
}

func (swissLV95) fromWGS84(lon, lat float64) (easting, northing float64) {
	phiSec := lat * 3600
	lambdaSec := lon * 3600

	phiAux := (phiSec - 169028.66) / 10000
	lambdaAux := (lambdaSec - 26782.5) / 10000

	easting = 2_600_072.37 +
		211_455.93*lambdaAux -
		10_938.51*lambdaAux*phiAux -
		0.36*lambdaAux*phiAux*phiAux -
		44.54*lambdaAux*lambdaAux*lambdaAux

	northing = 1_200_147.07 +
		308_807.95*phiAux +
		3_745.25*lambdaAux*lambdaAux +
		76.63*phiAux*phiAux -
		194.56*lambdaAux*lambdaAux*phiAux +
		119.79*phiAux*phiAux*phiAux

	return
}

// wgs84Identity implements EPSG:4326: x is longitude, y is latitude.
type wgs84Identity struct{}

func (wgs84Identity) toWGS84(x, y float64) (lon, lat float64)   { return x, y }
func (wgs84Identity) fromWGS84(lon, lat float64) (x, y float64) { return lon, lat }
