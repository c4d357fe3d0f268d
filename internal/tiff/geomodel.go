package tiff

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Point is a coordinate pair in some CRS, the vocabulary shared by the
// RegionSelector and the Projector collaborator it calls out to.
type Point struct {
	X, Y float64
}

// GeoKey IDs (GeoTIFF 1.0 §6.2) used to recover an EPSG code.
const (
	gkModelTypeGeoKey       = 1024
	gkGeographicTypeGeoKey  = 2048
	gkProjectedCSTypeGeoKey = 3072
)

// GeoModel is the pixel↔world affine transform, spec.md §4.6. It
// always reduces to a 2-D affine map (Z, when present in a tiepoint
// or transformation matrix, is carried only for round-tripping and
// plays no part in pixel↔world queries):
//
//	wx = A*x + B*y + C
//	wy = D*x + E*y + F
//
// where (x, y) is the pixel-center location: for integer pixel index
// (px, py), x = px+0.5, y = py+0.5.
type GeoModel struct {
	A, B, C float64
	D, E, F float64

	Georeferenced bool // false when constructed via path (c), identity
	EPSG          int
}

// BuildGeoModel implements spec.md §4.6's three construction paths,
// tried in order against the tags present on ifd.
func BuildGeoModel(ifd *IFD) *GeoModel {
	g := identityGeoModel()
	g.EPSG = parseEPSG(ifd.GeoKeys())

	if m := ifd.ModelTransformation(); len(m) >= 16 {
		g.A, g.B, g.C = m[0], m[1], m[3]
		g.D, g.E, g.F = m[4], m[5], m[7]
		g.Georeferenced = true
		return g
	}

	tie := ifd.ModelTiepoint()
	scale := ifd.ModelPixelScale()
	if len(tie) >= 6 && len(scale) >= 2 {
		i, j := tie[0], tie[1]
		x, y := tie[3], tie[4]
		sx, sy := scale[0], scale[1]
		g.A, g.B, g.C = sx, 0, x-i*sx
		g.D, g.E, g.F = 0, -sy, y+j*sy
		g.Georeferenced = true
		return g
	}

	return g
}

func identityGeoModel() *GeoModel {
	return &GeoModel{A: 1, B: 0, C: 0, D: 0, E: 1, F: 0}
}

// PixelCenterToWorld maps an integer pixel index to world coordinates,
// evaluating the affine at the pixel's center per spec.md §4.6.
func (g *GeoModel) PixelCenterToWorld(px, py float64) (wx, wy float64) {
	x, y := px+0.5, py+0.5
	wx = g.A*x + g.B*y + g.C
	wy = g.D*x + g.E*y + g.F
	return wx, wy
}

// WorldToPixelCenter is the analytic inverse of PixelCenterToWorld,
// returning the (fractional) pixel index whose center maps to (wx, wy).
func (g *GeoModel) WorldToPixelCenter(wx, wy float64) (px, py float64, err error) {
	det := g.A*g.E - g.B*g.D
	if det == 0 {
		return 0, 0, errors.New("geomodel: transform is not invertible")
	}
	cx, cy := wx-g.C, wy-g.F
	x := (g.E*cx - g.B*cy) / det
	y := (g.A*cy - g.D*cx) / det
	return x - 0.5, y - 0.5, nil
}

// parseEPSG extracts the EPSG code from a decoded GeoKeyDirectoryTag,
// favoring the projected CS key over the geographic one when both are
// present (a projected raster still carries a geographic base CRS).
func parseEPSG(geoKeys []uint16) int {
	if len(geoKeys) < 4 {
		return 0
	}
	numKeys := int(geoKeys[3])
	var geographic int
	for i := 0; i < numKeys; i++ {
		base := 4 + i*4
		if base+3 >= len(geoKeys) {
			break
		}
		keyID := geoKeys[base]
		valueOffset := geoKeys[base+3]
		switch keyID {
		case gkProjectedCSTypeGeoKey:
			if valueOffset > 0 && valueOffset < 32767 {
				return int(valueOffset)
			}
		case gkGeographicTypeGeoKey:
			if valueOffset > 0 && valueOffset < 32767 {
				geographic = int(valueOffset)
			}
		}
	}
	return geographic
}

// BuildGeoKeyDirectory constructs a minimal GeoKeyDirectoryTag value
// naming epsg as the raster's CRS, the inverse of parseEPSG: one
// ModelTypeGeoKey plus the matching ProjectedCSTypeGeoKey or
// GeographicTypeGeoKey. EPSG:4326 is recorded as geographic; anything
// else as projected, matching every CRS this module's reproject
// registry knows.
func BuildGeoKeyDirectory(epsg int) []uint16 {
	geographic := epsg == 4326
	modelType := uint16(1)
	csKey := uint16(gkProjectedCSTypeGeoKey)
	if geographic {
		modelType = 2
		csKey = gkGeographicTypeGeoKey
	}
	return []uint16{
		1, 1, 0, 2,
		gkModelTypeGeoKey, 0, 1, modelType,
		csKey, 0, 1, uint16(epsg),
	}
}

// InferEPSG guesses a plausible EPSG code purely from coordinate
// magnitude, for files that carry no GeoKeys at all (e.g. built from a
// bare TFW sidecar). It never overrides an EPSG already recovered from
// GeoKeys or supplied explicitly by the caller.
func InferEPSG(g *GeoModel, width, height int) int {
	if g.EPSG != 0 {
		return g.EPSG
	}
	originX, originY := g.C, g.F
	maxX := originX + float64(width)*g.A
	minY := originY + float64(height)*g.E

	if originX >= -180 && maxX <= 360 && minY >= -90 && originY <= 90 {
		return 4326
	}
	if math.Abs(originX) > 100000 || math.Abs(originY) > 100000 {
		if originX >= 2400000 && originX <= 2900000 && originY >= 1000000 && originY <= 1400000 {
			return 2056
		}
		if math.Abs(originX) <= 20037508.34 && math.Abs(originY) <= 20048966.10 {
			return 3857
		}
	}
	return 4326
}

// TFW holds the six parameters of a TIFF World File sidecar, used as a
// GeoModel source when a TIFF carries no GeoTIFF tags (spec.md §10
// supplement: rotated world files are rejected, matching every raster
// operation in this package assuming axis-aligned pixels).
type TFW struct {
	PixelSizeX float64
	RotationY  float64
	RotationX  float64
	PixelSizeY float64
	OriginX    float64 // x of upper-left pixel center
	OriginY    float64 // y of upper-left pixel center
}

// ParseTFW reads a .tfw/.tifw sidecar file.
func ParseTFW(path string) (*TFW, error) {
	const op = "tiff.ParseTFW"
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, IoError(op, err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 6 {
		return nil, FormatError(op, errors.New("expected 6 lines"))
	}
	vals := make([]float64, 6)
	for i := 0; i < 6; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(lines[i]), 64)
		if err != nil {
			return nil, FormatError(op, err)
		}
		vals[i] = v
	}
	tfw := &TFW{
		PixelSizeX: vals[0], RotationY: vals[1], RotationX: vals[2],
		PixelSizeY: vals[3], OriginX: vals[4], OriginY: vals[5],
	}
	if tfw.RotationX != 0 || tfw.RotationY != 0 {
		return nil, UnsupportedError(op, errors.New("rotated world files are not supported"))
	}
	return tfw, nil
}

// FindTFW looks for a TFW sidecar next to tiffPath.
func FindTFW(tiffPath string) string {
	ext := filepath.Ext(tiffPath)
	base := tiffPath[:len(tiffPath)-len(ext)]
	for _, c := range []string{".tfw", ".TFW", ".tifw", ".TIFW"} {
		p := base + c
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// GeoModelFromTFW builds a GeoModel from a TFW's six parameters,
// converting its pixel-center origin convention into this package's
// affine form: the TFW origin names the center of the upper-left
// pixel, so C/F are moved back half a pixel to that pixel's corner.
func GeoModelFromTFW(tfw *TFW) *GeoModel {
	g := identityGeoModel()
	g.A = tfw.PixelSizeX
	g.E = tfw.PixelSizeY
	g.C = tfw.OriginX - 0.5*tfw.PixelSizeX
	g.F = tfw.OriginY - 0.5*tfw.PixelSizeY
	g.Georeferenced = true
	return g
}
