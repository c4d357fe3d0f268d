// Package batch analyzes coverage across multiple GeoTIFF sources:
// merged bounds and geographic holes where no input file has data,
// for the geotiffkit CLI's -batch mode (spec.md §10 supplement).
package batch

import (
	"fmt"
	"math"
	"os"

	"github.com/hallertau/geotiffkit/internal/reproject"
	"github.com/hallertau/geotiffkit/internal/tiff"
)

func missingFilesError(missing []string, total int) error {
	msg := fmt.Sprintf("%d of %d input file(s) cannot be accessed:\n", len(missing), total)
	for _, p := range missing {
		msg += fmt.Sprintf("  - %s\n", p)
	}
	msg += "aborting to avoid holes in the output"
	return tiff.IoError("batch.OpenAll", fmt.Errorf("%s", msg))
}

func errNoIFDs(path string) error {
	return fmt.Errorf("no image directories in %s", path)
}

// Source is one input file's opened directory plus its recovered
// GeoModel, the minimum this package needs to reason about coverage.
type Source struct {
	Path  string
	IFD   *tiff.IFD
	Model *tiff.GeoModel
}

// Bounds is a source's extent in its own CRS.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// BoundsInCRS returns src's extent in its own CRS, derived from its
// GeoModel evaluated at the image's four corners.
func (s *Source) BoundsInCRS() Bounds {
	width, height := float64(s.IFD.Width()), float64(s.IFD.Height())
	x0, y0 := s.Model.PixelCenterToWorld(-0.5, -0.5)
	x1, y1 := s.Model.PixelCenterToWorld(width-0.5, height-0.5)
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return Bounds{MinX: x0, MinY: y0, MaxX: x1, MaxY: y1}
}

// OpenAll opens every path in paths and builds its GeoModel, failing
// fast with every missing/unreadable file named at once, then closing
// whatever it already opened if any later open fails. The caller is
// responsible for closing the returned files via Close.
func OpenAll(paths []string) ([]*Source, []*os.File, error) {
	var missing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return nil, nil, missingFilesError(missing, len(paths))
	}

	sources := make([]*Source, 0, len(paths))
	files := make([]*os.File, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll(files)
			return nil, nil, tiff.IoError("batch.OpenAll", err)
		}
		_, ifds, err := tiff.ReadIFDs(f)
		if err != nil {
			f.Close()
			closeAll(files)
			return nil, nil, err
		}
		if len(ifds) == 0 {
			f.Close()
			closeAll(files)
			return nil, nil, tiff.FormatError("batch.OpenAll", errNoIFDs(p))
		}
		model := tiff.BuildGeoModel(ifds[0])
		if model.EPSG == 0 {
			model.EPSG = tiff.InferEPSG(model, int(ifds[0].Width()), int(ifds[0].Height()))
		}
		sources = append(sources, &Source{Path: p, IFD: ifds[0], Model: model})
		files = append(files, f)
	}
	return sources, files, nil
}

func closeAll(files []*os.File) {
	for _, f := range files {
		f.Close()
	}
}

// Gap describes a rectangular region within the merged bounding box
// (in WGS84) that no source covers.
type Gap struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// CheckCoverageGaps grids the merged WGS84 extent of sources and flood
// fills uncovered cells into contiguous gaps. Returns nil when there
// are fewer than two sources, or coverage is complete.
func CheckCoverageGaps(sources []*Source, proj *reproject.Registry) ([]Gap, error) {
	if len(sources) <= 1 {
		return nil, nil
	}

	type bbox struct{ minLon, minLat, maxLon, maxLat float64 }
	boxes := make([]bbox, len(sources))
	mergedMinLon, mergedMinLat := math.MaxFloat64, math.MaxFloat64
	mergedMaxLon, mergedMaxLat := -math.MaxFloat64, -math.MaxFloat64
	var totalW, totalH float64

	for i, src := range sources {
		b := src.BoundsInCRS()
		minLon, minLat, maxLon, maxLat, err := toWGS84Bounds(proj, src.Model.EPSG, b)
		if err != nil {
			return nil, err
		}
		boxes[i] = bbox{minLon, minLat, maxLon, maxLat}
		mergedMinLon = math.Min(mergedMinLon, minLon)
		mergedMinLat = math.Min(mergedMinLat, minLat)
		mergedMaxLon = math.Max(mergedMaxLon, maxLon)
		mergedMaxLat = math.Max(mergedMaxLat, maxLat)
		totalW += maxLon - minLon
		totalH += maxLat - minLat
	}

	avgW := totalW / float64(len(sources))
	avgH := totalH / float64(len(sources))
	if avgW <= 0 || avgH <= 0 {
		return nil, nil
	}

	cellW := avgW / 2
	cellH := avgH / 2
	nx := int(math.Ceil((mergedMaxLon - mergedMinLon) / cellW))
	ny := int(math.Ceil((mergedMaxLat - mergedMinLat) / cellH))

	const maxGrid = 2000
	if nx > maxGrid {
		cellW = (mergedMaxLon - mergedMinLon) / maxGrid
		nx = maxGrid
	}
	if ny > maxGrid {
		cellH = (mergedMaxLat - mergedMinLat) / maxGrid
		ny = maxGrid
	}
	if nx <= 0 || ny <= 0 {
		return nil, nil
	}

	covered := make([]bool, nx*ny)
	for iy := 0; iy < ny; iy++ {
		cy := mergedMinLat + (float64(iy)+0.5)*cellH
		for ix := 0; ix < nx; ix++ {
			cx := mergedMinLon + (float64(ix)+0.5)*cellW
			for _, b := range boxes {
				if cx >= b.minLon && cx <= b.maxLon && cy >= b.minLat && cy <= b.maxLat {
					covered[iy*nx+ix] = true
					break
				}
			}
		}
	}

	visited := make([]bool, nx*ny)
	var gaps []Gap
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			idx := iy*nx + ix
			if covered[idx] || visited[idx] {
				continue
			}
			gaps = append(gaps, floodFillGap(ix, iy, nx, ny, cellW, cellH, mergedMinLon, mergedMinLat, covered, visited))
		}
	}
	return gaps, nil
}

func floodFillGap(ix, iy, nx, ny int, cellW, cellH, originLon, originLat float64, covered, visited []bool) Gap {
	gapMinLon, gapMinLat := math.MaxFloat64, math.MaxFloat64
	gapMaxLon, gapMaxLat := -math.MaxFloat64, -math.MaxFloat64
	queue := [][2]int{{ix, iy}}
	visited[iy*nx+ix] = true

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		cx, cy := cur[0], cur[1]

		cellMinLon := originLon + float64(cx)*cellW
		cellMinLat := originLat + float64(cy)*cellH
		gapMinLon = math.Min(gapMinLon, cellMinLon)
		gapMinLat = math.Min(gapMinLat, cellMinLat)
		gapMaxLon = math.Max(gapMaxLon, cellMinLon+cellW)
		gapMaxLat = math.Max(gapMaxLat, cellMinLat+cellH)

		for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			nx2, ny2 := cx+d[0], cy+d[1]
			if nx2 < 0 || nx2 >= nx || ny2 < 0 || ny2 >= ny {
				continue
			}
			nIdx := ny2*nx + nx2
			if !covered[nIdx] && !visited[nIdx] {
				visited[nIdx] = true
				queue = append(queue, [2]int{nx2, ny2})
			}
		}
	}
	return Gap{MinLon: gapMinLon, MinLat: gapMinLat, MaxLon: gapMaxLon, MaxLat: gapMaxLat}
}

func toWGS84Bounds(proj *reproject.Registry, epsg int, b Bounds) (minLon, minLat, maxLon, maxLat float64, err error) {
	if epsg == 4326 {
		return b.MinX, b.MinY, b.MaxX, b.MaxY, nil
	}
	pts, err := proj.Project([]tiff.Point{{X: b.MinX, Y: b.MinY}, {X: b.MaxX, Y: b.MaxY}}, epsg, 4326)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return pts[0].X, pts[0].Y, pts[1].X, pts[1].Y, nil
}

// SourceFor returns the first source whose own-CRS bounds contain
// (x, y), or nil if none does. Used by -batch mode to pick which
// input file answers a bbox/coordinate request.
func SourceFor(sources []*Source, x, y float64) *Source {
	for _, s := range sources {
		b := s.BoundsInCRS()
		if x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY {
			return s
		}
	}
	return nil
}
