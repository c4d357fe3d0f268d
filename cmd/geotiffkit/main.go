// Command geotiffkit extracts a pixel region, bounding box, or
// coordinate neighborhood from a GeoTIFF and writes it out as TIFF,
// PNG, WebP, CSV, JSON, or NPY.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/hallertau/geotiffkit/internal/batch"
	"github.com/hallertau/geotiffkit/internal/colormap"
	"github.com/hallertau/geotiffkit/internal/extract"
	"github.com/hallertau/geotiffkit/internal/region"
	"github.com/hallertau/geotiffkit/internal/reproject"
	"github.com/hallertau/geotiffkit/internal/tiff"
)

var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess     = 0
	exitUsage       = 1
	exitIOOrParse   = 2
	exitUnsupported = 3
)

func main() {
	var (
		regionFlag      string
		bboxFlag        string
		crsFlag         int
		coordinateFlag  string
		radiusFlag      float64
		shapeFlag       string
		projFlag        int
		filterFlag      string
		filterTransFlag bool
		compressionFlag string
		colormapFlag    string
		batchFlag       bool
		verbose         bool
		showVersion     bool
	)

	flag.StringVar(&regionFlag, "region", "", "Pixel rectangle x,y,w,h")
	flag.StringVar(&bboxFlag, "bbox", "", "World bounding box minX,minY,maxX,maxY")
	flag.IntVar(&crsFlag, "crs", 0, "EPSG code the bbox/coordinate are expressed in")
	flag.StringVar(&coordinateFlag, "coordinate", "", "Center point x,y")
	flag.Float64Var(&radiusFlag, "radius", 0, "Radius around -coordinate, in -crs units")
	flag.StringVar(&shapeFlag, "shape", "square", "Coordinate region shape: square, circle")
	flag.IntVar(&projFlag, "proj", 0, "Destination EPSG for output pixel scale (0 = keep source CRS)")
	flag.StringVar(&filterFlag, "filter", "", "Keep sample values in the closed range lo,hi")
	flag.BoolVar(&filterTransFlag, "filter-transparency", false, "With -colormap, make values outside the colormap's range alpha=0 instead of clamping to the nearest entry")
	flag.StringVar(&compressionFlag, "compression", "none", "TIFF output compression: none, packbits, lzw, deflate, zstd")
	flag.StringVar(&colormapFlag, "colormap", "", "External XML colormap file")
	flag.BoolVar(&batchFlag, "batch", false, "Treat all but the last positional arg as candidate input files; pick the one covering the request and report coverage gaps")
	flag.BoolVar(&verbose, "verbose", false, "Print progress to stderr")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: geotiffkit [flags] <input.tif> <output>\n\n")
		fmt.Fprintf(os.Stderr, "Extract a region from a GeoTIFF. Output format is inferred\n")
		fmt.Fprintf(os.Stderr, "from <output>'s extension: .tif, .png, .webp, .csv, .json, .npy\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("geotiffkit %s (commit %s)\n", version, commit)
		os.Exit(exitSuccess)
	}

	logger := log.New(os.Stderr, "", 0)

	args := flag.Args()
	if len(args) < 2 {
		flag.Usage()
		os.Exit(exitUsage)
	}

	req, err := buildRequest(regionFlag, bboxFlag, coordinateFlag, radiusFlag, shapeFlag,
		crsFlag, filterFlag, filterTransFlag, compressionFlag, colormapFlag, projFlag)
	if err != nil {
		logger.Printf("%v", err)
		os.Exit(exitUsage)
	}
	proj := reproject.NewRegistry()
	req.Proj = proj

	var srcPath, dstPath string
	if batchFlag {
		srcPath, dstPath, err = resolveBatchSource(args, req.Region, proj, logger)
		if err != nil {
			logger.Printf("%v", err)
			os.Exit(exitCodeFor(err))
		}
	} else {
		if len(args) != 2 {
			flag.Usage()
			os.Exit(exitUsage)
		}
		srcPath, dstPath = args[0], args[1]
	}

	if verbose {
		logger.Printf("extracting %s -> %s", srcPath, dstPath)
	}

	res, err := extract.Extract(context.Background(), srcPath, dstPath, req)
	if err != nil {
		logger.Printf("%v", err)
		os.Exit(exitCodeFor(err))
	}

	if verbose {
		logger.Printf("wrote %dx%d pixels, %d bytes -> %s", res.Width, res.Height, res.BytesWritten, dstPath)
	}
}

// resolveBatchSource opens every candidate input (all args but the
// last, which is the output path), logs any geographic coverage gaps
// among them, and returns the path of the source whose own-CRS bounds
// contain the requested bbox/coordinate center. Falls back to the
// first input for pixel-rect requests, which carry no world-space
// anchor to pick a source by.
func resolveBatchSource(args []string, req region.Request, proj *reproject.Registry, logger *log.Logger) (string, string, error) {
	dstPath := args[len(args)-1]
	inputPaths := args[:len(args)-1]
	if len(inputPaths) == 0 {
		return "", "", tiff.RequestError("geotiffkit.resolveBatchSource", fmt.Errorf("-batch requires at least one input file"))
	}

	sources, files, err := batch.OpenAll(inputPaths)
	if err != nil {
		return "", "", err
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	gaps, err := batch.CheckCoverageGaps(sources, proj)
	if err != nil {
		return "", "", err
	}
	if len(gaps) > 0 {
		logger.Printf("WARNING: detected %d geographic hole(s) in input coverage:", len(gaps))
		for i, g := range gaps {
			logger.Printf("  hole %d: lon [%.6f, %.6f], lat [%.6f, %.6f]", i+1, g.MinLon, g.MaxLon, g.MinLat, g.MaxLat)
		}
	}

	switch req.Kind {
	case region.KindBBox:
		cx, cy := (req.MinX+req.MaxX)/2, (req.MinY+req.MaxY)/2
		if s := batch.SourceFor(sources, cx, cy); s != nil {
			return s.Path, dstPath, nil
		}
	case region.KindCoordinate:
		if s := batch.SourceFor(sources, req.CenterX, req.CenterY); s != nil {
			return s.Path, dstPath, nil
		}
	}
	return sources[0].Path, dstPath, nil
}

func exitCodeFor(err error) int {
	switch {
	case tiff.Is(err, tiff.KindRequest):
		return exitUsage
	case tiff.Is(err, tiff.KindIo), tiff.Is(err, tiff.KindFormat), tiff.Is(err, tiff.KindGeo), tiff.Is(err, tiff.KindCodec):
		return exitIOOrParse
	case tiff.Is(err, tiff.KindUnsupported):
		return exitUnsupported
	default:
		return exitIOOrParse
	}
}

func buildRequest(regionFlag, bboxFlag, coordinateFlag string, radius float64, shape string,
	crs int, filterFlag string, filterTrans bool, compression, colormapPath string, proj int) (extract.Request, error) {

	var req extract.Request

	switch {
	case regionFlag != "":
		x, y, w, h, err := parseInts4(regionFlag)
		if err != nil {
			return req, fmt.Errorf("-region: %w", err)
		}
		req.Region = region.Request{Kind: region.KindPixelRect, X: x, Y: y, W: w, H: h}

	case bboxFlag != "":
		minX, minY, maxX, maxY, err := parseFloats4(bboxFlag)
		if err != nil {
			return req, fmt.Errorf("-bbox: %w", err)
		}
		req.Region = region.Request{Kind: region.KindBBox, MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY, CRS: crs}

	case coordinateFlag != "":
		cx, cy, err := parseFloats2(coordinateFlag)
		if err != nil {
			return req, fmt.Errorf("-coordinate: %w", err)
		}
		shapeKind, err := parseShape(shape)
		if err != nil {
			return req, err
		}
		req.Region = region.Request{Kind: region.KindCoordinate, CenterX: cx, CenterY: cy, Radius: radius, Shape: shapeKind, CRS: crs}

	default:
		return req, fmt.Errorf("one of -region, -bbox, -coordinate is required")
	}

	if filterFlag != "" {
		lo, hi, err := parseFloats2(filterFlag)
		if err != nil {
			return req, fmt.Errorf("-filter: %w", err)
		}
		req.Region.FilterSet = true
		req.Region.FilterLo = lo
		req.Region.FilterHi = hi
	}

	compCode, err := parseCompression(compression)
	if err != nil {
		return req, err
	}
	req.OutputCompression = compCode
	req.DestinationEPSG = proj

	if colormapPath != "" {
		f, err := os.Open(colormapPath)
		if err != nil {
			return req, fmt.Errorf("-colormap: %w", err)
		}
		defer f.Close()
		cm, err := colormap.ParseXML(f)
		if err != nil {
			return req, fmt.Errorf("-colormap: %w", err)
		}
		cm.FilterTransparent = filterTrans
		req.Colormap = cm
	}

	return req, nil
}

func parseShape(s string) (region.Shape, error) {
	switch s {
	case "square":
		return region.ShapeSquare, nil
	case "circle":
		return region.ShapeCircle, nil
	default:
		return 0, fmt.Errorf("-shape: unrecognized shape %q (want square or circle)", s)
	}
}

func parseCompression(s string) (uint64, error) {
	switch s {
	case "none":
		return tiff.CompressionNone, nil
	case "packbits":
		return tiff.CompressionPackBits, nil
	case "lzw":
		return tiff.CompressionLZW, nil
	case "deflate":
		return tiff.CompressionDeflate, nil
	case "zstd":
		return tiff.CompressionZStd, nil
	default:
		return 0, fmt.Errorf("-compression: unrecognized codec %q", s)
	}
}

func parseInts4(s string) (a, b, c, d int, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("expected 4 comma-separated values, got %q", s)
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("invalid integer %q", p)
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], vals[3], nil
}

func parseFloats4(s string) (a, b, c, d float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("expected 4 comma-separated values, got %q", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("invalid number %q", p)
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], vals[3], nil
}

func parseFloats2(s string) (a, b float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected 2 comma-separated values, got %q", s)
	}
	va, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number %q", parts[0])
	}
	vb, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number %q", parts[1])
	}
	return va, vb, nil
}
