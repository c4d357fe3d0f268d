// Command tiffinfo prints a TIFF/BigTIFF file's header, directory
// tags, and recovered GeoModel, for inspecting a file before running
// geotiffkit against it.
package main

import (
	"fmt"
	"os"

	"github.com/hallertau/geotiffkit/internal/tiff"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: tiffinfo <file.tif>\n")
		os.Exit(1)
	}
	path := os.Args[1]

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	hdr, ifds, err := tiff.ReadIFDs(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	variant := "classic TIFF"
	if hdr.Variant == tiff.VariantBig {
		variant = "BigTIFF"
	}
	fmt.Printf("File: %s\n", path)
	fmt.Printf("Variant: %s\n", variant)
	fmt.Printf("Directories: %d\n", len(ifds))

	for i, ifd := range ifds {
		fmt.Printf("\nIFD %d:\n", i)
		fmt.Printf("  Size: %d x %d\n", ifd.Width(), ifd.Height())
		fmt.Printf("  SamplesPerPixel: %d, BitsPerSample: %v\n", ifd.SamplesPerPixel(), ifd.BitsPerSample())
		fmt.Printf("  Compression: %s\n", compressionName(ifd.Compression()))
		fmt.Printf("  Photometric: %d, Predictor: %d\n", ifd.Photometric(), ifd.Predictor())
		if ifd.IsTiled() {
			fmt.Printf("  Layout: tiled %dx%d\n", ifd.TileWidth(), ifd.TileLength())
		} else {
			fmt.Printf("  Layout: stripped, %d rows/strip\n", ifd.RowsPerStrip())
		}
		if nodata := ifd.NoData(); nodata != "" {
			fmt.Printf("  NoData: %s\n", nodata)
		}

		model := tiff.BuildGeoModel(ifd)
		if model.Georeferenced {
			fmt.Printf("  GeoModel: A=%g B=%g C=%g D=%g E=%g F=%g\n",
				model.A, model.B, model.C, model.D, model.E, model.F)
			if model.EPSG != 0 {
				fmt.Printf("  EPSG: %d\n", model.EPSG)
			} else {
				fmt.Printf("  EPSG: unknown (no recognizable GeoKey)\n")
			}
			minX, maxY := model.PixelCenterToWorld(-0.5, -0.5)
			maxX, minY := model.PixelCenterToWorld(float64(ifd.Width())-0.5, float64(ifd.Height())-0.5)
			fmt.Printf("  Bounds: X=[%g, %g], Y=[%g, %g]\n", minX, maxX, minY, maxY)
		} else {
			fmt.Printf("  GeoModel: not georeferenced\n")
		}
	}
}

func compressionName(c uint16) string {
	switch uint64(c) {
	case tiff.CompressionNone:
		return "none"
	case tiff.CompressionPackBits:
		return "packbits"
	case tiff.CompressionLZW:
		return "lzw"
	case tiff.CompressionDeflate:
		return "deflate"
	case tiff.CompressionZStd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown (%d)", c)
	}
}
