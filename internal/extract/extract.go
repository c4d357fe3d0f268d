// Package extract orchestrates a single extract call: open a source
// TIFF, build its GeoModel, resolve the requested region, decode
// pixels, apply mask/colormap, and write the result as TIFF, a tabular
// array, or a raster image, per spec.md §4.9.
package extract

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/hallertau/geotiffkit/internal/array"
	"github.com/hallertau/geotiffkit/internal/colormap"
	"github.com/hallertau/geotiffkit/internal/raster"
	"github.com/hallertau/geotiffkit/internal/region"
	"github.com/hallertau/geotiffkit/internal/tiff"
)

// Request bundles everything a single extract call needs beyond the
// source/destination paths themselves.
type Request struct {
	Region region.Request

	// Proj, when non-nil, resolves coordinate requests expressed in a
	// CRS other than the source image's own, and reprojects output
	// pixel scale when the destination CRS differs (DestinationEPSG
	// field below).
	Proj region.Projector

	// DestinationEPSG, when nonzero, names the CRS pixel output should
	// be expressed in (spec's --proj flag). 0 means "keep source CRS".
	DestinationEPSG int

	// Colormap, when non-nil, is applied after mask resolution.
	Colormap *colormap.Colormap

	// OutputCompression selects the codec for TIFF output; ignored
	// for non-TIFF destinations. Zero value is CompressionNone.
	OutputCompression uint64
}

// Result reports what Extract produced, for callers that want to log
// or verify the outcome without re-opening the destination file.
type Result struct {
	Width, Height int
	BytesWritten  int64
}

// Extract runs the full pipeline against srcPath, writing to dstPath.
// The output format is inferred from dstPath's extension: ".tif"/
// ".tiff" re-encodes as TIFF, ".png"/".webp" renders a raster image
// (applying Colormap first; otherwise a 4-sample 8-bit buffer is
// rendered as RGBA and any other buffer as grayscale from its first
// sample),
// ".csv"/".json"/".npy" exports the array form.
//
// ctx is honored only between pipeline stages (open, decode, encode);
// there is no concurrency within a stage to cancel.
func Extract(ctx context.Context, srcPath, dstPath string, req Request) (*Result, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, tiff.IoError("extract.Extract", err)
	}
	defer f.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hdr, ifds, err := tiff.ReadIFDs(f)
	if err != nil {
		return nil, err
	}
	if len(ifds) == 0 {
		return nil, tiff.FormatError("extract.Extract", fmt.Errorf("no image directories in %s", srcPath))
	}
	ifd := ifds[0]

	model := tiff.BuildGeoModel(ifd)
	if !model.Georeferenced {
		if tfw, err := tiff.ParseTFW(tiff.FindTFW(srcPath)); err == nil && tfw != nil {
			model = tiff.GeoModelFromTFW(tfw)
		}
	}
	if model.EPSG == 0 {
		model.EPSG = tiff.InferEPSG(model, int(ifd.Width()), int(ifd.Height()))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resolved, err := region.Select(ifd, model, req.Proj, req.Region)
	if err != nil {
		return nil, err
	}

	buf, err := tiff.ReadRect(f, hdr.Order, ifd, resolved.Rect)
	if err != nil {
		return nil, err
	}

	if req.Region.FilterSet {
		region.ApplyValueFilter(resolved, buf, req.Region.FilterLo, req.Region.FilterHi)
	}
	buf.Mask = resolved.Mask

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := os.Create(dstPath)
	if err != nil {
		return nil, tiff.IoError("extract.Extract", err)
	}
	removeOnFailure := true
	defer func() {
		out.Close()
		if removeOnFailure {
			os.Remove(dstPath)
		}
	}()

	written, err := writeOutput(out, dstPath, buf, model, resolved, req)
	if err != nil {
		return nil, err
	}
	removeOnFailure = false

	return &Result{Width: buf.Width, Height: buf.Height, BytesWritten: written}, nil
}

func writeOutput(w io.Writer, dstPath string, buf *tiff.PixelBuffer, model *tiff.GeoModel, resolved *region.Resolved, req Request) (int64, error) {
	ext := strings.ToLower(filepath.Ext(dstPath))
	switch ext {
	case ".tif", ".tiff":
		return writeTIFF(w, buf, model, resolved, req)
	case ".png", ".webp":
		return writeRaster(w, ext, buf, req)
	case ".csv":
		return writeArray(w, buf, array.WriteCSV)
	case ".json":
		return writeArray(w, buf, array.WriteJSON)
	case ".npy":
		return writeArray(w, buf, array.WriteNPY)
	default:
		return 0, tiff.UnsupportedError("extract.writeOutput", fmt.Errorf("unrecognized output extension %q", ext))
	}
}

func writeArray(w io.Writer, buf *tiff.PixelBuffer, fn func(io.Writer, *tiff.PixelBuffer) error) (int64, error) {
	// Masked-out pixels are exported with every sample set to zero.
	if buf.Mask != nil && len(buf.Mask.Bits) == buf.Width*buf.Height {
		pixBytes := buf.SamplesPerPixel * buf.BytesPerSample()
		for i, keep := range buf.Mask.Bits {
			if !keep {
				for j := i * pixBytes; j < (i+1)*pixBytes; j++ {
					buf.Pix[j] = 0
				}
			}
		}
	}
	cw := &countingWriter{w: w}
	if err := fn(cw, buf); err != nil {
		return 0, err
	}
	return cw.n, nil
}

func writeRaster(w io.Writer, ext string, buf *tiff.PixelBuffer, req Request) (int64, error) {
	renderBuf := buf
	if req.Colormap != nil {
		colored, err := colormap.Apply(req.Colormap, buf, buf.Mask)
		if err != nil {
			return 0, err
		}
		renderBuf = colored
	}

	format := strings.TrimPrefix(ext, ".")
	enc, err := raster.NewEncoder(format, 85)
	if err != nil {
		return 0, err
	}
	img := raster.ToImage(renderBuf)
	data, err := enc.Encode(img)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	if err != nil {
		return 0, tiff.IoError("extract.writeRaster", err)
	}
	return int64(n), nil
}

// writeTIFF re-encodes buf as a classic TIFF, preserving geotags
// adjusted for the new origin: the top-left pixel of the extracted
// region (resolved.Rect.X, resolved.Rect.Y) must map to the same world
// coordinate it did in the source, with pixel scale unchanged, per
// spec.md §4.9 step 7. When req.DestinationEPSG names another CRS (and
// req.Proj is set), origin and pixel scale are instead re-expressed in
// that CRS by reprojectGeoTransform.
func writeTIFF(w io.Writer, buf *tiff.PixelBuffer, model *tiff.GeoModel, resolved *region.Resolved, req Request) (int64, error) {
	renderBuf := buf
	if req.Colormap != nil {
		colored, err := colormap.Apply(req.Colormap, buf, buf.Mask)
		if err != nil {
			return 0, err
		}
		renderBuf = colored
	}

	compression := req.OutputCompression
	if compression == 0 {
		compression = tiff.CompressionNone
	}
	codec, err := tiff.CodecFor(compression)
	if err != nil {
		return 0, err
	}

	order := binary.LittleEndian
	predictor := tiff.PredictorNone
	if compression == tiff.CompressionLZW || compression == tiff.CompressionDeflate {
		predictor = tiff.PredictorHorizontal
	}

	offTag, cntTag, chunks, _, err := tiff.WriteChunks(renderBuf, codec, predictor, order, 0, 0, 0)
	if err != nil {
		return 0, err
	}

	outIFD := tiff.NewIFD()
	outIFD.Set(tiff.TagImageWidth, tiff.NewUintValue(tiff.KindLong, []uint64{uint64(renderBuf.Width)}))
	outIFD.Set(tiff.TagImageLength, tiff.NewUintValue(tiff.KindLong, []uint64{uint64(renderBuf.Height)}))
	outIFD.Set(tiff.TagBitsPerSample, tiff.NewUintValue(tiff.KindShort, bitsPerSampleArray(renderBuf)))
	outIFD.Set(tiff.TagSamplesPerPixel, tiff.NewUintValue(tiff.KindShort, []uint64{uint64(renderBuf.SamplesPerPixel)}))
	outIFD.Set(tiff.TagCompression, tiff.NewUintValue(tiff.KindShort, []uint64{compression}))
	outIFD.Set(tiff.TagPredictor, tiff.NewUintValue(tiff.KindShort, []uint64{uint64(predictor)}))
	photometric := tiff.PhotometricBlackIsZero
	if renderBuf.SamplesPerPixel == 4 {
		photometric = tiff.PhotometricRGB
	}
	outIFD.Set(tiff.TagPhotometricInterpretation, tiff.NewUintValue(tiff.KindShort, []uint64{uint64(photometric)}))
	outIFD.Set(tiff.TagRowsPerStrip, tiff.NewUintValue(tiff.KindLong, []uint64{uint64(renderBuf.Height)}))
	outIFD.Set(tiff.TagSampleFormat, tiff.NewUintValue(tiff.KindShort, sampleFormatArray(renderBuf)))

	if model.Georeferenced {
		newOriginX, newOriginY := model.PixelCenterToWorld(float64(resolved.Rect.X)-0.5, float64(resolved.Rect.Y)-0.5)
		scaleX, scaleY := model.A, -model.E
		outEPSG := model.EPSG

		if req.DestinationEPSG != 0 && model.EPSG != 0 && req.DestinationEPSG != model.EPSG && req.Proj != nil {
			var err error
			newOriginX, newOriginY, scaleX, scaleY, err = reprojectGeoTransform(req.Proj, model, resolved.Rect, req.DestinationEPSG)
			if err != nil {
				return 0, err
			}
			outEPSG = req.DestinationEPSG
		}

		outIFD.Set(tiff.TagModelPixelScaleTag, tiff.NewFloatValue(tiff.KindDouble, []float64{scaleX, scaleY, 0}))
		outIFD.Set(tiff.TagModelTiepointTag, tiff.NewFloatValue(tiff.KindDouble, []float64{0, 0, 0, newOriginX, newOriginY, 0}))
		if outEPSG != 0 {
			outIFD.Set(tiff.TagGeoKeyDirectoryTag, tiff.NewUintValue(tiff.KindShort, uint16sToUint64s(tiff.BuildGeoKeyDirectory(outEPSG))))
		}
	}

	iw := tiff.NewIFDWriter(order, tiff.VariantClassic)
	cw := &countingWriter{w: w}
	if _, err := iw.WriteHeader(cw, 8); err != nil {
		return 0, err
	}
	pixels := &tiff.PixelData{OffsetsTag: offTag, ByteCountsTag: cntTag, Chunks: chunks}
	if _, err := iw.WriteIFD(cw, 8, outIFD, pixels, 0); err != nil {
		return 0, err
	}
	return cw.n, nil
}

// reprojectGeoTransform re-expresses the output raster's origin and
// pixel scale in destEPSG, without resampling the pixel grid itself:
// it projects the region's top-left corner plus one-pixel steps along
// each axis and derives the new scale from the projected spacing.
// This keeps -proj within the "bbox/point neighborhood" reprojection
// the core already does, rather than a full per-pixel image warp.
func reprojectGeoTransform(proj region.Projector, model *tiff.GeoModel, rect tiff.Rect, destEPSG int) (originX, originY, scaleX, scaleY float64, err error) {
	baseX, baseY := float64(rect.X)-0.5, float64(rect.Y)-0.5
	x0, y0 := model.PixelCenterToWorld(baseX, baseY)
	x1, y1 := model.PixelCenterToWorld(baseX+1, baseY)
	x2, y2 := model.PixelCenterToWorld(baseX, baseY+1)

	pts, err := proj.Project([]tiff.Point{{X: x0, Y: y0}, {X: x1, Y: y1}, {X: x2, Y: y2}}, model.EPSG, destEPSG)
	if err != nil {
		return 0, 0, 0, 0, err
	}

	origin, stepX, stepY := pts[0], pts[1], pts[2]
	scaleX = math.Hypot(stepX.X-origin.X, stepX.Y-origin.Y)
	scaleY = math.Hypot(stepY.X-origin.X, stepY.Y-origin.Y)
	return origin.X, origin.Y, scaleX, scaleY, nil
}

func uint16sToUint64s(vals []uint16) []uint64 {
	out := make([]uint64, len(vals))
	for i, v := range vals {
		out[i] = uint64(v)
	}
	return out
}

func bitsPerSampleArray(buf *tiff.PixelBuffer) []uint64 {
	out := make([]uint64, buf.SamplesPerPixel)
	for i := range out {
		out[i] = uint64(buf.BitsPerSample)
	}
	return out
}

func sampleFormatArray(buf *tiff.PixelBuffer) []uint64 {
	out := make([]uint64, buf.SamplesPerPixel)
	for i := range out {
		out[i] = uint64(buf.SampleFormat)
	}
	return out
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil {
		return n, tiff.IoError("extract.countingWriter.Write", err)
	}
	return n, nil
}
