package tiff

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Rect is a pixel rectangle in image space, (X,Y) top-left, W/H extent.
type Rect struct {
	X, Y, W, H int
}

// Clamp intersects r with the [0,width) x [0,height) image bounds.
func (r Rect) Clamp(width, height int) Rect {
	x0, y0 := r.X, r.Y
	x1, y1 := r.X+r.W, r.Y+r.H
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > width {
		x1 = width
	}
	if y1 > height {
		y1 = height
	}
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// ReadRect implements spec.md §4.5: given a source, its byte order,
// and a parsed IFD, materialize the pixel rectangle rect (clamped to
// the image bounds) as a PixelBuffer, walking only the strips/tiles
// that intersect it.
func ReadRect(r io.ReaderAt, order binary.ByteOrder, ifd *IFD, rect Rect) (*PixelBuffer, error) {
	const op = "tiff.ReadRect"

	width, height := int(ifd.Width()), int(ifd.Height())
	rect = rect.Clamp(width, height)

	spp := int(ifd.SamplesPerPixel())
	bpsList := ifd.BitsPerSample()
	bps := 8
	if len(bpsList) > 0 {
		bps = int(bpsList[0])
	}
	bytesPerSample := bps / 8
	if bytesPerSample == 0 {
		bytesPerSample = 1
	}

	sampleFormats := ifd.SampleFormat()
	sampleFormat := SampleFormatUint
	if len(sampleFormats) > 0 {
		sampleFormat = int(sampleFormats[0])
	}

	codec, err := CodecFor(uint64(ifd.Compression()))
	if err != nil {
		return nil, err
	}
	predictor := int(ifd.Predictor())

	buf := NewPixelBuffer(rect.W, rect.H, spp, bps, sampleFormat)
	if rect.W == 0 || rect.H == 0 {
		return buf, nil
	}

	planar := int(ifd.PlanarConfig())
	separate := planar == 2

	planes := 1
	if separate {
		planes = spp
	}

	readChunk := func(offset, size uint64) ([]byte, error) {
		if size == 0 {
			return nil, nil
		}
		raw := make([]byte, size)
		if _, err := r.ReadAt(raw, int64(offset)); err != nil {
			return nil, IoError(op, err)
		}
		dec, err := codec.Decode(raw)
		if err != nil {
			return nil, err
		}
		return dec, nil
	}

	if ifd.IsTiled() {
		tileW, tileH := int(ifd.TileWidth()), int(ifd.TileLength())
		if tileW == 0 || tileH == 0 {
			return nil, FormatError(op, fmt.Errorf("tiled image with zero tile dimension"))
		}
		offsets := ifd.TileOffsets()
		byteCounts := ifd.TileByteCounts()
		tilesAcross := ceilDiv(width, tileW)
		tilesDown := ceilDiv(height, tileH)
		tilesPerPlane := tilesAcross * tilesDown

		tx0, tx1 := rect.X/tileW, ceilDiv(rect.X+rect.W, tileW)
		ty0, ty1 := rect.Y/tileH, ceilDiv(rect.Y+rect.H, tileH)

		chunkSamplesPerPixel := spp
		if separate {
			chunkSamplesPerPixel = 1
		}

		for plane := 0; plane < planes; plane++ {
			for ty := ty0; ty < ty1; ty++ {
				for tx := tx0; tx < tx1; tx++ {
					idx := plane*tilesPerPlane + ty*tilesAcross + tx
					if idx >= len(offsets) || idx >= len(byteCounts) {
						continue
					}
					dec, err := readChunk(offsets[idx], byteCounts[idx])
					if err != nil {
						return nil, err
					}
					if dec == nil {
						continue
					}
					if predictor == PredictorHorizontal {
						UndoPredictor(dec, tileW, chunkSamplesPerPixel, bps, order)
					}
					channel := -1
					if separate {
						channel = plane
					}
					blitChunk(buf, rect, dec, tx*tileW, ty*tileH, tileW, tileH,
						chunkSamplesPerPixel, bytesPerSample, channel, spp)
				}
			}
		}
		return buf, nil
	}

	rowsPerStrip := int(ifd.RowsPerStrip())
	if rowsPerStrip == 0 {
		rowsPerStrip = height
	}
	offsets := ifd.StripOffsets()
	byteCounts := ifd.StripByteCounts()
	stripsPerPlane := ceilDiv(height, rowsPerStrip)

	chunkSamplesPerPixel := spp
	if separate {
		chunkSamplesPerPixel = 1
	}

	s0 := rect.Y / rowsPerStrip
	s1 := ceilDiv(rect.Y+rect.H, rowsPerStrip)

	for plane := 0; plane < planes; plane++ {
		for s := s0; s < s1; s++ {
			idx := plane*stripsPerPlane + s
			if idx >= len(offsets) || idx >= len(byteCounts) {
				continue
			}
			dec, err := readChunk(offsets[idx], byteCounts[idx])
			if err != nil {
				return nil, err
			}
			if dec == nil {
				continue
			}
			stripY := s * rowsPerStrip
			stripH := rowsPerStrip
			if stripY+stripH > height {
				stripH = height - stripY
			}
			if predictor == PredictorHorizontal {
				UndoPredictor(dec, width, chunkSamplesPerPixel, bps, order)
			}
			channel := -1
			if separate {
				channel = plane
			}
			blitChunk(buf, rect, dec, 0, stripY, width, stripH,
				chunkSamplesPerPixel, bytesPerSample, channel, spp)
		}
	}
	return buf, nil
}

// blitChunk copies the portion of a decoded strip/tile that overlaps
// rect into dst, which represents rect itself (dst.Pix row 0 == rect.Y).
// chunkSamplesPerPixel/bytesPerSample describe the chunk's own layout;
// channel >= 0 means the chunk is a single separate-plane channel that
// must be interleaved into sample index `channel` of dst's spp-wide
// pixels, leaving the other channels as already written by other calls.
func blitChunk(dst *PixelBuffer, rect Rect, chunk []byte, chunkX, chunkY, chunkW, chunkH,
	chunkSamplesPerPixel, bytesPerSample, channel, dstSamplesPerPixel int) {

	ix0 := max(rect.X, chunkX)
	iy0 := max(rect.Y, chunkY)
	ix1 := min(rect.X+rect.W, chunkX+chunkW)
	iy1 := min(rect.Y+rect.H, chunkY+chunkH)
	if ix1 <= ix0 || iy1 <= iy0 {
		return
	}

	chunkStride := chunkW * chunkSamplesPerPixel * bytesPerSample
	dstStride := dst.Stride()

	for y := iy0; y < iy1; y++ {
		srcRowOff := (y-chunkY)*chunkStride + (ix0-chunkX)*chunkSamplesPerPixel*bytesPerSample
		dstRowOff := (y-rect.Y)*dstStride + (ix0-rect.X)*dstSamplesPerPixel*bytesPerSample
		if srcRowOff < 0 || srcRowOff+((ix1-ix0)*chunkSamplesPerPixel*bytesPerSample) > len(chunk) {
			continue
		}
		if channel < 0 {
			n := (ix1 - ix0) * dstSamplesPerPixel * bytesPerSample
			copy(dst.Pix[dstRowOff:dstRowOff+n], chunk[srcRowOff:srcRowOff+n])
			continue
		}
		// Separate-plane: one sample per pixel in chunk, interleaved
		// into sample slot `channel` of dst's pixels.
		for x := ix0; x < ix1; x++ {
			s := srcRowOff + (x-ix0)*bytesPerSample
			d := dstRowOff + (x-ix0)*dstSamplesPerPixel*bytesPerSample + channel*bytesPerSample
			copy(dst.Pix[d:d+bytesPerSample], chunk[s:s+bytesPerSample])
		}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// WriteChunks partitions a full-image PixelBuffer into strips (or
// tiles, if tileW/tileH > 0) and encodes each through codec, returning
// the PixelData the IFDWriter embeds. Always produces chunky-planar
// output: PlanarConfiguration=separate is a read-side accommodation
// only, matching spec.md §4.9's write path which re-encodes extracted
// regions as ordinary chunky TIFFs.
func WriteChunks(buf *PixelBuffer, codec Codec, predictor int, order binary.ByteOrder,
	rowsPerStrip int, tileW, tileH int) (offsetsTag, byteCountsTag Tag, chunks [][]byte, rowsOrTileDims int, err error) {

	bytesPerSample := buf.BytesPerSample()

	if tileW > 0 && tileH > 0 {
		tilesAcross := ceilDiv(buf.Width, tileW)
		tilesDown := ceilDiv(buf.Height, tileH)
		for ty := 0; ty < tilesDown; ty++ {
			for tx := 0; tx < tilesAcross; tx++ {
				tile := extractTile(buf, tx*tileW, ty*tileH, tileW, tileH)
				if predictor == PredictorHorizontal {
					ApplyPredictor(tile, tileW, buf.SamplesPerPixel, buf.BitsPerSample, order)
				}
				enc, e := codec.Encode(tile)
				if e != nil {
					return 0, 0, nil, 0, e
				}
				chunks = append(chunks, enc)
			}
		}
		return TagTileOffsets, TagTileByteCounts, chunks, tileH, nil
	}

	if rowsPerStrip <= 0 {
		rowsPerStrip = buf.Height
	}
	stride := buf.Stride()
	for y := 0; y < buf.Height; y += rowsPerStrip {
		h := rowsPerStrip
		if y+h > buf.Height {
			h = buf.Height - y
		}
		strip := make([]byte, h*stride)
		copy(strip, buf.Pix[y*stride:(y+h)*stride])
		if predictor == PredictorHorizontal {
			ApplyPredictor(strip, buf.Width, buf.SamplesPerPixel, buf.BitsPerSample, order)
		}
		enc, e := codec.Encode(strip)
		if e != nil {
			return 0, 0, nil, 0, e
		}
		chunks = append(chunks, enc)
	}
	_ = bytesPerSample
	return TagStripOffsets, TagStripByteCounts, chunks, rowsPerStrip, nil
}

// extractTile copies a tileW x tileH region from buf into a
// zero-padded tile-sized buffer, for edge tiles that run past the
// image bounds (spec.md §4.5 edge-tile handling, mirrored for writes).
func extractTile(buf *PixelBuffer, x0, y0, tileW, tileH int) []byte {
	spp := buf.SamplesPerPixel
	bytesPerSample := buf.BytesPerSample()
	rowBytes := tileW * spp * bytesPerSample
	out := make([]byte, tileH*rowBytes)
	srcStride := buf.Stride()
	copyW := min(tileW, buf.Width-x0)
	copyH := min(tileH, buf.Height-y0)
	if copyW <= 0 || copyH <= 0 {
		return out
	}
	n := copyW * spp * bytesPerSample
	for row := 0; row < copyH; row++ {
		srcOff := (y0+row)*srcStride + x0*spp*bytesPerSample
		dstOff := row * rowBytes
		copy(out[dstOff:dstOff+n], buf.Pix[srcOff:srcOff+n])
	}
	return out
}
