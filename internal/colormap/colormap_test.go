package colormap

import (
	"strings"
	"testing"

	"github.com/hallertau/geotiffkit/internal/tiff"
)

func TestFromEmbedded(t *testing.T) {
	ifd := tiff.NewIFD()
	n := 4 // BitsPerSample=2 -> 2^2 = 4 entries
	raw := make([]uint64, 3*n)
	// R plane: 0, 65535/3, ..., G/B planes zero for simplicity.
	raw[0], raw[1], raw[2], raw[3] = 0, 21845, 43690, 65535
	ifd.Set(tiff.TagColorMap, tiff.NewUintValue(tiff.KindShort, raw))

	cm, err := FromEmbedded(ifd, 2)
	if err != nil {
		t.Fatalf("FromEmbedded: %v", err)
	}
	if len(cm.Entries) != n {
		t.Fatalf("got %d entries, want %d", len(cm.Entries), n)
	}
	if cm.Entries[0].Color.R != 0 {
		t.Errorf("entry0 R = %d, want 0", cm.Entries[0].Color.R)
	}
	if cm.Entries[3].Color.R != 255 {
		t.Errorf("entry3 R = %d, want 255", cm.Entries[3].Color.R)
	}
}

func TestApplyProducesRGBA(t *testing.T) {
	cm := &Colormap{Entries: []Entry{
		{Quantity: 0, Color: RGBA{R: 0, G: 0, B: 0, A: 255}},
		{Quantity: 10, Color: RGBA{R: 255, G: 255, B: 255, A: 255}},
	}}

	src := tiff.NewPixelBuffer(2, 1, 1, 8, tiff.SampleFormatUint)
	src.Pix[0] = 0
	src.Pix[1] = 10

	out, err := Apply(cm, src, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.SamplesPerPixel != 4 || out.BitsPerSample != 8 {
		t.Fatalf("unexpected output shape: spp=%d bps=%d", out.SamplesPerPixel, out.BitsPerSample)
	}
	if out.Pix[0] != 0 || out.Pix[4] != 255 {
		t.Fatalf("got %v", out.Pix)
	}
}

func TestApplyRejectsMultiSample(t *testing.T) {
	cm := &Colormap{Entries: []Entry{{Quantity: 0, Color: RGBA{}}}}
	src := tiff.NewPixelBuffer(1, 1, 3, 8, tiff.SampleFormatUint)
	_, err := Apply(cm, src, nil)
	if !tiff.Is(err, tiff.KindRequest) {
		t.Fatalf("expected KindRequest error, got %v", err)
	}
}

func TestApplyMaskTransparency(t *testing.T) {
	cm := &Colormap{Entries: []Entry{{Quantity: 0, Color: RGBA{R: 10, G: 20, B: 30, A: 255}}}}
	src := tiff.NewPixelBuffer(1, 1, 1, 8, tiff.SampleFormatUint)

	mask := tiff.NewMask(1, 1)
	mask.Set(0, 0, false)

	out, err := Apply(cm, src, mask)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Pix[3] != 0 {
		t.Fatalf("expected alpha 0 for masked-out pixel, got %d", out.Pix[3])
	}
}

func TestColorForInterpolates(t *testing.T) {
	cm := &Colormap{Entries: []Entry{
		{Quantity: 0, Color: RGBA{R: 0, A: 255}},
		{Quantity: 100, Color: RGBA{R: 100, A: 255}},
	}}
	c := cm.colorFor(50)
	if c.R != 50 {
		t.Fatalf("interpolated R = %d, want 50", c.R)
	}
}

func TestColorForFilterTransparency(t *testing.T) {
	cm := &Colormap{
		Entries:           []Entry{{Quantity: 0, Color: RGBA{A: 255}}, {Quantity: 10, Color: RGBA{A: 255}}},
		FilterTransparent: true,
	}
	c := cm.colorFor(20)
	if c.A != 0 {
		t.Fatalf("expected alpha 0 for out-of-range value, got %d", c.A)
	}
}

func TestParseXML(t *testing.T) {
	doc := `<ColorMap>
		<ColorMapEntry color="#000000" quantity="0" opacity="1"/>
		<ColorMapEntry color="#FF0000" quantity="10"/>
		<Unknown foo="bar"/>
	</ColorMap>`

	cm, err := ParseXML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseXML: %v", err)
	}
	if len(cm.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(cm.Entries))
	}
	if cm.Entries[1].Color.R != 255 {
		t.Fatalf("entry1 R = %d, want 255", cm.Entries[1].Color.R)
	}
	if cm.Entries[1].Color.A != 255 {
		t.Fatalf("entry1 A = %d, want 255 (default opacity)", cm.Entries[1].Color.A)
	}
}

func TestParseXMLRejectsOutOfOrder(t *testing.T) {
	doc := `<ColorMap>
		<ColorMapEntry color="#000000" quantity="10"/>
		<ColorMapEntry color="#FFFFFF" quantity="0"/>
	</ColorMap>`
	_, err := ParseXML(strings.NewReader(doc))
	if !tiff.Is(err, tiff.KindFormat) {
		t.Fatalf("expected KindFormat error, got %v", err)
	}
}

func TestParseXMLRejectsBadColor(t *testing.T) {
	doc := `<ColorMap><ColorMapEntry color="notacolor" quantity="0"/></ColorMap>`
	_, err := ParseXML(strings.NewReader(doc))
	if !tiff.Is(err, tiff.KindFormat) {
		t.Fatalf("expected KindFormat error, got %v", err)
	}
}
