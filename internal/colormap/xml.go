package colormap

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hallertau/geotiffkit/internal/tiff"
)

// colorMapDoc is the minimal structure this parser understands; unknown
// elements and attributes elsewhere in the document are ignored per
// spec's "parser ignores unknown elements" rule, since we only declare
// the fields we care about and let encoding/xml skip the rest.
type colorMapDoc struct {
	Entries []colorMapEntryXML `xml:"ColorMapEntry"`
}

type colorMapEntryXML struct {
	Color    string  `xml:"color,attr"`
	Quantity float64 `xml:"quantity,attr"`
	Opacity  *float64 `xml:"opacity,attr"`
}

// ParseXML reads an SLD-like <ColorMapEntry color="#RRGGBB"
// quantity="v" opacity="o"/> document from r. Entries must already be
// in ascending quantity order; opacity defaults to 1.0 when absent.
func ParseXML(r io.Reader) (*Colormap, error) {
	var doc colorMapDoc
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, tiff.FormatError("colormap.ParseXML", err)
	}

	cm := &Colormap{Entries: make([]Entry, 0, len(doc.Entries))}
	prevQuantity := negInf
	for _, e := range doc.Entries {
		rgb, err := parseHexColor(e.Color)
		if err != nil {
			return nil, tiff.FormatError("colormap.ParseXML", err)
		}
		opacity := 1.0
		if e.Opacity != nil {
			opacity = *e.Opacity
		}
		if e.Quantity < prevQuantity {
			return nil, tiff.FormatError("colormap.ParseXML", fmt.Errorf("ColorMapEntry quantity %v out of ascending order", e.Quantity))
		}
		prevQuantity = e.Quantity

		rgb.A = uint8(opacity * 255)
		cm.Entries = append(cm.Entries, Entry{Quantity: e.Quantity, Color: rgb})
	}
	return cm, nil
}

const negInf = -1e308

func parseHexColor(s string) (RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return RGBA{}, fmt.Errorf("invalid color %q: expected #RRGGBB", s)
	}
	r, err := strconv.ParseUint(s[0:2], 16, 8)
	if err != nil {
		return RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	g, err := strconv.ParseUint(s[2:4], 16, 8)
	if err != nil {
		return RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	b, err := strconv.ParseUint(s[4:6], 16, 8)
	if err != nil {
		return RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}, nil
}
