package tiff

import "testing"

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}

func TestGeoModelTiepointScaleInverse(t *testing.T) {
	ifd := newIFD()
	ifd.Set(TagModelTiepointTag, NewFloatValue(KindDouble, []float64{0, 0, 0, 2600000, 1200000, 0}))
	ifd.Set(TagModelPixelScaleTag, NewFloatValue(KindDouble, []float64{10, 10, 0}))

	g := BuildGeoModel(ifd)
	if !g.Georeferenced {
		t.Fatal("expected georeferenced model")
	}

	wx, wy := g.PixelCenterToWorld(5, 3)
	// pixel (5,3) center is at (5.5, 3.5): x = tiepoint.X + 5.5*10, y = tiepoint.Y - 3.5*10
	wantX := 2600000 + 5.5*10
	wantY := 1200000 - 3.5*10
	if !almostEqual(wx, wantX) || !almostEqual(wy, wantY) {
		t.Fatalf("PixelCenterToWorld = (%v, %v), want (%v, %v)", wx, wy, wantX, wantY)
	}

	px, py, err := g.WorldToPixelCenter(wx, wy)
	if err != nil {
		t.Fatalf("WorldToPixelCenter: %v", err)
	}
	if !almostEqual(px, 5) || !almostEqual(py, 3) {
		t.Fatalf("inverse mismatch: got (%v, %v), want (5, 3)", px, py)
	}
}

func TestGeoModelIdentityWhenUngeoreferenced(t *testing.T) {
	ifd := newIFD()
	g := BuildGeoModel(ifd)
	if g.Georeferenced {
		t.Fatal("expected ungeoreferenced identity model")
	}
	wx, wy := g.PixelCenterToWorld(2, 2)
	if !almostEqual(wx, 2.5) || !almostEqual(wy, 2.5) {
		t.Fatalf("identity model mismatch: (%v, %v)", wx, wy)
	}
}

func TestGeoModelTransformationMatrix(t *testing.T) {
	ifd := newIFD()
	// Pure scale+translate 4x4, row-major: wx=2*px+100, wy=3*py+200.
	m := []float64{
		2, 0, 0, 100,
		0, 3, 0, 200,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	ifd.Set(TagModelTransformationTag, NewFloatValue(KindDouble, m))

	g := BuildGeoModel(ifd)
	wx, wy := g.PixelCenterToWorld(1, 1)
	wantX := 2*1.5 + 100
	wantY := 3*1.5 + 200
	if !almostEqual(wx, wantX) || !almostEqual(wy, wantY) {
		t.Fatalf("got (%v, %v), want (%v, %v)", wx, wy, wantX, wantY)
	}
}

func TestParseEPSGPrefersProjected(t *testing.T) {
	// header [1,1,0,numKeys=2], then geographic=4326, projected=2056.
	geoKeys := []uint16{1, 1, 0, 2,
		gkGeographicTypeGeoKey, 0, 1, 4326,
		gkProjectedCSTypeGeoKey, 0, 1, 2056,
	}
	if got := parseEPSG(geoKeys); got != 2056 {
		t.Fatalf("parseEPSG = %d, want 2056", got)
	}
}
