// Package reproject implements the Projector collaborator: conversion of
// point coordinates between EPSG coordinate reference systems, routed
// through WGS84 as a hub CRS.
package reproject

import (
	"fmt"

	"github.com/hallertau/geotiffkit/internal/tiff"
)

// crs converts between its own coordinate space and WGS84 longitude/latitude.
type crs interface {
	toWGS84(x, y float64) (lon, lat float64)
	fromWGS84(lon, lat float64) (x, y float64)
}

// Registry projects point sets between EPSG codes via WGS84.
type Registry struct {
	crses map[int]crs
}

// NewRegistry returns a Registry pre-populated with the CRSes this module
// supports: EPSG:4326 (WGS84 geographic), EPSG:3857 (Web Mercator), and
// EPSG:2056 (Swiss LV95).
func NewRegistry() *Registry {
	return &Registry{
		crses: map[int]crs{
			4326: wgs84Identity{},
			3857: webMercator{},
			2056: swissLV95{},
		},
	}
}

// Supports reports whether epsg is one of the CRSes this registry knows.
func (r *Registry) Supports(epsg int) bool {
	_, ok := r.crses[epsg]
	return ok
}

// Project converts points from fromEPSG to toEPSG, routing through WGS84
// when the two CRSes differ. This is the Projector collaborator signature
// the extraction core depends on; the core treats it as total and never
// inspects the CRSes directly.
func (r *Registry) Project(points []tiff.Point, fromEPSG, toEPSG int) ([]tiff.Point, error) {
	if fromEPSG == toEPSG {
		out := make([]tiff.Point, len(points))
		copy(out, points)
		return out, nil
	}

	from, ok := r.crses[fromEPSG]
	if !ok {
		return nil, tiff.GeoError("reproject.Project", fmt.Errorf("unsupported source EPSG:%d", fromEPSG))
	}
	to, ok := r.crses[toEPSG]
	if !ok {
		return nil, tiff.GeoError("reproject.Project", fmt.Errorf("unsupported target EPSG:%d", toEPSG))
	}

	out := make([]tiff.Point, len(points))
	for i, p := range points {
		lon, lat := from.toWGS84(p.X, p.Y)
		x, y := to.fromWGS84(lon, lat)
		out[i] = tiff.Point{X: x, Y: y}
	}
	return out, nil
}

// NearestProjectedEPSG returns a projected (metric) CRS suitable for
// interpreting a linear-unit radius near the given WGS84 point, per
// spec's radius-units open question: a geographic request CRS needs a
// projected neighborhood to give "meters" meaning. Web Mercator is the
// default global choice; Swiss LV95 is preferred when the point falls
// inside its usable extent.
func (r *Registry) NearestProjectedEPSG(lon, lat float64) int {
	if lon >= 5.9 && lon <= 10.6 && lat >= 45.7 && lat <= 47.9 {
		return 2056
	}
	return 3857
}
