// Package raster reads and writes the gridded layers exchanged with the GIS
// side of the analysis: study-area inputs, season and covariate maps.
package raster

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
)

// DefaultNoData is the NODATA_value written to grids that do not set one
const DefaultNoData = -9999.0

const earthRadiusKm = 6371.0088

// Geometry describes a regular lon/lat grid. Row 0 is the northernmost row,
// as in the ESRI ASCII layout.
type Geometry struct {
	NCols     int     `json:"ncols" yaml:"ncols"`
	NRows     int     `json:"nrows" yaml:"nrows"`
	XLLCorner float64 `json:"xllcorner" yaml:"xllcorner"`
	YLLCorner float64 `json:"yllcorner" yaml:"yllcorner"`
	CellSize  float64 `json:"cellsize" yaml:"cellsize"`
	NoData    float64 `json:"nodata" yaml:"nodata"`
}

// Validate checks that the geometry describes a non-empty grid
func (g Geometry) Validate() error {
	if g.NCols <= 0 || g.NRows <= 0 {
		return fmt.Errorf("grid must have at least one row and column, got %dx%d", g.NRows, g.NCols)
	}
	if g.CellSize <= 0 {
		return fmt.Errorf("cell size must be positive, got %v", g.CellSize)
	}
	return nil
}

// Len returns the number of cells
func (g Geometry) Len() int {
	return g.NCols * g.NRows
}

// Index returns the position of a cell in row-major order, or -1 when the
// cell is outside the grid
func (g Geometry) Index(row, col int) int {
	if row < 0 || row >= g.NRows || col < 0 || col >= g.NCols {
		return -1
	}
	return row*g.NCols + col
}

// SameShape reports whether two geometries describe the same cells
func (g Geometry) SameShape(o Geometry) bool {
	const eps = 1e-9
	return g.NCols == o.NCols && g.NRows == o.NRows &&
		math.Abs(g.XLLCorner-o.XLLCorner) < eps &&
		math.Abs(g.YLLCorner-o.YLLCorner) < eps &&
		math.Abs(g.CellSize-o.CellSize) < eps
}

// CellCenter returns the longitude and latitude of a cell's centre
func (g Geometry) CellCenter(row, col int) (lon, lat float64) {
	lon = g.XLLCorner + (float64(col)+0.5)*g.CellSize
	lat = g.YLLCorner + (float64(g.NRows-row)-0.5)*g.CellSize
	return lon, lat
}

// CellAreaKm2 returns the area of a cell on the sphere. Cells shrink towards
// the poles, which matters when averaging over a continent-sized grid.
func (g Geometry) CellAreaKm2(row, col int) float64 {
	lon, lat := g.CellCenter(row, col)
	rect := s2.RectFromCenterSize(
		s2.LatLngFromDegrees(lat, lon),
		s2.LatLngFromDegrees(g.CellSize, g.CellSize),
	)
	return rect.Area() * earthRadiusKm * earthRadiusKm
}

// Grid is a single-band raster
type Grid struct {
	Geometry
	Data []float64
}

// NewGrid returns a grid of g filled with NODATA
func NewGrid(g Geometry) *Grid {
	data := make([]float64, g.Len())
	for i := range data {
		data[i] = g.NoData
	}
	return &Grid{Geometry: g, Data: data}
}

// At returns the value of a cell and whether it holds data
func (g *Grid) At(row, col int) (float64, bool) {
	i := g.Index(row, col)
	if i < 0 {
		return 0, false
	}
	v := g.Data[i]
	if v == g.NoData || math.IsNaN(v) {
		return v, false
	}
	return v, true
}

// Set stores v in a cell. NaN is stored as NODATA.
func (g *Grid) Set(row, col int, v float64) error {
	i := g.Index(row, col)
	if i < 0 {
		return fmt.Errorf("cell (%d, %d) outside %dx%d grid", row, col, g.NRows, g.NCols)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = g.NoData
	}
	g.Data[i] = v
	return nil
}

// BandName follows the per-year band naming used by the exported rasters,
// <variable>_<year>
func BandName(variable string, year int) string {
	return fmt.Sprintf("%s_%d", variable, year)
}
