package raster

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadASCII(t *testing.T) {
	in := `ncols 3
nrows 2
xllcorner     30.0
yllcorner     -5.0
cellsize      0.5
NODATA_value  -9999
1 2 3
4 -9999 6
`
	g, err := ReadASCII(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 3, g.NCols)
	assert.Equal(t, 2, g.NRows)
	assert.Equal(t, []float64{1, 2, 3, 4, -9999, 6}, g.Data)

	v, ok := g.At(1, 2)
	assert.True(t, ok)
	assert.Equal(t, 6.0, v)

	_, ok = g.At(1, 1)
	assert.False(t, ok)
	_, ok = g.At(2, 0)
	assert.False(t, ok)
}

func TestReadASCIICenterReference(t *testing.T) {
	in := "ncols 1\nnrows 1\nxllcenter 10.5\nyllcenter 20.5\ncellsize 1\n7\n"
	g, err := ReadASCII(strings.NewReader(in))
	require.NoError(t, err)
	assert.InDelta(t, 10, g.XLLCorner, 1e-12)
	assert.InDelta(t, 20, g.YLLCorner, 1e-12)
	assert.Equal(t, DefaultNoData, g.NoData)
}

func TestReadASCIIErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		msg  string
	}{
		{"missing cellsize", "ncols 1\nnrows 1\n1\n", "missing cellsize"},
		{"too few cells", "ncols 2\nnrows 2\ncellsize 1\n1 2 3\n", "expected 4 cells"},
		{"too many cells", "ncols 1\nnrows 1\ncellsize 1\n1 2\n", "more than 1 cells"},
		{"unknown key", "ncols 1\nnrows 1\nbands 3\ncellsize 1\n1\n", "unknown header key"},
		{"bad header value", "ncols one\nnrows 1\ncellsize 1\n1\n", "header ncols"},
		{"empty grid", "ncols 0\nnrows 1\ncellsize 1\n", "at least one row"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadASCII(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	g := NewGrid(Geometry{NCols: 4, NRows: 3, XLLCorner: -17.5, YLLCorner: -35, CellSize: 0.25, NoData: -9999})
	require.NoError(t, g.Set(0, 0, 101))
	require.NoError(t, g.Set(2, 3, 12.125))
	require.NoError(t, g.Set(1, 1, math.NaN()))
	assert.Error(t, g.Set(3, 0, 1))

	for _, name := range []string{"plain.asc", "sub/dir/compressed.asc.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, WriteASCIIFile(path, g))

			got, err := ReadASCIIFile(path)
			require.NoError(t, err)
			assert.True(t, g.SameShape(got.Geometry))
			assert.Equal(t, g.Data, got.Data)
		})
	}
}

func TestWriteASCIIHeader(t *testing.T) {
	g := NewGrid(Geometry{NCols: 2, NRows: 1, CellSize: 1, NoData: -9999})
	require.NoError(t, g.Set(0, 1, 3.5))

	var buf bytes.Buffer
	require.NoError(t, WriteASCII(&buf, g))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "ncols 2", lines[0])
	assert.Equal(t, "NODATA_value  -9999", lines[5])
	assert.Equal(t, "-9999 3.5", lines[6])
}

func TestCellCenterAndArea(t *testing.T) {
	geo := Geometry{NCols: 360, NRows: 180, XLLCorner: -180, YLLCorner: -90, CellSize: 1}

	lon, lat := geo.CellCenter(0, 0)
	assert.InDelta(t, -179.5, lon, 1e-12)
	assert.InDelta(t, 89.5, lat, 1e-12)

	lon, lat = geo.CellCenter(179, 359)
	assert.InDelta(t, 179.5, lon, 1e-12)
	assert.InDelta(t, -89.5, lat, 1e-12)

	// a one-degree cell at the equator is roughly 111 km on a side
	equator := geo.CellAreaKm2(90, 0)
	assert.InDelta(t, 111.2*111.2, equator, 50)

	// and shrinks with the cosine of latitude
	sixty := geo.CellAreaKm2(29, 0)
	assert.InDelta(t, 0.5, sixty/equator, 0.02)
}

func TestBandName(t *testing.T) {
	assert.Equal(t, "onset_1_2007", BandName("onset_1", 2007))
}
