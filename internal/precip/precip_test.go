package precip

import (
	"bytes"
	"compress/gzip"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesValidate(t *testing.T) {
	start := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, NewSeries(start, []float64{0, 1.5, 3}).Validate())
	assert.ErrorIs(t, NewSeries(start, nil).Validate(), ErrEmptySeries)
	assert.ErrorIs(t, NewSeries(start, []float64{0, -0.1}).Validate(), ErrNegativeValue)
}

func TestSeriesIndexing(t *testing.T) {
	s := NewSeries(time.Date(2003, 12, 30, 15, 4, 0, 0, time.UTC), make([]float64, 10))

	assert.Equal(t, time.Date(2003, 12, 30, 0, 0, 0, 0, time.UTC), s.Start)
	assert.Equal(t, time.Date(2004, 1, 8, 0, 0, 0, 0, time.UTC), s.End())
	assert.Equal(t, 2, s.IndexOf(time.Date(2004, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, -1, s.IndexOf(time.Date(2003, 12, 29, 0, 0, 0, 0, time.UTC)))

	w, ok := s.Window(2, 5)
	assert.True(t, ok)
	assert.Len(t, w, 3)

	_, ok = s.Window(-1, 5)
	assert.False(t, ok)
	_, ok = s.Window(8, 11)
	assert.False(t, ok)
}

func TestLabelRoundTrip(t *testing.T) {
	row, col, err := ParseLabel(Label(12, 345))
	require.NoError(t, err)
	assert.Equal(t, 12, row)
	assert.Equal(t, 345, col)

	_, _, err = ParseLabel("nope")
	assert.Error(t, err)
}

func TestCSVRoundTrip(t *testing.T) {
	pixels, err := SynthesizeGrid(2, 2, SynthConfig{StartYear: 2001, Years: 2, NoiseSD: 0.5, Seed: 3})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, pixels))

	got, err := LoadCSVFromReader(&buf, nil)
	require.NoError(t, err)
	require.Len(t, got, 4)

	for i := range pixels {
		assert.Equal(t, pixels[i].Label(), got[i].Label())
		assert.True(t, pixels[i].Series.Start.Equal(got[i].Series.Start))
		require.Equal(t, pixels[i].Series.Len(), got[i].Series.Len())
		assert.Equal(t, pixels[i].Series.Values, got[i].Series.Values)
	}
}

func TestLoadCSVRowOrderDoesNotMatter(t *testing.T) {
	in := strings.Join([]string{
		"row,col,date,precip",
		"0,1,2001-01-02,2.5",
		"0,0,2001-01-01,1",
		"0,1,2001-01-01,0",
		"0,0,2001-01-02,4",
	}, "\n")

	pixels, err := LoadCSVFromReader(strings.NewReader(in), nil)
	require.NoError(t, err)
	require.Len(t, pixels, 2)
	assert.Equal(t, []float64{1, 4}, pixels[0].Series.Values)
	assert.Equal(t, []float64{0, 2.5}, pixels[1].Series.Values)
}

func TestLoadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		msg  string
	}{
		{
			name: "missing column",
			in:   "row,col,day,precip\n0,0,2001-01-01,1\n",
			msg:  `missing column "date"`,
		},
		{
			name: "bad date",
			in:   "row,col,date,precip\n0,0,01/01/2001,1\n",
			msg:  "invalid date",
		},
		{
			name: "bad value",
			in:   "row,col,date,precip\n0,0,2001-01-01,wet\n",
			msg:  "line 2: invalid value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSVFromReader(strings.NewReader(tt.in), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoadCSVFlagsBadPixels(t *testing.T) {
	nodata := -9999.0
	good := "0,0,2001-01-01,1\n0,0,2001-01-02,2\n0,0,2001-01-03,0\n"

	tests := []struct {
		name string
		bad  string
		opts *CSVOptions
		err  error
		msg  string
	}{
		{
			name: "gap",
			bad:  "0,1,2001-01-01,1\n0,1,2001-01-03,1\n",
			err:  ErrGap,
			msg:  "2001-01-02",
		},
		{
			name: "duplicate day",
			bad:  "0,1,2001-01-01,1\n0,1,2001-01-01,1\n",
			msg:  "duplicate date",
		},
		{
			name: "negative value",
			bad:  "0,1,2001-01-01,-1\n",
			err:  ErrNegativeValue,
		},
		{
			name: "no data marker",
			bad:  "0,1,2001-01-01,2\n0,1,2001-01-02,-9999\n",
			opts: &CSVOptions{RowColumn: "row", ColColumn: "col", DateColumn: "date", ValueColumn: "precip", DateFormat: "2006-01-02", Delimiter: ',', NoDataValue: &nodata},
			err:  ErrNoData,
			msg:  "2001-01-02",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pixels, err := LoadCSVFromReader(strings.NewReader("row,col,date,precip\n"+good+tt.bad), tt.opts)
			require.NoError(t, err)
			require.Len(t, pixels, 2)

			assert.NoError(t, pixels[0].Err())
			assert.Equal(t, []float64{1, 2, 0}, pixels[0].Series.Values)

			bad := pixels[1]
			assert.Equal(t, "0_1", bad.Label())
			require.Error(t, bad.LoadErr)
			assert.Equal(t, bad.LoadErr, bad.Err())
			if tt.err != nil {
				assert.ErrorIs(t, bad.LoadErr, tt.err)
			}
			if tt.msg != "" {
				assert.Contains(t, bad.LoadErr.Error(), tt.msg)
			}
		})
	}
}

func TestLoadCSVGapKeepsSpan(t *testing.T) {
	pixels, err := LoadCSVFromReader(strings.NewReader("row,col,date,precip\n0,0,2001-01-01,1\n0,0,2001-01-04,3\n"), nil)
	require.NoError(t, err)
	require.Len(t, pixels, 1)

	s := pixels[0].Series
	require.Equal(t, 4, s.Len())
	assert.Equal(t, 1.0, s.Values[0])
	assert.True(t, math.IsNaN(s.Values[1]))
	assert.True(t, math.IsNaN(s.Values[2]))
	assert.Equal(t, 3.0, s.Values[3])
}

func TestLoadCSVClampNegative(t *testing.T) {
	opts := DefaultCSVOptions()
	opts.ClampNegative = true

	pixels, err := LoadCSVFromReader(strings.NewReader("row,col,date,precip\n0,0,2001-01-01,-0.2\n"), opts)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, pixels[0].Series.Values)
}

func TestLoadCSVGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "precip.csv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("row,col,date,precip\n3,4,2001-01-01,1\n3,4,2001-01-02,2\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	pixels, err := LoadCSV(path, nil)
	require.NoError(t, err)
	require.Len(t, pixels, 1)
	assert.Equal(t, "3_4", pixels[0].Label())
	assert.Equal(t, []float64{1, 2}, pixels[0].Series.Values)
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	cfg := UnimodalConfig(2001, 3)
	cfg.NoiseSD = 1
	cfg.Jitter = 5
	cfg.Seed = 42

	a, err := Synthesize(cfg)
	require.NoError(t, err)
	b, err := Synthesize(cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Values, b.Values)
	assert.Equal(t, 365+365+365, a.Len())
	assert.NoError(t, a.Validate())

	cfg.Seed = 43
	c, err := Synthesize(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.Values, c.Values)
}

func TestSynthesizeShapes(t *testing.T) {
	s, err := Synthesize(SynthConfig{
		StartYear: 2001,
		Years:     1,
		Peaks: []Peak{
			{Start: 10, Top: 20, End: 30, Height: 10, Shape: ShapeTriangle},
			{Start: 100, End: 110, Height: 4, Shape: ShapeBox},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, s.Values[8])   // day 9
	assert.Equal(t, 0.0, s.Values[9])   // day 10, foot of the triangle
	assert.Equal(t, 5.0, s.Values[14])  // day 15, half way up
	assert.Equal(t, 10.0, s.Values[19]) // day 20, top
	assert.Equal(t, 4.0, s.Values[99])  // day 100
	assert.Equal(t, 4.0, s.Values[109]) // day 110
	assert.Equal(t, 0.0, s.Values[110]) // day 111
}

func TestSynthesizeRejectsBadPeaks(t *testing.T) {
	_, err := Synthesize(SynthConfig{StartYear: 2001, Years: 1, Peaks: []Peak{{Start: 50, End: 40}}})
	assert.Error(t, err)

	_, err = Synthesize(SynthConfig{StartYear: 2001, Years: 1, Peaks: []Peak{{Start: 10, Top: 50, End: 40}}})
	assert.Error(t, err)

	_, err = Synthesize(SynthConfig{StartYear: 2001})
	assert.Error(t, err)
}
