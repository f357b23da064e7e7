package raster

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadASCIIFile reads an ESRI ASCII grid. Files ending in .gz are
// decompressed on the fly.
func ReadASCIIFile(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("could not open gzip stream %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	g, err := ReadASCII(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// ReadASCII parses an ESRI ASCII grid. Both the corner and the centre forms
// of the lower-left reference are accepted.
func ReadASCII(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	sc.Split(bufio.ScanWords)

	geo := Geometry{NoData: DefaultNoData}
	var center bool
	header := map[string]bool{}

	// Header lines are key/value pairs; the first numeric token starts the data
	var pending string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			pending = key
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("header key %q has no value", key)
		}
		val, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", key, err)
		}

		switch key {
		case "ncols":
			geo.NCols = int(val)
		case "nrows":
			geo.NRows = int(val)
		case "xllcorner":
			geo.XLLCorner = val
		case "xllcenter":
			geo.XLLCorner, center = val, true
		case "yllcorner":
			geo.YLLCorner = val
		case "yllcenter":
			geo.YLLCorner, center = val, true
		case "cellsize":
			geo.CellSize = val
		case "nodata_value":
			geo.NoData = val
		default:
			return nil, fmt.Errorf("unknown header key %q", key)
		}
		header[key] = true
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	for _, k := range []string{"ncols", "nrows", "cellsize"} {
		if !header[k] {
			return nil, fmt.Errorf("header is missing %s", k)
		}
	}
	if center {
		geo.XLLCorner -= geo.CellSize / 2
		geo.YLLCorner -= geo.CellSize / 2
	}
	if err := geo.Validate(); err != nil {
		return nil, err
	}

	g := &Grid{Geometry: geo, Data: make([]float64, 0, geo.Len())}
	parse := func(tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("cell %d: %w", len(g.Data), err)
		}
		g.Data = append(g.Data, v)
		return nil
	}

	if pending != "" {
		if err := parse(pending); err != nil {
			return nil, err
		}
	}
	for sc.Scan() {
		if len(g.Data) == geo.Len() {
			return nil, fmt.Errorf("more than %d cells", geo.Len())
		}
		if err := parse(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(g.Data) != geo.Len() {
		return nil, fmt.Errorf("expected %d cells, got %d", geo.Len(), len(g.Data))
	}

	return g, nil
}

// WriteASCII writes g as an ESRI ASCII grid
func WriteASCII(w io.Writer, g *Grid) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "ncols %d\n", g.NCols)
	fmt.Fprintf(bw, "nrows %d\n", g.NRows)
	fmt.Fprintf(bw, "xllcorner     %s\n", strconv.FormatFloat(g.XLLCorner, 'f', -1, 64))
	fmt.Fprintf(bw, "yllcorner     %s\n", strconv.FormatFloat(g.YLLCorner, 'f', -1, 64))
	fmt.Fprintf(bw, "cellsize      %s\n", strconv.FormatFloat(g.CellSize, 'f', -1, 64))
	fmt.Fprintf(bw, "NODATA_value  %s\n", strconv.FormatFloat(g.NoData, 'f', -1, 64))

	for row := 0; row < g.NRows; row++ {
		for col := 0; col < g.NCols; col++ {
			if col > 0 {
				bw.WriteByte(' ')
			}
			v, ok := g.At(row, col)
			if !ok {
				v = g.NoData
			}
			bw.WriteString(strconv.FormatFloat(v, 'g', 8, 64))
		}
		bw.WriteByte('\n')
	}

	return bw.Flush()
}

// WriteASCIIFile writes g to path, creating parent directories. A .gz suffix
// gzip-compresses the output.
func WriteASCIIFile(path string, g *Grid) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	if !strings.HasSuffix(path, ".gz") {
		if err := WriteASCII(f, g); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}

	gz := gzip.NewWriter(f)
	if err := WriteASCII(gz, g); err != nil {
		gz.Close()
		f.Close()
		return err
	}
	// Close the gzip first
	if err := gz.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
