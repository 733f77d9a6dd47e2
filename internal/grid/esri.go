package grid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oshokin/overlandflow/internal/simerr"
)

// ElevationField is the point field holding terrain elevation.
const ElevationField = "topographic__elevation"

// esriHeader holds the header of an ESRI ASCII raster.
type esriHeader struct {
	cols, rows int
	cellSize   float64
	noData     float64
	hasNoData  bool
}

// ReadESRIASCIIFile opens path and decodes it with ReadESRIASCII.
func ReadESRIASCIIFile(path string) (*Grid, []float64, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, nil, simerr.Configurationf("open raster: %v", err)
	}

	defer func() {
		_ = f.Close()
	}()

	return ReadESRIASCII(f)
}

// ReadESRIASCII decodes an ESRI ASCII raster into a grid and its elevation values
// in point order. File rows run north to south; they are flipped so that
// row 0 of the grid is the southern row. Cells equal to NODATA_value become
// Closed points.
func ReadESRIASCII(r io.Reader) (*Grid, []float64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(bufio.ScanWords)

	header, pending, err := readESRIHeader(scanner)
	if err != nil {
		return nil, nil, err
	}

	g, err := NewRaster(header.rows, header.cols, header.cellSize)
	if err != nil {
		return nil, nil, err
	}

	values := make([]float64, header.rows*header.cols)

	for i := range values {
		var word string

		switch {
		case pending != "":
			word, pending = pending, ""
		case scanner.Scan():
			word = scanner.Text()
		default:
			if err = scanner.Err(); err != nil {
				return nil, nil, simerr.Configurationf("read raster: %v", err)
			}

			return nil, nil, simerr.Configurationf("raster holds %d values, expected %d", i, len(values))
		}

		v, err := strconv.ParseFloat(word, 64)
		if err != nil {
			return nil, nil, simerr.Configurationf("raster value %d: %v", i, err)
		}

		fileRow, col := i/header.cols, i%header.cols
		p := (header.rows-1-fileRow)*header.cols + col
		values[p] = v

		if header.hasNoData && v == header.noData {
			g.SetStatus(p, Closed)
		}
	}

	return g, values, nil
}

// readESRIHeader consumes "key value" pairs until the first numeric token,
// which is returned as pending because it already belongs to the data block.
func readESRIHeader(scanner *bufio.Scanner) (esriHeader, string, error) {
	var (
		header esriHeader
		seen   = make(map[string]bool)
	)

	for scanner.Scan() {
		key := strings.ToLower(scanner.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			if !seen["ncols"] || !seen["nrows"] || !seen["cellsize"] {
				return header, "", simerr.Configurationf("raster header needs ncols, nrows and cellsize")
			}

			return header, key, nil
		}

		if !scanner.Scan() {
			break
		}

		value := scanner.Text()

		var err error

		switch key {
		case "ncols":
			header.cols, err = strconv.Atoi(value)
		case "nrows":
			header.rows, err = strconv.Atoi(value)
		case "cellsize":
			header.cellSize, err = strconv.ParseFloat(value, 64)
		case "nodata_value":
			header.noData, err = strconv.ParseFloat(value, 64)
			header.hasNoData = true
		case "xllcorner", "yllcorner", "xllcenter", "yllcenter":
			_, err = strconv.ParseFloat(value, 64)
		default:
			return header, "", simerr.Configurationf("unknown raster header key %q", key)
		}

		if err != nil {
			return header, "", simerr.Configurationf("raster header %s: %v", key, fmt.Errorf("parse %q: %w", value, err))
		}

		seen[key] = true
	}

	if err := scanner.Err(); err != nil {
		return header, "", simerr.Configurationf("read raster header: %v", err)
	}

	return header, "", simerr.Configurationf("raster has no data block")
}
