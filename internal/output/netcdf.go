package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/oshokin/overlandflow/internal/grid"
	"github.com/oshokin/overlandflow/internal/simerr"
)

// Dimension and coordinate names.
const (
	TimeDim = "time"
	YDim    = "y"
	XDim    = "x"
	EdgeDim = "edge"
)

// VariableName returns the variable a field is stored under: the bare name
// for points, name_at_edge and name_at_domain otherwise.
func VariableName(ref grid.Ref) string {
	if ref.Site == grid.Point {
		return ref.Name
	}

	return ref.Name + "_at_" + ref.Site.String()
}

// Writer appends field records to a NetCDF file.
type Writer struct {
	// file backs the NetCDF data.
	file *os.File
	// nc is the open NetCDF handle.
	nc *cdf.File
	// grid holds the fields being written.
	grid *grid.Grid
	// refs are the fields written on every record, in variable order.
	refs []grid.Ref
	// records is the number of records written so far.
	records int
}

// Create writes a new file at path holding refs of g, replacing any existing
// file. An empty refs selects every field of g.
func Create(path string, g *grid.Grid, refs []grid.Ref) (*Writer, error) {
	if len(refs) == 0 {
		refs = g.Refs()
	}

	for _, ref := range refs {
		if !g.Has(ref.Name, ref.Site) {
			return nil, fmt.Errorf("%w: %s", grid.ErrFieldNotFound, ref)
		}

		if ref.Name == TimeDim {
			return nil, simerr.Configurationf("field name %q clashes with the time coordinate", ref.Name)
		}
	}

	rows, cols := g.Shape()

	h := cdf.NewHeader(
		[]string{TimeDim, YDim, XDim, EdgeDim},
		[]int{0, rows, cols, g.NumEdges()})
	h.AddAttribute("", "title", "overland flow model output")
	h.AddAttribute("", "grid_type", "raster")
	h.AddAttribute("", "spacing", []float64{g.Spacing()})

	h.AddVariable(TimeDim, []string{TimeDim}, []float64{0})
	h.AddAttribute(TimeDim, "units", "s")

	for _, ref := range refs {
		name := VariableName(ref)
		h.AddVariable(name, dimensions(ref.Site), []float64{0})
		h.AddAttribute(name, "long_name", ref.Name)
		h.AddAttribute(name, "site", ref.Site.String())
	}

	h.Define()

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}

	nc, err := cdf.Create(f, h)
	if err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("write netcdf header: %w", err)
	}

	return &Writer{file: f, nc: nc, grid: g, refs: refs}, nil
}

// Refs returns the fields written on every record.
func (w *Writer) Refs() []grid.Ref { return w.refs }

// Records returns the number of records written.
func (w *Writer) Records() int { return w.records }

// Append writes the current value of every selected field as a new record at time t.
func (w *Writer) Append(t float64) error {
	rec := w.records

	if err := w.write(TimeDim, []int{rec}, []int{rec + 1}, []float64{t}); err != nil {
		return err
	}

	rows, cols := w.grid.Shape()

	for _, ref := range w.refs {
		values, err := w.grid.Field(ref.Name, ref.Site)
		if err != nil {
			return err
		}

		var begin, end []int

		switch ref.Site {
		case grid.Point:
			begin, end = []int{rec, 0, 0}, []int{rec + 1, rows, cols}
		case grid.Edge:
			begin, end = []int{rec, 0}, []int{rec + 1, len(values)}
		default:
			begin, end = []int{rec}, []int{rec + 1}
		}

		if err = w.write(VariableName(ref), begin, end, values); err != nil {
			return err
		}
	}

	if err := cdf.UpdateNumRecs(w.file); err != nil {
		return fmt.Errorf("update record count: %w", err)
	}

	w.records++

	return nil
}

func (w *Writer) write(name string, begin, end []int, values []float64) error {
	if _, err := w.nc.Writer(name, begin, end).Write(values); err != nil {
		return fmt.Errorf("write %s record %d: %w", name, begin[0], err)
	}

	return nil
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()

		return fmt.Errorf("sync output: %w", err)
	}

	return w.file.Close()
}

func dimensions(site grid.Site) []string {
	switch site {
	case grid.Point:
		return []string{TimeDim, YDim, XDim}
	case grid.Edge:
		return []string{TimeDim, EdgeDim}
	default:
		return []string{TimeDim}
	}
}

// File is a NetCDF output file opened for reading.
type File struct {
	file *os.File
	nc   *cdf.File
}

// Open opens an output file for reading.
func Open(path string) (*File, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}

	nc, err := cdf.Open(f)
	if err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("read netcdf header: %w", err)
	}

	return &File{file: f, nc: nc}, nil
}

// Close closes the file.
func (f *File) Close() error {
	return f.file.Close()
}

// Variables returns the field variables in the file, without the time coordinate.
func (f *File) Variables() []string {
	var names []string

	for _, v := range f.nc.Header.Variables() {
		if v != TimeDim {
			names = append(names, v)
		}
	}

	return names
}

// Records returns the number of records in the file.
func (f *File) Records() int {
	lengths := f.nc.Header.Lengths(TimeDim)
	if len(lengths) == 0 {
		return 0
	}

	return lengths[0]
}

// Times returns the time of every record.
func (f *File) Times() ([]float64, error) {
	n := f.Records()
	if n == 0 {
		return nil, nil
	}

	data, err := f.read(TimeDim, 0, n)
	if err != nil {
		return nil, err
	}

	return data.Elements, nil
}

// Record reads one record of variable. A negative record counts from the
// end, so -1 is the last record. Point variables come back shaped (y, x),
// edge variables (edge) and domain variables (1).
func (f *File) Record(variable string, record int) (*sparse.DenseArray, float64, error) {
	if variable == TimeDim || len(f.nc.Header.Lengths(variable)) == 0 {
		return nil, 0, simerr.Configurationf("no field variable %q in output; have %s",
			variable, strings.Join(f.Variables(), ", "))
	}

	n := f.Records()
	if record < 0 {
		record += n
	}

	if record < 0 || record >= n {
		return nil, 0, simerr.Domainf("record %d out of range, output has %d", record, n)
	}

	data, err := f.read(variable, record, record+1)
	if err != nil {
		return nil, 0, err
	}

	times, err := f.read(TimeDim, record, record+1)
	if err != nil {
		return nil, 0, err
	}

	return data, times.Elements[0], nil
}

// read returns records [from, to) of variable with the record dimension
// dropped when a single record is read.
func (f *File) read(variable string, from, to int) (*sparse.DenseArray, error) {
	lengths := f.nc.Header.Lengths(variable)

	begin := make([]int, len(lengths))
	end := append([]int(nil), lengths...)
	begin[0], end[0] = from, to

	shape := append([]int{to - from}, lengths[1:]...)
	if to-from == 1 && len(lengths) > 1 {
		shape = shape[1:]
	}

	size := 1
	for _, n := range shape {
		size *= n
	}

	r := f.nc.Reader(variable, begin, end)
	buf := r.Zero(size)

	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("read %s: %w", variable, err)
	}

	values, ok := buf.([]float64)
	if !ok {
		return nil, fmt.Errorf("read %s: unsupported variable type %T", variable, buf)
	}

	data := sparse.ZerosDense(shape...)
	copy(data.Elements, values)

	return data, nil
}

// ReadRecord opens path and reads one record of variable. See File.Record.
func ReadRecord(path, variable string, record int) (*sparse.DenseArray, float64, error) {
	f, err := Open(path)
	if err != nil {
		return nil, 0, err
	}

	defer func() {
		_ = f.Close()
	}()

	return f.Record(variable, record)
}
