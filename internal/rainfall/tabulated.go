package rainfall

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/interp"

	"github.com/oshokin/overlandflow/internal/simerr"
)

// Interpolation kinds accepted by NewTabulated.
const (
	Linear         = "linear"
	Constant       = "constant"
	Akima          = "akima"
	FritschButland = "fritsch-butland"
)

// Tabulated interpolates a recorded (time, value) series. Queries outside the
// recorded time range fail with simerr.ErrDomain.
type Tabulated struct {
	first, last float64
	predictor   interp.Predictor
}

// NewTabulated fits kind to the samples. Times and values must be finite and
// times strictly increasing, with at least two samples.
func NewTabulated(times, values []float64, kind string) (*Tabulated, error) {
	if len(times) != len(values) {
		return nil, simerr.Configurationf("rain series has %d times and %d values", len(times), len(values))
	}

	if len(times) < 2 {
		return nil, simerr.Configurationf("rain series needs at least 2 samples, got %d", len(times))
	}

	for i := range times {
		if math.IsNaN(times[i]) || math.IsInf(times[i], 0) || math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
			return nil, simerr.Configurationf("rain series sample %d is not finite: (%g, %g)", i, times[i], values[i])
		}
	}

	for i := 1; i < len(times); i++ {
		if !(times[i] > times[i-1]) {
			return nil, simerr.Configurationf("rain series times must increase strictly, got %g after %g", times[i], times[i-1])
		}
	}

	var fitter interp.FittablePredictor

	switch strings.ToLower(kind) {
	case "", Linear:
		fitter = new(interp.PiecewiseLinear)
	case Constant:
		fitter = new(interp.PiecewiseConstant)
	case Akima:
		fitter = new(interp.AkimaSpline)
	case FritschButland:
		if len(times) < 3 {
			return nil, simerr.Configurationf("fritsch-butland interpolation needs at least 3 samples")
		}

		fitter = new(interp.FritschButland)
	default:
		return nil, simerr.Configurationf("unknown rain series interpolation %q", kind)
	}

	if err := fitter.Fit(times, values); err != nil {
		return nil, simerr.Configurationf("fit rain series: %v", err)
	}

	return &Tabulated{first: times[0], last: times[len(times)-1], predictor: fitter}, nil
}

// ValueAt interpolates the series at t.
func (s *Tabulated) ValueAt(t float64) (float64, error) {
	if !(t >= s.first && t <= s.last) {
		return 0, simerr.Domainf("rain series covers [%g, %g], queried at %g", s.first, s.last, t)
	}

	return s.predictor.Predict(t), nil
}

// Range returns the first and last recorded time.
func (s *Tabulated) Range() (first, last float64) {
	return s.first, s.last
}

// ReadSeries parses "time,value" records. Blank lines and lines starting with
// '#' are skipped.
func ReadSeries(r io.Reader) (times, values []float64, err error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return times, values, nil
		}

		if err != nil {
			return nil, nil, simerr.Configurationf("read rain series: %v", err)
		}

		t, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		if err != nil {
			return nil, nil, simerr.Configurationf("rain series time: %v", err)
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, nil, simerr.Configurationf("rain series value: %v", err)
		}

		times = append(times, t)
		values = append(values, v)
	}
}

// LoadTabulated reads a series file and fits kind to it.
func LoadTabulated(path, kind string) (*Tabulated, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, simerr.Configurationf("open rain series: %v", err)
	}

	defer func() {
		_ = f.Close()
	}()

	times, values, err := ReadSeries(f)
	if err != nil {
		return nil, err
	}

	return NewTabulated(times, values, kind)
}
