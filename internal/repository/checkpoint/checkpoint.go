package checkpoint

import (
	"fmt"
	"time"

	"github.com/oshokin/overlandflow/internal/grid"
)

// Checkpoint is the state of a run at one simulation time.
type Checkpoint struct {
	// Time is the simulation time the fields belong to (s).
	Time float64
	// SavedAt is the wall-clock time the checkpoint was taken.
	SavedAt time.Time
	// Params is the resolved parameter mapping of the run, if recorded.
	Params map[string]any
	// Fields maps "name@site" references to field values.
	Fields map[string][]float64
}

// Capture copies every field of g.
func Capture(g *grid.Grid, t float64, savedAt time.Time) (*Checkpoint, error) {
	cp := &Checkpoint{
		Time:    t,
		SavedAt: savedAt,
		Fields:  make(map[string][]float64),
	}

	for _, ref := range g.Refs() {
		values, err := g.Field(ref.Name, ref.Site)
		if err != nil {
			return nil, err
		}

		cp.Fields[ref.String()] = append([]float64(nil), values...)
	}

	return cp, nil
}

// Restore writes the saved fields back into g. Every saved field must exist
// in g with the same size; fields of g missing from the checkpoint keep
// their values.
func Restore(g *grid.Grid, cp *Checkpoint) error {
	for key, values := range cp.Fields {
		ref, err := grid.ParseRef(key)
		if err != nil {
			return fmt.Errorf("checkpoint field %q: %w", key, err)
		}

		if err = g.Restore(ref.Name, ref.Site, values); err != nil {
			return fmt.Errorf("restore checkpoint: %w", err)
		}
	}

	return nil
}
