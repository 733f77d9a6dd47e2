package grid

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oshokin/overlandflow/internal/simerr"
)

// Site is the class of spatial entity a field is attached to.
type Site uint8

const (
	// Point fields hold one value per raster point.
	Point Site = iota
	// Edge fields hold one value per edge.
	Edge
	// Domain fields hold a single value for the whole grid.
	Domain
)

// String returns the site name used in field references such as "mannings_n@edge".
func (s Site) String() string {
	switch s {
	case Point:
		return "point"
	case Edge:
		return "edge"
	case Domain:
		return "domain"
	default:
		return fmt.Sprintf("site(%d)", uint8(s))
	}
}

// ParseSite converts a site name to a Site. "node", "link" and "grid" are
// accepted as aliases of point, edge and domain.
func ParseSite(s string) (Site, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "point", "node":
		return Point, nil
	case "edge", "link":
		return Edge, nil
	case "domain", "grid":
		return Domain, nil
	default:
		return 0, simerr.Configurationf("unknown field site %q", s)
	}
}

// Ref names a field at a site.
type Ref struct {
	Name string
	Site Site
}

// ParseRef parses "name" (a point field) or "name@site".
func ParseRef(s string) (Ref, error) {
	name, siteName, found := strings.Cut(s, "@")
	if name == "" {
		return Ref{}, simerr.Configurationf("empty field name in %q", s)
	}

	if !found {
		return Ref{Name: name, Site: Point}, nil
	}

	site, err := ParseSite(siteName)
	if err != nil {
		return Ref{}, err
	}

	return Ref{Name: name, Site: site}, nil
}

// String formats the reference as "name@site".
func (r Ref) String() string {
	return r.Name + "@" + r.Site.String()
}

var (
	// ErrFieldNotFound is returned when a field is not attached to the grid.
	ErrFieldNotFound = fmt.Errorf("%w: field not found", simerr.ErrConfiguration)
	// ErrFieldExists is returned when a field is added twice at the same site.
	ErrFieldExists = fmt.Errorf("%w: field already exists", simerr.ErrConfiguration)
	// ErrNotOwner is returned when a process model asks to write a field it does not own.
	ErrNotOwner = fmt.Errorf("%w: field is owned by another process", simerr.ErrConfiguration)
)

type fieldKey struct {
	name string
	site Site
}

type field struct {
	owner  string
	values []float64
}

// Add attaches a field filled with initial and records owner as its only writer.
func (g *Grid) Add(name string, site Site, owner string, initial float64) ([]float64, error) {
	if name == "" {
		return nil, simerr.Configurationf("field name must not be empty")
	}

	key := fieldKey{name: name, site: site}
	if _, ok := g.fields[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldExists, Ref{Name: name, Site: site})
	}

	values := make([]float64, g.Size(site))
	for i := range values {
		values[i] = initial
	}

	g.fields[key] = &field{owner: owner, values: values}

	return values, nil
}

// Has reports whether the field exists.
func (g *Grid) Has(name string, site Site) bool {
	_, ok := g.fields[fieldKey{name: name, site: site}]

	return ok
}

// Owner returns the name of the process allowed to write the field.
func (g *Grid) Owner(name string, site Site) (string, error) {
	f, err := g.lookup(name, site)
	if err != nil {
		return "", err
	}

	return f.owner, nil
}

// Field returns the backing slice of a field for reading.
// Callers other than the owner must not modify it.
func (g *Grid) Field(name string, site Site) ([]float64, error) {
	f, err := g.lookup(name, site)
	if err != nil {
		return nil, err
	}

	return f.values, nil
}

// Writable returns the backing slice of a field for in-place updates by its owner.
func (g *Grid) Writable(name string, site Site, owner string) ([]float64, error) {
	f, err := g.lookup(name, site)
	if err != nil {
		return nil, err
	}

	if f.owner != owner {
		return nil, fmt.Errorf("%w: %s is written by %q, not %q", ErrNotOwner, Ref{Name: name, Site: site}, f.owner, owner)
	}

	return f.values, nil
}

// Set copies values into a field owned by owner. The length must match the site size.
func (g *Grid) Set(name string, site Site, owner string, values []float64) error {
	dst, err := g.Writable(name, site, owner)
	if err != nil {
		return err
	}

	if len(values) != len(dst) {
		return simerr.Configurationf("%s holds %d values, got %d", Ref{Name: name, Site: site}, len(dst), len(values))
	}

	copy(dst, values)

	return nil
}

// Names returns the sorted names of the fields attached at site.
func (g *Grid) Names(site Site) []string {
	var names []string

	for key := range g.fields {
		if key.site == site {
			names = append(names, key.name)
		}
	}

	sort.Strings(names)

	return names
}

// Refs returns every field reference, ordered by site and then name.
func (g *Grid) Refs() []Ref {
	refs := make([]Ref, 0, len(g.fields))

	for _, site := range []Site{Point, Edge, Domain} {
		for _, name := range g.Names(site) {
			refs = append(refs, Ref{Name: name, Site: site})
		}
	}

	return refs
}

func (g *Grid) lookup(name string, site Site) (*field, error) {
	f, ok := g.fields[fieldKey{name: name, site: site}]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, Ref{Name: name, Site: site})
	}

	return f, nil
}

// InitialOwner writes fields created by Initialize.
const InitialOwner = "initial_conditions"

// Initialize fills a field with value as an initial condition, whoever owns it.
// A missing field is created and owned by InitialOwner. It must only be used
// while a model is being assembled, before the first advance.
func (g *Grid) Initialize(name string, site Site, value float64) error {
	f, ok := g.fields[fieldKey{name: name, site: site}]
	if !ok {
		_, err := g.Add(name, site, InitialOwner, value)

		return err
	}

	for i := range f.values {
		f.values[i] = value
	}

	return nil
}

// Restore copies values into a field whoever owns it. Like Initialize it is
// only for model assembly, when resuming from saved state.
func (g *Grid) Restore(name string, site Site, values []float64) error {
	f, err := g.lookup(name, site)
	if err != nil {
		return err
	}

	if len(values) != len(f.values) {
		return simerr.Configurationf("%s holds %d values, got %d", Ref{Name: name, Site: site}, len(f.values), len(values))
	}

	copy(f.values, values)

	return nil
}
