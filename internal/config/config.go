package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/overlandflow/internal/simerr"
)

// DefaultFilePermissions is the file mode used when writing parameter files.
const DefaultFilePermissions = 0o600

// errParamsNotSet is returned when a nil parameter set is provided.
var errParamsNotSet = fmt.Errorf("%w: parameters are not set", simerr.ErrConfiguration)

// Defaults returns the built-in parameters as a nested mapping.
func Defaults() map[string]any {
	m, err := toMapping(DefaultParams())
	if err != nil {
		panic(fmt.Sprintf("encode default parameters: %v", err))
	}

	return m
}

// Load reads a YAML parameter file into a nested mapping. An empty file
// yields an empty mapping.
func Load(path string) (map[string]any, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, simerr.Configurationf("read parameters: %v", err)
	}

	m := make(map[string]any)
	if err = yaml.Unmarshal(contents, &m); err != nil {
		return nil, simerr.Configurationf("parse %s: %v", path, err)
	}

	return normalize(m).(map[string]any), nil
}

// Resolve layers the defaults, the file at path (if any) and the dotted
// overrides, in that order, and decodes the result. It returns the typed
// parameters together with the merged mapping they were decoded from.
func Resolve(path string, overrides []string) (*Params, map[string]any, error) {
	merged := Defaults()

	if path != "" {
		fromFile, err := Load(path)
		if err != nil {
			return nil, nil, err
		}

		Merge(merged, fromFile)
	}

	for _, override := range overrides {
		m, err := ParseOverride(override)
		if err != nil {
			return nil, nil, err
		}

		Merge(merged, m)
	}

	p, err := Decode(merged)
	if err != nil {
		return nil, nil, err
	}

	return p, merged, nil
}

// Decode converts a nested mapping into validated Params. Unknown groups or
// keys are rejected.
func Decode(m map[string]any) (*Params, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, simerr.Configurationf("encode parameters: %v", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Params
	if err = dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, simerr.Configurationf("decode parameters: %v", err)
	}

	if err = Validate(&p); err != nil {
		return nil, err
	}

	return &p, nil
}

// Write encodes p as YAML.
func Write(w io.Writer, p *Params) error {
	if p == nil {
		return errParamsNotSet
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}

	return enc.Close()
}

// Save validates p and writes it to path as YAML.
func Save(path string, p *Params) error {
	if err := Validate(p); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Write(&buf, p); err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Clean(path), buf.Bytes(), DefaultFilePermissions); err != nil {
		return fmt.Errorf("write parameters: %w", err)
	}

	return nil
}

// Mapping returns p as a nested mapping.
func Mapping(p *Params) (map[string]any, error) {
	if p == nil {
		return nil, errParamsNotSet
	}

	return toMapping(p)
}

func toMapping(v any) (map[string]any, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}

	m := make(map[string]any)
	if err = yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	return m, nil
}
