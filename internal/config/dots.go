package config

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/overlandflow/internal/simerr"
)

// Separator joins mapping keys into a dotted path.
const Separator = "."

// Flatten turns a nested mapping into a single-level mapping keyed by dotted
// path. Scalars, sequences and empty mappings are leaves. Keys must be
// non-empty and must not contain Separator, so that Unflatten can reverse it.
func Flatten(m map[string]any) (map[string]any, error) {
	flat := make(map[string]any)

	if err := flatten(flat, "", m); err != nil {
		return nil, err
	}

	return flat, nil
}

func flatten(dst map[string]any, prefix string, m map[string]any) error {
	for key, value := range m {
		if key == "" || strings.Contains(key, Separator) {
			return simerr.Configurationf("key %q under %q cannot be used in a dotted path", key, prefix)
		}

		path := join(prefix, key)

		if nested, ok := asMapping(value); ok && len(nested) > 0 {
			if err := flatten(dst, path, nested); err != nil {
				return err
			}

			continue
		}

		dst[path] = value
	}

	return nil
}

// Unflatten rebuilds the nested mapping from dotted paths.
func Unflatten(flat map[string]any) (map[string]any, error) {
	paths := make([]string, 0, len(flat))
	for path := range flat {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	m := make(map[string]any)

	for _, path := range paths {
		segments, err := splitPath(path)
		if err != nil {
			return nil, err
		}

		if err = setPath(m, segments, flat[path]); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Dots renders m as sorted "path=value" lines with values in YAML flow
// style. A sequence of two or more elements is written as one line per
// element at the same path; shorter sequences stay on one line so that
// ParseDots can tell them from scalars.
func Dots(m map[string]any) ([]string, error) {
	flat, err := Flatten(m)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(flat))
	for path := range flat {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	lines := make([]string, 0, len(paths))

	for _, path := range paths {
		values := []any{flat[path]}
		if seq, ok := flat[path].([]any); ok && len(seq) > 1 {
			values = seq
		}

		for _, value := range values {
			text, err := formatValue(value)
			if err != nil {
				return nil, fmt.Errorf("format %s: %w", path, err)
			}

			lines = append(lines, path+"="+text)
		}
	}

	return lines, nil
}

// ParseDots reverses Dots: values are parsed as YAML and repeated paths are
// collected into a sequence in line order. Blank lines are skipped. Integral
// floats come back as floats because Dots writes them with a decimal point.
func ParseDots(lines []string) (map[string]any, error) {
	var (
		order  []string
		values = make(map[string][]any)
	)

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		path, value, err := splitOverride(line)
		if err != nil {
			return nil, err
		}

		if _, seen := values[path]; !seen {
			order = append(order, path)
		}

		values[path] = append(values[path], value)
	}

	flat := make(map[string]any, len(order))

	for _, path := range order {
		if vs := values[path]; len(vs) == 1 {
			flat[path] = vs[0]
		} else {
			flat[path] = vs
		}
	}

	return Unflatten(flat)
}

// ParseOverride turns "group.key=value" into the nested mapping it sets.
// The value is parsed as YAML, so "1e-3" is a number and "[a, b]" a sequence.
func ParseOverride(s string) (map[string]any, error) {
	path, value, err := splitOverride(s)
	if err != nil {
		return nil, err
	}

	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	m := make(map[string]any)
	if err = setPath(m, segments, value); err != nil {
		return nil, err
	}

	return m, nil
}

// Merge copies src into dst. Nested mappings are merged key by key; any
// other value in src replaces the one in dst. dst is returned.
func Merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}

	for key, value := range src {
		from, srcIsMap := asMapping(value)
		into, dstIsMap := asMapping(dst[key])

		if srcIsMap && dstIsMap {
			dst[key] = Merge(into, from)

			continue
		}

		if srcIsMap {
			value = Merge(nil, from)
		}

		dst[key] = value
	}

	return dst
}

func splitOverride(s string) (string, any, error) {
	path, text, ok := strings.Cut(s, "=")
	if !ok {
		return "", nil, simerr.Configurationf("override %q is not of the form group.key=value", s)
	}

	path = strings.TrimSpace(path)
	if _, err := splitPath(path); err != nil {
		return "", nil, err
	}

	var value any
	if err := yaml.Unmarshal([]byte(text), &value); err != nil {
		return "", nil, simerr.Configurationf("override %q: %v", s, err)
	}

	return path, normalize(value), nil
}

func splitPath(path string) ([]string, error) {
	segments := strings.Split(path, Separator)
	for _, segment := range segments {
		if segment == "" {
			return nil, simerr.Configurationf("dotted path %q has an empty segment", path)
		}
	}

	return segments, nil
}

func setPath(m map[string]any, segments []string, value any) error {
	level := m

	for i, segment := range segments[:len(segments)-1] {
		next, exists := level[segment]
		if !exists {
			nested := make(map[string]any)
			level[segment] = nested
			level = nested

			continue
		}

		nested, ok := next.(map[string]any)
		if !ok {
			return simerr.Configurationf("%s is a value, not a group", strings.Join(segments[:i+1], Separator))
		}

		level = nested
	}

	last := segments[len(segments)-1]
	if _, exists := level[last]; exists {
		return simerr.Configurationf("%s is set twice", strings.Join(segments, Separator))
	}

	level[last] = value

	return nil
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}

	return prefix + Separator + key
}

func asMapping(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)

	return m, ok
}

// normalize converts the map[any]any mappings yaml may produce for non-string
// keys into map[string]any.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for key, value := range t {
			t[key] = normalize(value)
		}

		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for key, value := range t {
			m[fmt.Sprint(key)] = normalize(value)
		}

		return m
	case []any:
		for i, value := range t {
			t[i] = normalize(value)
		}

		return t
	default:
		return v
	}
}

func formatValue(v any) (string, error) {
	var node yaml.Node
	if err := node.Encode(floatNodes(v)); err != nil {
		return "", err
	}

	setFlowStyle(&node)

	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	if err := enc.Encode(&node); err != nil {
		return "", err
	}

	if err := enc.Close(); err != nil {
		return "", err
	}

	return strings.TrimSpace(buf.String()), nil
}

// floatNodes copies v, replacing integral floats with scalars that keep a
// decimal point: yaml writes 2.0 as "2", which reads back as an int.
func floatNodes(v any) any {
	switch t := v.(type) {
	case float64:
		if math.IsInf(t, 0) || t != math.Trunc(t) {
			return t
		}

		text := strconv.FormatFloat(t, 'g', -1, 64)
		if !strings.ContainsAny(text, ".e") {
			text += ".0"
		}

		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: text}
	case map[string]any:
		m := make(map[string]any, len(t))
		for key, value := range t {
			m[key] = floatNodes(value)
		}

		return m
	case []any:
		seq := make([]any, len(t))
		for i, value := range t {
			seq[i] = floatNodes(value)
		}

		return seq
	default:
		return v
	}
}

func setFlowStyle(node *yaml.Node) {
	if node.Kind == yaml.SequenceNode || node.Kind == yaml.MappingNode {
		node.Style |= yaml.FlowStyle
	}

	for _, child := range node.Content {
		setFlowStyle(child)
	}
}
