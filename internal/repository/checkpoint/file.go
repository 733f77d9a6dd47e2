package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/oshokin/overlandflow/internal/config"
)

// Repository defines persistence operations for checkpoints.
type Repository interface {
	Load(ctx context.Context) (*Checkpoint, error)
	Save(ctx context.Context, cp *Checkpoint) error
}

// FileRepository persists a checkpoint to a JSON file on disk.
// JSON is produced and consumed via protobuf JSON (protojson) of a
// structpb.Struct, so the file stays readable by any protobuf toolchain.
type FileRepository struct {
	// path is the filesystem location of the checkpoint file.
	path string
	// mu protects concurrent access to the checkpoint file.
	mu sync.Mutex
}

// Keys of the stored document.
const (
	keyTime    = "time"
	keySavedAt = "saved_at"
	keySeconds = "seconds"
	keyNanos   = "nanos"
	keyParams  = "params"
	keyFields  = "fields"
)

var (
	// ErrNotFound is returned when the checkpoint file does not exist yet.
	ErrNotFound = errors.New("checkpoint not found")
	// errMalformed is returned when the file decodes but lacks required entries.
	errMalformed = errors.New("malformed checkpoint")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the checkpoint file location.
func (r *FileRepository) Path() string { return r.path }

// Load reads the checkpoint from disk.
func (r *FileRepository) Load(_ context.Context) (*Checkpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}

	var doc structpb.Struct
	if err = protojson.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode checkpoint file: %w", err)
	}

	return fromProto(&doc)
}

// Save writes the checkpoint to disk using JSON representation.
func (r *FileRepository) Save(_ context.Context, cp *Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := toProto(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	data, err := protojson.MarshalOptions{Multiline: true}.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write checkpoint file: %w", err)
	}

	return nil
}

// fromProto converts the stored document into a Checkpoint.
func fromProto(doc *structpb.Struct) (*Checkpoint, error) {
	fields := doc.GetFields()

	t, ok := fields[keyTime].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return nil, fmt.Errorf("%w: no %s", errMalformed, keyTime)
	}

	cp := &Checkpoint{
		Time:   t.NumberValue,
		Fields: make(map[string][]float64),
	}

	if saved := fields[keySavedAt].GetStructValue(); saved != nil {
		ts := &timestamppb.Timestamp{
			Seconds: int64(saved.GetFields()[keySeconds].GetNumberValue()),
			Nanos:   int32(saved.GetFields()[keyNanos].GetNumberValue()),
		}

		if err := ts.CheckValid(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errMalformed, keySavedAt, err)
		}

		cp.SavedAt = ts.AsTime()
	}

	if params := fields[keyParams].GetStructValue(); params != nil {
		cp.Params = params.AsMap()
	}

	for key, value := range fields[keyFields].GetStructValue().GetFields() {
		list := value.GetListValue()
		if list == nil {
			return nil, fmt.Errorf("%w: field %s is not a list", errMalformed, key)
		}

		values := make([]float64, len(list.GetValues()))
		for i, v := range list.GetValues() {
			n, ok := v.GetKind().(*structpb.Value_NumberValue)
			if !ok {
				return nil, fmt.Errorf("%w: field %s[%d] is not a number", errMalformed, key, i)
			}

			values[i] = n.NumberValue
		}

		cp.Fields[key] = values
	}

	return cp, nil
}

// toProto converts a Checkpoint into the stored document.
func toProto(cp *Checkpoint) (*structpb.Struct, error) {
	if cp == nil {
		return nil, fmt.Errorf("%w: nil checkpoint", errMalformed)
	}

	fields := make(map[string]*structpb.Value, len(cp.Fields))

	for key, values := range cp.Fields {
		list := make([]*structpb.Value, len(values))
		for i, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("field %s[%d] is not finite", key, i)
			}

			list[i] = structpb.NewNumberValue(v)
		}

		fields[key] = structpb.NewListValue(&structpb.ListValue{Values: list})
	}

	doc := &structpb.Struct{Fields: map[string]*structpb.Value{
		keyTime:   structpb.NewNumberValue(cp.Time),
		keyFields: structpb.NewStructValue(&structpb.Struct{Fields: fields}),
	}}

	if !cp.SavedAt.IsZero() {
		ts := timestamppb.New(cp.SavedAt)
		doc.Fields[keySavedAt] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			keySeconds: structpb.NewNumberValue(float64(ts.GetSeconds())),
			keyNanos:   structpb.NewNumberValue(float64(ts.GetNanos())),
		}})
	}

	if cp.Params != nil {
		params, err := structpb.NewStruct(cp.Params)
		if err != nil {
			return nil, fmt.Errorf("params: %w", err)
		}

		doc.Fields[keyParams] = structpb.NewStructValue(params)
	}

	return doc, nil
}
