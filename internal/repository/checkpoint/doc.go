// Package checkpoint persists simulation state so a run can be resumed.
//
// The FileRepository stores a Checkpoint on disk as protobuf JSON of a
// google.protobuf.Struct and exposes a Repository interface that the
// simulation service depends on.
package checkpoint
