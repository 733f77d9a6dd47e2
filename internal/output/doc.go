// Package output stores field snapshots in a NetCDF classic file with an
// unlimited time dimension, one record per outer step, and reads them back.
//
// Point fields are written as (time, y, x) with row 0 the southern row, edge
// fields as (time, edge) and domain fields as (time).
package output
