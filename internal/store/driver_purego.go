//go:build !sqlite_vec || !cgo

package store

import (
	_ "modernc.org/sqlite"
)

// Pure-Go build: modernc driver plus the vec0 compat shim registered in
// vec_compat.go.
const (
	driverName = "sqlite"
	distanceFn = "vector_distance_cos"
)
