//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// cgo build: mattn driver with the real sqlite-vec extension. vec.Auto()
// registers it as an auto-loadable extension.
const (
	driverName = "sqlite3"
	distanceFn = "vec_distance_cosine"
)

func init() {
	vec.Auto()
}
