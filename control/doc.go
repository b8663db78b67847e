// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime introspection layer: named debug probes evaluated on demand,
// platform probes (CPU count, goroutines, descriptor limits) and a
// store for settings that can change while a server runs.
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
