// Package internaldefs holds the exported metric names and histogram bounds.
//
// Names are stable; dashboards depend on them. The package performs no I/O.
package internaldefs
