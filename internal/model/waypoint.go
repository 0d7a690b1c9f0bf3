package model

// Waypoint is a directed associative edge between two memories. At any
// time each SrcID has at most one outgoing edge — the single-waypoint
// invariant enforced by internal/graph and internal/store.
type Waypoint struct {
	SrcID  int64
	DstID  int64
	Weight float64
}
