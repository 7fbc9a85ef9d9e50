package domain

import (
	"fmt"
	"strings"
)

// NodeKind identifies which level of the hierarchy a node belongs to
type NodeKind string

const (
	KindNetwork   NodeKind = "network"
	KindBuilding  NodeKind = "building"
	KindRouter    NodeKind = "router"
	KindSwitch    NodeKind = "switch"
	KindEndDevice NodeKind = "device"
)

// Kinds lists every kind from the root down
var Kinds = []NodeKind{KindNetwork, KindBuilding, KindRouter, KindSwitch, KindEndDevice}

// ParseKind converts a user-supplied kind name into a NodeKind
func ParseKind(s string) (NodeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "network":
		return KindNetwork, nil
	case "building":
		return KindBuilding, nil
	case "router":
		return KindRouter, nil
	case "switch":
		return KindSwitch, nil
	case "device", "enddevice", "end_device", "end-device":
		return KindEndDevice, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Valid reports whether k is one of the known kinds
func (k NodeKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParentKind returns the kind that owns nodes of kind k.
// The network is the root and has no parent.
func (k NodeKind) ParentKind() (NodeKind, bool) {
	switch k {
	case KindBuilding:
		return KindNetwork, true
	case KindRouter:
		return KindBuilding, true
	case KindSwitch:
		return KindRouter, true
	case KindEndDevice:
		return KindSwitch, true
	}
	return "", false
}

// ChildKind returns the kind of node that k owns
func (k NodeKind) ChildKind() (NodeKind, bool) {
	switch k {
	case KindNetwork:
		return KindBuilding, true
	case KindBuilding:
		return KindRouter, true
	case KindRouter:
		return KindSwitch, true
	case KindSwitch:
		return KindEndDevice, true
	}
	return "", false
}

// Addressable reports whether nodes of this kind have a network address
// and therefore take part in monitoring sweeps.
func (k NodeKind) Addressable() bool {
	return k == KindRouter || k == KindSwitch || k == KindEndDevice
}

// Named reports whether nodes of this kind are keyed by a globally unique name
// instead of an external id.
func (k NodeKind) Named() bool {
	return k == KindNetwork || k == KindBuilding
}
