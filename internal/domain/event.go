package domain

import "time"

// EventType names an event on the broadcast channel.
// The names match what connected clients already listen for.
type EventType string

const (
	EventNodeStatus  EventType = "nodeStatus"
	EventNodeAdded   EventType = "node-added"
	EventNodeDeleted EventType = "node-deleted"
)

// Event is delivered to every broadcaster subscriber
type Event struct {
	Type     EventType `json:"type"`
	NodeID   string    `json:"node_id"`
	Kind     NodeKind  `json:"kind,omitempty"`
	ParentID string    `json:"parent_id,omitempty"`
	Address  string    `json:"address,omitempty"`
	Status   Status    `json:"status,omitempty"`
	Time     time.Time `json:"time"`
}

// NewStatusEvent reports a liveness change for one node
func NewStatusEvent(nodeID, address string, status Status) Event {
	return Event{
		Type:    EventNodeStatus,
		NodeID:  nodeID,
		Address: address,
		Status:  status,
		Time:    time.Now().UTC(),
	}
}

// NewTopologyEvent reports a structural change to the hierarchy
func NewTopologyEvent(t EventType, n *Node) Event {
	return Event{
		Type:     t,
		NodeID:   n.ID,
		Kind:     n.Kind,
		ParentID: n.ParentID,
		Address:  n.Address,
		Time:     time.Now().UTC(),
	}
}
