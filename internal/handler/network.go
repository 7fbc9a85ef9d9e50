package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"netpulse/internal/domain"
	"netpulse/internal/monitor"
	"netpulse/internal/service"
)

// Sweeper runs a monitoring sweep on demand
type Sweeper interface {
	Sweep(ctx context.Context) (monitor.Report, error)
}

// NetworkHandler handles hierarchy API requests
type NetworkHandler struct {
	svc     *service.MutationService
	sweeper Sweeper
	logger  *zap.Logger
}

// NewNetworkHandler creates a new network handler
func NewNetworkHandler(svc *service.MutationService, logger *zap.Logger) *NetworkHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NetworkHandler{svc: svc, logger: logger.Named("http")}
}

// SetSweeper enables the manual sweep endpoint
func (h *NetworkHandler) SetSweeper(s Sweeper) {
	h.sweeper = s
}

// Register adds the network routes to mux
func (h *NetworkHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/network", h.GetHierarchy)
	mux.HandleFunc("POST /api/network/nodes", h.AddNode)
	mux.HandleFunc("GET /api/network/nodes/{id}", h.GetNode)
	mux.HandleFunc("DELETE /api/network/nodes/{id}", h.RemoveNode)
	mux.HandleFunc("GET /api/network/parent-nodes/{kind}", h.ParentNodes)
	mux.HandleFunc("POST /api/network/sweep", h.Sweep)
	mux.HandleFunc("GET /api/export/{format}", h.Export)
	mux.HandleFunc("GET /healthz", h.Health)
}

// AddNodeRequest is the body of POST /api/network/nodes
type AddNodeRequest struct {
	Type     string            `json:"type"`
	ParentID string            `json:"parentId"`
	Details  domain.Attributes `json:"details"`
}

// AddNodeResponse is returned after a node is created
type AddNodeResponse struct {
	ID   string       `json:"id"`
	Node *domain.Node `json:"node"`
}

// GetHierarchy returns the nested tree under the network
func (h *NetworkHandler) GetHierarchy(w http.ResponseWriter, r *http.Request) {
	tree := h.svc.Hierarchy()
	if tree == nil {
		writeError(w, h.logger, "Network not found", "", http.StatusNotFound)
		return
	}
	writeJSON(w, h.logger, tree, http.StatusOK)
}

// AddNode creates a router, switch or device under parentId
func (h *NetworkHandler) AddNode(w http.ResponseWriter, r *http.Request) {
	var req AddNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		writeError(w, h.logger, "Type and details are required", "", http.StatusBadRequest)
		return
	}

	kind, err := domain.ParseKind(req.Type)
	if err != nil {
		writeDomainError(w, h.logger, "Invalid node type", err)
		return
	}

	id, err := h.svc.AddNode(r.Context(), kind, req.ParentID, req.Details)
	if err != nil {
		writeDomainError(w, h.logger, fmt.Sprintf("Failed to add %s", kind), err)
		return
	}

	node, err := h.svc.GetNode(id)
	if err != nil {
		// removed again before we could read it back
		writeJSON(w, h.logger, AddNodeResponse{ID: id}, http.StatusCreated)
		return
	}
	writeJSON(w, h.logger, AddNodeResponse{ID: id, Node: node}, http.StatusCreated)
}

// GetNode returns a single node
func (h *NetworkHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	node, err := h.svc.GetNode(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, h.logger, "Node not found", err)
		return
	}
	writeJSON(w, h.logger, node, http.StatusOK)
}

// RemoveNode deletes a router, switch or device
func (h *NetworkHandler) RemoveNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.svc.RemoveNode(r.Context(), id); err != nil {
		writeDomainError(w, h.logger, "Failed to delete node", err)
		return
	}
	writeJSON(w, h.logger, map[string]string{"message": "Node deleted", "id": id}, http.StatusOK)
}

// ParentNodes lists the nodes that can own a new node of the given kind
func (h *NetworkHandler) ParentNodes(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeDomainError(w, h.logger, "Invalid node type", err)
		return
	}

	options, err := h.svc.ParentCandidates(kind)
	if err != nil {
		writeDomainError(w, h.logger, "Invalid node type", err)
		return
	}
	writeJSON(w, h.logger, options, http.StatusOK)
}

// SweepResponse reports a manual sweep
type SweepResponse struct {
	monitor.Report
	DurationMs int64 `json:"duration_ms"`
}

// Sweep runs one monitoring sweep and reports what changed
func (h *NetworkHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		writeError(w, h.logger, "Monitoring disabled", "", http.StatusServiceUnavailable)
		return
	}

	report, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		if errors.Is(err, monitor.ErrSweepInProgress) {
			writeError(w, h.logger, "Sweep already in progress", "", http.StatusConflict)
			return
		}
		writeDomainError(w, h.logger, "Sweep failed", err)
		return
	}
	writeJSON(w, h.logger, SweepResponse{Report: report, DurationMs: report.Duration.Milliseconds()}, http.StatusOK)
}

// Health reports that the server is up
func (h *NetworkHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, map[string]string{"status": "ok"}, http.StatusOK)
}
