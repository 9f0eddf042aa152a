// Package hub implements the relite inspector hub.
//
// Processes attach their stores through the WebSocket transport; the hub keeps
// a bounded history per instance and routes commands (jump, reset, ...) back
// to them. The JSON API is what the relite CLI talks to.
package hub

import (
	"cmp"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/relite/internal/logging"
	"github.com/aretw0/relite/pkg/domain"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMaxHistory bounds the entries kept per instance.
const DefaultMaxHistory = 200

// Entry is one recorded init or action of an instance.
// Entry IDs follow the bridge numbering: 0 is the init state, actions count from 1.
type Entry struct {
	ID     int                   `json:"id"`
	Kind   domain.EnvelopeKind   `json:"kind"`
	Action *domain.DevToolAction `json:"action,omitempty"`
	State  json.RawMessage       `json:"state,omitempty"`
	Time   time.Time             `json:"time"`
}

// InstanceInfo summarizes an instance for listings.
type InstanceInfo struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Actions     []string        `json:"actions,omitempty"`
	Connected   bool            `json:"connected"`
	ConnectedAt time.Time       `json:"connectedAt"`
	Entries     int             `json:"entries"`
	State       json.RawMessage `json:"state,omitempty"`
}

// instance is the hub-side view of one attached store.
type instance struct {
	id          string
	name        string
	actions     []string
	connectedAt time.Time

	// peer identifies the connection the instance was seen on; nil once it left.
	peer any
	send func(env domain.Envelope) error

	history []Entry
	nextID  int
	state   json.RawMessage
}

func (i *instance) info() InstanceInfo {
	return InstanceInfo{
		ID:          i.id,
		Name:        i.name,
		Actions:     slices.Clone(i.actions),
		Connected:   i.peer != nil,
		ConnectedAt: i.connectedAt,
		Entries:     len(i.history),
		State:       i.state,
	}
}

// Hub tracks instances. Safe for concurrent use.
type Hub struct {
	mu         sync.RWMutex
	instances  map[string]*instance
	maxHistory int
	logger     *slog.Logger
	upgrader   websocket.Upgrader

	registry    *prometheus.Registry
	connections prometheus.Gauge
	frames      *prometheus.CounterVec
	commands    prometheus.Counter
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger configures a logger for hub diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMaxHistory bounds the entries kept per instance.
func WithMaxHistory(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.maxHistory = n
		}
	}
}

// WithOrigins restricts WebSocket handshakes to the given origins.
// Without it any origin is accepted.
func WithOrigins(origins ...string) Option {
	return func(h *Hub) {
		if len(origins) == 0 {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(origins, r.Header.Get("Origin"))
		}
	}
}

// WithRegistry sets the Prometheus registry served on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(h *Hub) {
		if reg != nil {
			h.registry = reg
		}
	}
}

// New creates an empty hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		instances:  make(map[string]*instance),
		maxHistory: DefaultMaxHistory,
		logger:     logging.NewNop(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relite_hub_connections",
			Help: "Number of connected instances",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relite_hub_frames_total",
			Help: "Total number of frames received from instances",
		}, []string{"kind"}),
		commands: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relite_hub_commands_total",
			Help: "Total number of commands routed to instances",
		}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.registry == nil {
		h.registry = prometheus.NewRegistry()
	}
	h.registry.MustRegister(h.connections, h.frames, h.commands)
	return h
}

// Instances lists every known instance, connected or not, by name then ID.
func (h *Hub) Instances() []InstanceInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]InstanceInfo, 0, len(h.instances))
	for _, id := range slices.Sorted(maps.Keys(h.instances)) {
		out = append(out, h.instances[id].info())
	}
	slices.SortStableFunc(out, func(a, b InstanceInfo) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// Instance returns one instance summary.
func (h *Hub) Instance(id string) (InstanceInfo, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	inst, ok := h.instances[id]
	if !ok {
		return InstanceInfo{}, fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, id)
	}
	return inst.info(), nil
}

// History returns the recorded entries of an instance, oldest first.
func (h *Hub) History(id string) ([]Entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	inst, ok := h.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, id)
	}
	return slices.Clone(inst.history), nil
}

// Command sends msg to a connected instance. Jump commands without a state
// snapshot get the one recorded for their actionId.
func (h *Hub) Command(id string, msg domain.DevToolMessage) error {
	h.mu.RLock()
	inst, ok := h.instances[id]
	var send func(domain.Envelope) error
	if ok && inst.peer != nil {
		send = inst.send
		if msg.State == "" && isJump(msg) {
			if state, found := lookup(inst.history, msg.Payload["actionId"]); found {
				msg.State = string(state)
			}
		}
	}
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, id)
	}
	if send == nil {
		return fmt.Errorf("%w: %s is disconnected", domain.ErrDevToolUnavailable, id)
	}

	if err := send(domain.Envelope{Kind: domain.KindCommand, Instance: id, Message: &msg, Time: time.Now()}); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	h.commands.Inc()
	h.logger.Debug("Command routed", "instance", id, "type", msg.Type)
	return nil
}

func isJump(msg domain.DevToolMessage) bool {
	if msg.Type != domain.MessageDispatch {
		return false
	}
	t, _ := msg.Payload["type"].(string)
	return t == domain.CommandJumpToAction || t == domain.CommandJumpToState
}

func lookup(history []Entry, rawID any) (json.RawMessage, bool) {
	var id int
	switch v := rawID.(type) {
	case int:
		id = v
	case float64:
		id = int(v)
	default:
		return nil, false
	}
	for _, e := range history {
		if e.ID == id {
			return e.State, true
		}
	}
	return nil, false
}

// Record applies one inbound envelope to the instance it names. peer identifies
// the connection it arrived on and send writes commands back to that instance.
func (h *Hub) Record(env domain.Envelope, peer any, send func(domain.Envelope) error) {
	h.frames.WithLabelValues(string(env.Kind)).Inc()

	h.mu.Lock()
	defer h.mu.Unlock()

	inst, ok := h.instances[env.Instance]
	switch env.Kind {
	case domain.KindConnect:
		if !ok {
			inst = &instance{id: env.Instance}
			h.instances[env.Instance] = inst
		}
		if env.Config != nil {
			inst.name = env.Config.Name
			inst.actions = env.Config.ActionsAllowlist
		}
		inst.peer, inst.send = peer, send
		inst.connectedAt = env.Time
		h.logger.Info("Instance connected", "instance", env.Instance, "name", inst.name)

	case domain.KindInit:
		if !ok {
			return
		}
		inst.history = []Entry{{ID: 0, Kind: env.Kind, State: env.State, Time: env.Time}}
		inst.nextID = 1
		inst.state = env.State

	case domain.KindAction:
		if !ok {
			return
		}
		inst.history = append(inst.history, Entry{ID: inst.nextID, Kind: env.Kind, Action: env.Action, State: env.State, Time: env.Time})
		inst.nextID++
		if over := len(inst.history) - h.maxHistory; over > 0 {
			inst.history = slices.Delete(inst.history, 0, over)
		}
		inst.state = env.State

	default:
		h.logger.Debug("Frame ignored", "instance", env.Instance, "kind", env.Kind)
	}
}

// Disconnect marks every instance seen on peer as disconnected.
func (h *Hub) Disconnect(peer any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, inst := range h.instances {
		if inst.peer == peer {
			inst.peer, inst.send = nil, nil
			h.logger.Info("Instance disconnected", "instance", inst.id)
		}
	}
}
