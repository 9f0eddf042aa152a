package hub

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/relite/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const writeTimeout = 5 * time.Second

// Handler returns the hub routes.
func (h *Hub) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ws", h.ServeWS)
	r.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))

	r.Route("/api/instances", func(r chi.Router) {
		r.Get("/", h.listInstances)
		r.Get("/{id}", h.getInstance)
		r.Get("/{id}/history", h.getHistory)
		r.Post("/{id}/commands", h.postCommand)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServeWS upgrades the request and reads envelopes until the peer leaves.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "err", err)
		return
	}
	defer socket.Close()

	h.connections.Inc()
	defer h.connections.Dec()
	defer h.Disconnect(socket)

	var writeMu sync.Mutex
	send := func(env domain.Envelope) error {
		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		socket.SetWriteDeadline(time.Now().Add(writeTimeout))
		return socket.WriteMessage(websocket.TextMessage, data)
	}

	for {
		messageType, data, err := socket.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("WebSocket read ended", "err", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.logger.Warn("Invalid frame", "err", err)
			continue
		}
		if env.Instance == "" {
			h.logger.Warn("Frame without instance", "kind", env.Kind)
			continue
		}
		h.Record(env, socket, send)
	}
}

func (h *Hub) listInstances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Instances())
}

func (h *Hub) getInstance(w http.ResponseWriter, r *http.Request) {
	info, err := h.Instance(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Hub) getHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.History(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Hub) postCommand(w http.ResponseWriter, r *http.Request) {
	var msg domain.DevToolMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		h.logger.Warn("Command: invalid request body", "err", err)
		return
	}
	if msg.Type == "" {
		http.Error(w, "Command type is required", http.StatusBadRequest)
		return
	}
	if err := h.Command(chi.URLParam(r, "id"), msg); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInstanceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDevToolUnavailable):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
