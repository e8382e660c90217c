package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/forPelevin/adcut/internal/store"
)

// WSHub fans job events out to connected clients. Slow clients drop
// messages rather than stall the render.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*wsClient]bool
	activeJobs map[string]json.RawMessage // job id -> last job:update payload
	jobsMu     sync.RWMutex
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

type WSMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type wsLogPayload struct {
	JobID string `json:"job_id"`
	Line  string `json:"line"`
}

func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*wsClient]bool),
		activeJobs: make(map[string]json.RawMessage),
	}
}

// BroadcastJob pushes a job:update event and keeps a snapshot of
// non-terminal jobs so late joiners see current state.
func (h *WSHub) BroadcastJob(j *store.Job) {
	msg, err := json.Marshal(WSMessage{Event: "job:update", Data: j})
	if err != nil {
		return
	}
	h.trackJob(j.ID, j.Status, msg)
	h.fanOut(msg)
}

// BroadcastLog pushes one engine log line as a job:log event.
func (h *WSHub) BroadcastLog(jobID, line string) {
	msg, err := json.Marshal(WSMessage{Event: "job:log", Data: wsLogPayload{JobID: jobID, Line: line}})
	if err != nil {
		return
	}
	h.fanOut(msg)
}

func (h *WSHub) fanOut(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
		}
	}
}

func (h *WSHub) trackJob(id, status string, raw []byte) {
	if id == "" {
		return
	}
	h.jobsMu.Lock()
	defer h.jobsMu.Unlock()
	switch status {
	case store.JobStatusSucceeded, store.JobStatusFailed, store.JobStatusCanceled:
		delete(h.activeJobs, id)
	default:
		h.activeJobs[id] = json.RawMessage(raw)
	}
}

// sendActiveJobs replays in-flight job state to a newly connected client.
func (h *WSHub) sendActiveJobs(client *wsClient) {
	h.jobsMu.RLock()
	defer h.jobsMu.RUnlock()
	for _, msg := range h.activeJobs {
		select {
		case client.send <- msg:
		default:
		}
	}
}

func (h *WSHub) addClient(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *WSHub) removeClient(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func eventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			cfg.Logger.Warn("websocket accept", zap.Error(err))
			return
		}

		client := &wsClient{
			conn: conn,
			send: make(chan []byte, 64),
		}

		cfg.Hub.addClient(client)
		cfg.Hub.sendActiveJobs(client)
		cfg.Logger.Debug("websocket client connected")

		ctx := r.Context()

		go func() {
			defer conn.Close(websocket.StatusNormalClosure, "")
			for msg := range client.send {
				if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
					return
				}
			}
		}()

		// Reads only keep the connection alive; clients do not send
		// anything we act on.
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				break
			}
		}

		cfg.Hub.removeClient(client)
		cfg.Logger.Debug("websocket client disconnected")
	}
}
