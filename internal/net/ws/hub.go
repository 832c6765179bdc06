package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"footfall/server/internal/telemetry"
)

const writeWait = 10 * time.Second

// Format selects the frame encoding for a subscriber.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat maps a query value onto a Format, defaulting to JSON.
func ParseFormat(raw string) Format {
	if raw == string(FormatMsgpack) {
		return FormatMsgpack
	}
	return FormatJSON
}

type subscriber struct {
	conn   *websocket.Conn
	format Format
	mu     sync.Mutex
}

func (s *subscriber) write(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

// Hub fans telemetry frames out to websocket subscribers.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	logger      telemetry.Logger
	counters    *telemetry.Counters
}

type HubConfig struct {
	Logger   telemetry.Logger
	Counters *telemetry.Counters
}

func NewHub(cfg HubConfig) *Hub {
	return &Hub{
		subscribers: make(map[string]*subscriber),
		logger:      cfg.Logger,
		counters:    cfg.Counters,
	}
}

// Subscribe registers conn and returns its generated ID.
func (h *Hub) Subscribe(conn *websocket.Conn, format Format) string {
	id := uuid.NewString()
	h.mu.Lock()
	h.subscribers[id] = &subscriber{conn: conn, format: format}
	h.mu.Unlock()
	return id
}

// Unsubscribe removes and closes the subscriber if it is still registered.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	delete(h.subscribers, id)
	h.mu.Unlock()
	if ok {
		sub.conn.Close()
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// PublishFrame encodes the frame once per format in use and writes it to every
// subscriber. Subscribers that fail a write are dropped.
func (h *Hub) PublishFrame(frame telemetry.Frame) {
	h.mu.Lock()
	subs := make(map[string]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs[id] = sub
	}
	h.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	encoded := make(map[Format][]byte, 2)
	for id, sub := range subs {
		data, ok := encoded[sub.format]
		if !ok {
			var err error
			data, err = encodeFrame(frame, sub.format)
			if err != nil {
				h.logf("failed to encode %s frame: %v", sub.format, err)
				return
			}
			encoded[sub.format] = data
		}

		messageType := websocket.TextMessage
		if sub.format == FormatMsgpack {
			messageType = websocket.BinaryMessage
		}
		if err := sub.write(messageType, data); err != nil {
			h.logf("failed to send frame to %s: %v", id, err)
			h.Unsubscribe(id)
			continue
		}
		h.counters.RecordBroadcast(len(data))
	}
}

func encodeFrame(frame telemetry.Frame, format Format) ([]byte, error) {
	if format == FormatMsgpack {
		return msgpack.Marshal(frame)
	}
	return json.Marshal(frame)
}

func (h *Hub) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}

var _ telemetry.FrameSink = (*Hub)(nil)
