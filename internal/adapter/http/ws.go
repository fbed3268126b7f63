package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/bnema/scribe/internal/infrastructure/logger"
	"github.com/bnema/scribe/internal/service"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

// clientMessage is what subscribers send over the socket.
type clientMessage struct {
	Type  string `json:"type"`
	JobID string `json:"jobId"`
}

// ackMessage confirms a subscription to the client.
type ackMessage struct {
	Type  string `json:"type"`
	JobID string `json:"jobId"`
}

// WSHandler streams job events to websocket clients. A client subscribes to
// individual job IDs and receives that job's progress and terminal events as
// JSON messages. Multiple clients may watch the same job.
type WSHandler struct {
	bus      *service.EventBus
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWSHandler(bus *service.EventBus) *WSHandler {
	return &WSHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: logger.WithComponent("ws"),
	}
}

func (h *WSHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		h.serve(conn)
	}
}

func (h *WSHandler) serve(conn *websocket.Conn) {
	defer conn.Close() //nolint:errcheck

	send := make(chan any, 32)
	subs := make(map[string]chan service.Event)
	var wg sync.WaitGroup

	writerDone := make(chan struct{})
	go h.writer(conn, send, writerDone)

	defer func() {
		for jobID, ch := range subs {
			h.bus.Unsubscribe(jobID, ch)
		}
		// Forwarders exit once their channels close; only then is send safe
		// to close.
		wg.Wait()
		close(send)
		<-writerDone
	}()

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}

		switch msg.Type {
		case "subscribe":
			if msg.JobID == "" {
				continue
			}
			if _, ok := subs[msg.JobID]; ok {
				continue
			}
			ch := h.bus.Subscribe(msg.JobID)
			subs[msg.JobID] = ch
			wg.Add(1)
			go forward(ch, send, &wg)
			enqueue(send, ackMessage{Type: "subscribed", JobID: msg.JobID})

		case "unsubscribe":
			if ch, ok := subs[msg.JobID]; ok {
				h.bus.Unsubscribe(msg.JobID, ch)
				delete(subs, msg.JobID)
			}
		}
	}
}

// forward relays bus events onto the connection's send queue until the bus
// closes the subscription channel.
func forward(ch chan service.Event, send chan any, wg *sync.WaitGroup) {
	defer wg.Done()
	for event := range ch {
		enqueue(send, event)
	}
}

// enqueue drops the message when the send queue is full so a stalled client
// never blocks event delivery.
func enqueue(send chan any, msg any) {
	select {
	case send <- msg:
	default:
	}
}

// writer owns all writes on the connection, serializing event delivery and
// keepalive pings.
func (h *WSHandler) writer(conn *websocket.Conn, send chan any, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-send:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Msg("websocket write error")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
