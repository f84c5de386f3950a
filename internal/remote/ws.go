package remote

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"nhooyr.io/websocket"

	"github.com/Cobzariu/CarApp/internal/logging"
	"github.com/Cobzariu/CarApp/internal/models"
)

// Event is the wire envelope for realtime messages in both directions.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

const (
	// EventCreated and EventUpdated carry a full car record payload.
	EventCreated = "created"
	EventUpdated = "updated"

	eventAuthorization = "authorization"
)

type authPayload struct {
	Token string `json:"token"`
}

// EventHandler receives remote-origin record changes.
type EventHandler func(eventType string, car *models.Car)

// Listener maintains one realtime subscription. It is lifecycle-bound to a
// token: the owner closes it and builds a new one when the token changes.
// Reconnection after network failure is the owner's concern, not the
// listener's.
type Listener struct {
	url    string
	logger logging.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	closed bool
}

// NewListener builds a listener for the store at baseURL (http/https scheme,
// swapped to ws/wss for dialing).
func NewListener(baseURL string, logger logging.Logger) *Listener {
	if logger == nil {
		logger = logging.Default()
	}
	wsURL := strings.Replace(baseURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	return &Listener{url: wsURL, logger: logger}
}

// Connect dials the channel, sends the authorization frame and starts the
// read loop. Events of type "created"/"updated" with a record payload are
// delivered to onEvent until Close is called or the connection drops.
func (l *Listener) Connect(ctx context.Context, token string, onEvent EventHandler) error {
	conn, _, err := websocket.Dial(ctx, l.url, nil)
	if err != nil {
		return err
	}

	auth := Event{Type: eventAuthorization}
	auth.Payload, _ = json.Marshal(authPayload{Token: token})
	frame, _ := json.Marshal(auth)
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		conn.Close(websocket.StatusNormalClosure, "")
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		cancel()
		conn.Close(websocket.StatusNormalClosure, "listener closed")
		return nil
	}
	l.conn = conn
	l.cancel = cancel
	l.mu.Unlock()

	go l.readLoop(loopCtx, conn, onEvent)
	return nil
}

func (l *Listener) readLoop(ctx context.Context, conn *websocket.Conn, onEvent EventHandler) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Closure and read errors are not fatal to the engine.
			l.logger.Debug(ctx, "realtime channel closed", "err", err)
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			l.logger.Warn(ctx, "dropping malformed realtime message", "err", err)
			continue
		}
		if ev.Type != EventCreated && ev.Type != EventUpdated {
			continue
		}

		var car models.Car
		if err := json.Unmarshal(ev.Payload, &car); err != nil {
			l.logger.Warn(ctx, "dropping realtime message with bad payload",
				"type", ev.Type, "err", err)
			continue
		}

		// The callback runs under the lock so a concurrent Close either
		// completes before it starts or waits for it to finish; nothing
		// fires after Close returns.
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return
		}
		l.logger.Debug(ctx, "realtime event", "type", ev.Type, "id", car.ID)
		onEvent(ev.Type, &car)
		l.mu.Unlock()
	}
}

// Close tears the subscription down. It is idempotent and guarantees that
// no event callback fires after it returns.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	conn := l.conn
	cancel := l.cancel
	l.conn = nil
	l.cancel = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	return nil
}
