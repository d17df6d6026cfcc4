package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"clinedit-collab/internal/dto"
	"clinedit-collab/internal/entity"
	"clinedit-collab/internal/pkg/logger"
	"clinedit-collab/internal/pkg/retry"
	"clinedit-collab/internal/pkg/token"

	"github.com/gorilla/websocket"
)

// ConnState is the connection lifecycle. Any state may fall back to
// disconnected on error or explicit close.
type ConnState string

const (
	StateDisconnected   ConnState = "disconnected"
	StateConnecting     ConnState = "connecting"
	StateAuthenticating ConnState = "authenticating"
	StateReady          ConnState = "ready"
	StateClosing        ConnState = "closing"
)

const writeWait = 10 * time.Second

// ConnConfig carries the transport knobs for one document connection.
type ConnConfig struct {
	// BaseURL is the websocket endpoint base, e.g. ws://host:3000/ws.
	// The document id is appended as a path segment.
	BaseURL     string
	OpenTimeout time.Duration
	AuthTimeout time.Duration
	Policy      retry.Policy
}

// ConnectionManager owns the single live websocket for one open document
// view. It performs the authentication handshake before surfacing ready and
// refuses to transmit comment traffic in any earlier state.
//
// It does NOT reconnect on its own after an unexpected drop: it surfaces
// disconnected through onState and leaves the re-open decision to the
// controller, which must replay the full open sequence.
type ConnectionManager struct {
	cfg    ConnConfig
	tokens token.Source
	log    logger.ILogger

	onFrame func([]byte)
	onState func(ConnState)

	mu           sync.Mutex
	state        ConnState
	conn         *websocket.Conn
	openInFlight bool
	closing      bool

	writeMu sync.Mutex
}

func NewConnectionManager(cfg ConnConfig, tokens token.Source, log logger.ILogger) *ConnectionManager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ConnectionManager{
		cfg:    cfg,
		tokens: tokens,
		log:    log,
		state:  StateDisconnected,
	}
}

// SetHandlers wires the frame and state callbacks. Must be called before
// Open. Frames are delivered sequentially from a single reader goroutine,
// preserving server delivery order.
func (m *ConnectionManager) SetHandlers(onFrame func([]byte), onState func(ConnState)) {
	m.onFrame = onFrame
	m.onState = onState
}

func (m *ConnectionManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Open establishes the transport and completes the auth handshake. Exactly
// one attempt may be in flight per manager; transport-level failures are
// retried per the policy, an explicit auth_failed is surfaced immediately.
func (m *ConnectionManager) Open(ctx context.Context, documentId, shareToken string, identity entity.Identity) error {
	m.mu.Lock()
	if m.openInFlight {
		m.mu.Unlock()
		return ErrOpenInFlight
	}
	if m.state == StateReady {
		m.mu.Unlock()
		return ErrAlreadyOpen
	}
	m.openInFlight = true
	m.closing = false
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.openInFlight = false
		m.mu.Unlock()
	}()

	err := m.cfg.Policy.Do(ctx, func(ctx context.Context) error {
		return m.attempt(ctx, documentId, shareToken, identity)
	})
	if err != nil {
		m.setState(StateDisconnected)
		return err
	}
	return nil
}

func (m *ConnectionManager) attempt(ctx context.Context, documentId, shareToken string, identity entity.Identity) error {
	m.setState(StateConnecting)

	// An expired bearer token is refreshed before dialing; the source runs
	// its own retry loop and reports permanent credential failures, which
	// the policy will not retry.
	tok, err := m.tokens.Token(ctx)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.OpenTimeout}
	url := fmt.Sprintf("%s/%s", m.cfg.BaseURL, documentId)

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		m.setState(StateDisconnected)
		return fmt.Errorf("dial %s: %w", url, err)
	}

	m.setState(StateAuthenticating)

	auth := dto.AuthMessage{
		Type:            dto.TypeAuth,
		UserId:          identity.UserId,
		UserName:        identity.UserName,
		UserEmail:       identity.Email,
		UserDisplayName: identity.DisplayName,
		FirebaseToken:   tok,
		ShareToken:      shareToken,
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(auth); err != nil {
		conn.Close()
		m.setState(StateDisconnected)
		return fmt.Errorf("send auth: %w", err)
	}

	// No comment traffic may race the handshake: the socket is not exposed
	// until the server acknowledges authentication.
	conn.SetReadDeadline(time.Now().Add(m.cfg.AuthTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		m.setState(StateDisconnected)
		return fmt.Errorf("await auth ack: %w", err)
	}

	var result dto.AuthResultMessage
	if err := json.Unmarshal(raw, &result); err != nil {
		conn.Close()
		m.setState(StateDisconnected)
		return fmt.Errorf("decode auth ack: %w", err)
	}

	switch result.Type {
	case dto.TypeAuthSuccess:
	case dto.TypeAuthFailed:
		conn.Close()
		m.setState(StateDisconnected)
		return &retry.AuthError{Permanent: true, Message: result.Message}
	default:
		conn.Close()
		m.setState(StateDisconnected)
		return fmt.Errorf("unexpected frame %q before auth ack", result.Type)
	}

	conn.SetReadDeadline(time.Time{})

	m.mu.Lock()
	m.conn = conn
	m.state = StateReady
	m.mu.Unlock()
	m.notify(StateReady)

	m.log.Info("ConnectionManager", "Connection ready", map[string]interface{}{"document_id": documentId})

	go m.readLoop(conn)
	return nil
}

// Send serializes and transmits immediately. It fails synchronously with
// ErrNotReady outside the ready state; nothing is queued for later.
func (m *ConnectionManager) Send(v interface{}) error {
	m.mu.Lock()
	if m.state != StateReady || m.conn == nil {
		m.mu.Unlock()
		return ErrNotReady
	}
	conn := m.conn
	m.mu.Unlock()

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Close tears the connection down deterministically. Idempotent: closing an
// already-closed connection is a no-op.
func (m *ConnectionManager) Close(reason string) error {
	m.mu.Lock()
	if m.state == StateDisconnected || m.conn == nil {
		m.state = StateDisconnected
		m.mu.Unlock()
		return nil
	}
	conn := m.conn
	m.conn = nil
	m.closing = true
	m.state = StateClosing
	m.mu.Unlock()
	m.notify(StateClosing)

	m.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
	m.writeMu.Unlock()

	err := conn.Close()
	m.setState(StateDisconnected)
	return err
}

func (m *ConnectionManager) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			wasClosing := m.closing
			if m.conn == conn {
				m.conn = nil
			}
			m.mu.Unlock()

			if !wasClosing {
				m.log.Warn("ConnectionManager", "Connection dropped", map[string]interface{}{"error": err.Error()})
				conn.Close()
				m.setState(StateDisconnected)
			}
			return
		}
		if m.onFrame != nil {
			m.onFrame(raw)
		}
	}
}

func (m *ConnectionManager) setState(s ConnState) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	m.mu.Unlock()
	m.notify(s)
}

func (m *ConnectionManager) notify(s ConnState) {
	if m.onState != nil {
		m.onState(s)
	}
}
