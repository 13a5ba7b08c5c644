package httpapi

import (
	"errors"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"inferd/internal/manager"
	"inferd/pkg/types"
)

// writeWait bounds a single frame write.
const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     checkOrigin,
}

// checkOrigin accepts every origin unless CORS is enabled with an explicit
// origin list.
func checkOrigin(r *http.Request) bool {
	if !corsEnabled || len(corsAllowedOrigins) == 0 || slices.Contains(corsAllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(corsAllowedOrigins, origin)
}

// handleWS serves the streaming protocol on /api/v2/generate.
//
// @Summary      Streaming generation over WebSocket
// @Description  Send open_inference_session, then any number of generate messages; each yields chunks until one has stop=true.
// @Tags         generate
// @Param        message  body  types.ClientMessage  true  "Client message (sent as a WebSocket text frame)"
// @Success      101  {object}  types.ChunkResponse
// @Router       /api/v2/generate [get]
func handleWS(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already replied with an HTTP error.
			return
		}
		wsConnections.Inc()
		defer wsConnections.Dec()
		c := &wsConn{svc: svc, conn: conn, log: newReqLogger(r)}
		c.serve()
	}
}

// wsConn is the per-connection protocol state. Only serve's goroutine writes
// data frames; the keep-alive goroutine only sends control frames.
type wsConn struct {
	svc     Service
	conn    *websocket.Conn
	log     reqLogger
	session string
}

func (c *wsConn) serve() {
	defer c.conn.Close()
	done := make(chan struct{})
	defer close(done)
	if pingInterval > 0 {
		go c.keepAlive(done)
	}
	if ev := c.log.Info(); ev != nil {
		ev.Msg("ws connected")
	}
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(stepTimeout))
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				c.fail(protocolErrorf("no message received within %s", stepTimeout))
			}
			if ev := c.log.Info(); ev != nil {
				ev.Str("session_id", c.session).AnErr("reason", err).Msg("ws disconnected")
			}
			return
		}
		if kind != websocket.TextMessage {
			c.fail(protocolErrorf("expected a text frame"))
			return
		}
		msg, err := decodeClientMessage(data)
		if err != nil {
			wsMessagesTotal.WithLabelValues("invalid", "protocol_error").Inc()
			c.fail(err)
			return
		}
		if err := c.dispatch(msg); err != nil {
			var pe *ProtocolError
			if errors.As(err, &pe) {
				wsMessagesTotal.WithLabelValues(msg.Type, "protocol_error").Inc()
				c.fail(err)
				return
			}
			wsMessagesTotal.WithLabelValues(msg.Type, "error").Inc()
			if !c.sendError(err) {
				return
			}
			continue
		}
		wsMessagesTotal.WithLabelValues(msg.Type, "ok").Inc()
	}
}

// errConnGone aborts dispatch when a frame could not be written.
var errConnGone = errors.New("websocket connection lost")

// dispatch handles one message. A *ProtocolError closes the connection; any
// other error is reported in the envelope and the connection stays open.
func (c *wsConn) dispatch(msg types.ClientMessage) error {
	switch msg.Type {
	case types.MsgOpenSession:
		return c.open(msg)
	case types.MsgGenerate:
		return c.generate(msg)
	case types.MsgCloseSession:
		return c.close()
	}
	return protocolErrorf("unknown message type")
}

func (c *wsConn) open(msg types.ClientMessage) error {
	if c.session != "" {
		return protocolErrorf("a session is already open on this connection")
	}
	if msg.SessionID != "" {
		if err := c.svc.Touch(msg.SessionID); err != nil {
			return err
		}
		c.session = msg.SessionID
	} else {
		if msg.MaxLength == nil {
			return manager.ErrValidation("max_length is required")
		}
		id, err := c.svc.Open(serverBaseCtx, msg.Model, *msg.MaxLength)
		if err != nil {
			return err
		}
		c.session = id
	}
	if ev := c.log.Info(); ev != nil {
		ev.Str("session_id", c.session).Str("model", msg.Model).Msg("ws session attached")
	}
	return c.send(types.SessionResponse{OK: true, SessionID: c.session})
}

func (c *wsConn) generate(msg types.ClientMessage) error {
	if c.session == "" {
		return protocolErrorf("generate before open_inference_session")
	}
	req, err := wsGenerateRequest(msg)
	if err != nil {
		return err
	}
	start := time.Now()
	var sendErr error
	err = c.svc.Generate(serverBaseCtx, c.session, req, func(ch manager.Chunk) error {
		if ev := c.log.Debug(); ev != nil {
			ev.Str("session_id", c.session).Str("outputs", ch.Outputs).Bool("stop", ch.Stop).Msg("ws chunk")
		}
		sendErr = c.send(types.ChunkResponse{OK: true, Outputs: ch.Outputs, Stop: ch.Stop, TokenCount: ch.TokenCount})
		return sendErr
	})
	if sendErr != nil {
		return sendErr
	}
	if err != nil {
		if manager.IsSessionNotFound(err) {
			c.session = ""
		}
		return err
	}
	if ev := c.log.Info(); ev != nil {
		ev.Str("session_id", c.session).Dur("dur", time.Since(start)).Msg("ws generate done")
	}
	return nil
}

func (c *wsConn) close() error {
	if c.session == "" {
		return protocolErrorf("close_inference_session without an open session")
	}
	id := c.session
	c.session = ""
	if err := c.svc.Close(id); err != nil {
		return err
	}
	return c.send(types.SessionResponse{OK: true, SessionID: id})
}

func (c *wsConn) send(v any) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(v); err != nil {
		return errConnGone
	}
	return nil
}

// sendError reports a handler error; it returns false if the connection is gone.
func (c *wsConn) sendError(err error) bool {
	if errors.Is(err, errConnGone) {
		return false
	}
	c.logError(err)
	return c.send(types.ErrorResponse{OK: false, Traceback: err.Error()}) == nil
}

// fail reports a protocol error; the caller closes the connection.
func (c *wsConn) fail(err error) {
	c.logError(err)
	_ = c.send(types.ErrorResponse{OK: false, Traceback: err.Error()})
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "protocol error"),
		time.Now().Add(writeWait))
}

func (c *wsConn) logError(err error) {
	var ev *zerolog.Event
	if manager.IsEngineError(err) || statusOf(err) >= http.StatusInternalServerError {
		ev = c.log.Error()
	} else {
		ev = c.log.Info()
	}
	if ev != nil {
		ev.Err(err).Str("session_id", c.session).Msg("ws request failed")
	}
}

func (c *wsConn) keepAlive(done <-chan struct{}) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
