// Package client speaks the /api/v2/generate WebSocket protocol.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"inferd/pkg/types"
)

// DefaultStopSequence ends a chat turn.
const DefaultStopSequence = "\n\n"

// Client is one WebSocket connection. It is not safe for concurrent use.
type Client struct {
	conn      *websocket.Conn
	sessionID string
}

// Dial connects to baseURL (http(s):// or ws(s)://) and opens the protocol
// endpoint.
func Dial(ctx context.Context, baseURL string) (*Client, error) {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	}
	if !strings.HasSuffix(u, "/api/v2/generate") {
		u += "/api/v2/generate"
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "dial %s: HTTP %d", u, resp.StatusCode)
		}
		return nil, errors.Wrapf(err, "dial %s", u)
	}
	return &Client{conn: conn}, nil
}

// ServerError is a {"ok":false} envelope.
type ServerError struct {
	Traceback string
}

func (e *ServerError) Error() string { return "server error: " + e.Traceback }

// SessionID returns the id of the open session, if any.
func (c *Client) SessionID() string { return c.sessionID }

// Open starts a session for model with room for maxLength tokens.
func (c *Client) Open(model string, maxLength int) (string, error) {
	ml := maxLength
	if err := c.conn.WriteJSON(types.ClientMessage{Type: types.MsgOpenSession, Model: model, MaxLength: &ml}); err != nil {
		return "", errors.Wrap(err, "send open")
	}
	f, err := c.read()
	if err != nil {
		return "", err
	}
	c.sessionID = f.SessionID
	return f.SessionID, nil
}

// Attach binds the connection to an existing session.
func (c *Client) Attach(sessionID string) error {
	if err := c.conn.WriteJSON(types.ClientMessage{Type: types.MsgOpenSession, SessionID: sessionID}); err != nil {
		return errors.Wrap(err, "send open")
	}
	f, err := c.read()
	if err != nil {
		return err
	}
	c.sessionID = f.SessionID
	return nil
}

// Generate sends one generate message and calls onChunk for every chunk until
// the server marks one with stop. It returns the concatenated output.
func (c *Client) Generate(msg types.ClientMessage, onChunk func(types.Frame)) (string, error) {
	msg.Type = types.MsgGenerate
	if err := c.conn.WriteJSON(msg); err != nil {
		return "", errors.Wrap(err, "send generate")
	}
	var out strings.Builder
	for {
		f, err := c.read()
		if err != nil {
			return out.String(), err
		}
		out.WriteString(f.Outputs)
		if onChunk != nil {
			onChunk(f)
		}
		if f.Stop {
			return out.String(), nil
		}
	}
}

// CloseSession closes the current session; the connection stays open.
func (c *Client) CloseSession() error {
	if err := c.conn.WriteJSON(types.ClientMessage{Type: types.MsgCloseSession}); err != nil {
		return errors.Wrap(err, "send close")
	}
	c.sessionID = ""
	_, err := c.read()
	return err
}

// Close closes the connection.
func (c *Client) Close() error {
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

func (c *Client) read() (types.Frame, error) {
	var f types.Frame
	if err := c.conn.ReadJSON(&f); err != nil {
		return f, errors.Wrap(err, "read frame")
	}
	if !f.OK {
		return f, &ServerError{Traceback: f.Traceback}
	}
	return f, nil
}

// String describes the connection for logs.
func (c *Client) String() string {
	return fmt.Sprintf("client(%s, session=%s)", c.conn.RemoteAddr(), c.sessionID)
}
