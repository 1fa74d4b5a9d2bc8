package channel

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Conn is the duplex transport the channel manages. Reads and writes carry
// whole JSON frames.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens transport connections. Tests inject a fake; production uses
// the websocket dialer below.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials real websocket endpoints.
type WebsocketDialer struct{}

func (WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return &websocketConn{conn: conn}, nil
}

type websocketConn struct {
	conn *websocket.Conn
}

func (c *websocketConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, errors.Wrap(err, "read frame")
	}
	return data, nil
}

func (c *websocketConn) WriteMessage(data []byte) error {
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "write frame")
	}
	return nil
}

func (c *websocketConn) Close() error {
	return c.conn.Close()
}
