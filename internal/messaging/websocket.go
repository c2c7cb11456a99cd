package messaging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
)

// StompDialer connects to a STOMP broker over a WebSocket endpoint
type StompDialer struct {
	url    string
	host   string
	dialer *websocket.Dialer
	logger *slog.Logger
}

// NewStompDialer creates a dialer for a ws:// or wss:// broker endpoint
func NewStompDialer(endpoint string, logger *slog.Logger) (*StompDialer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse broker url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("broker url must use ws or wss, got %q", u.Scheme)
	}

	return &StompDialer{
		url:  endpoint,
		host: u.Hostname(),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 45 * time.Second,
			Subprotocols:     []string{"v12.stomp"},
		},
		logger: logger,
	}, nil
}

// Dial opens the WebSocket, performs the STOMP CONNECT handshake and returns the connection.
// The bearer token goes on both the upgrade request and the CONNECT frame.
func (d *StompDialer) Dial(ctx context.Context, token string) (Conn, error) {
	bearer := "Bearer " + token

	header := http.Header{}
	header.Set("Authorization", bearer)

	ws, _, err := d.dialer.DialContext(ctx, d.url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	stream := newWSStream(ws)
	sc, err := stomp.Connect(stream,
		stomp.ConnOpt.Host(d.host),
		stomp.ConnOpt.Header("Authorization", bearer),
	)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to complete STOMP handshake: %w", err)
	}

	d.logger.Info("connected to STOMP broker", "url", d.url, "server", sc.Server(), "session", sc.Session())
	return &stompConn{conn: sc, stream: stream}, nil
}

// stompConn adapts a go-stomp connection to Conn
type stompConn struct {
	conn   *stomp.Conn
	stream *wsStream
}

func (c *stompConn) Subscribe(destination string) (Subscription, error) {
	sub, err := c.conn.Subscribe(destination, stomp.AckAuto)
	if err != nil {
		return nil, err
	}
	return &stompSubscription{sub: sub}, nil
}

func (c *stompConn) Send(destination string, body []byte, headers map[string]string) error {
	contentType := "text/plain"
	var opts []func(*frame.Frame) error
	for k, v := range headers {
		if strings.EqualFold(k, "content-type") {
			contentType = v
			continue
		}
		opts = append(opts, stomp.SendOpt.Header(k, v))
	}
	return c.conn.Send(destination, contentType, body, opts...)
}

// Close ends the STOMP session without waiting for a receipt and closes the socket
func (c *stompConn) Close() error {
	err := c.conn.MustDisconnect()
	if cerr := c.stream.Close(); err == nil {
		err = cerr
	}
	return err
}

type stompSubscription struct {
	sub *stomp.Subscription
}

func (s *stompSubscription) Next() ([]byte, error) {
	msg, ok := <-s.sub.C
	if !ok {
		return nil, io.EOF
	}
	if msg.Err != nil {
		return nil, msg.Err
	}
	return msg.Body, nil
}

func (s *stompSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

// wsStream presents a WebSocket as the byte stream STOMP framing expects.
// Each write becomes one text message; reads span message boundaries.
type wsStream struct {
	ws     *websocket.Conn
	reader io.Reader
	wmu    sync.Mutex
	once   sync.Once
}

func newWSStream(ws *websocket.Conn) *wsStream {
	return &wsStream{ws: ws}
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.reader == nil {
			_, r, err := s.ws.NextReader()
			if err != nil {
				return 0, err
			}
			s.reader = r
		}

		n, err := s.reader.Read(p)
		if err == io.EOF {
			s.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if err := s.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsStream) Close() error {
	var err error
	s.once.Do(func() {
		s.wmu.Lock()
		_ = s.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.wmu.Unlock()
		err = s.ws.Close()
	})
	return err
}
