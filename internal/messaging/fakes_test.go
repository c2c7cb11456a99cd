package messaging

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

type fixedToken string

func (f fixedToken) Token() string { return string(f) }

type fakeSub struct {
	destination  string
	ch           chan []byte
	errCh        chan error
	once         sync.Once
	unsubscribed atomic.Bool
}

func newFakeSub(destination string) *fakeSub {
	return &fakeSub{destination: destination, ch: make(chan []byte, 16), errCh: make(chan error, 1)}
}

func (s *fakeSub) Next() ([]byte, error) {
	select {
	case b, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return b, nil
	case err := <-s.errCh:
		return nil, err
	}
}

func (s *fakeSub) Unsubscribe() error {
	s.unsubscribed.Store(true)
	s.once.Do(func() { close(s.ch) })
	return nil
}

// push delivers a message body as if it came from the broker
func (s *fakeSub) push(body string) { s.ch <- []byte(body) }

// fail ends the subscription unexpectedly
func (s *fakeSub) fail(err error) { s.errCh <- err }

type sentMessage struct {
	destination string
	body        string
	headers     map[string]string
}

type fakeConn struct {
	mu      sync.Mutex
	subs    []*fakeSub
	sent    []sentMessage
	sendErr error
	subErr  error
	closed  atomic.Bool
}

func (c *fakeConn) Subscribe(destination string) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subErr != nil {
		return nil, c.subErr
	}
	sub := newFakeSub(destination)
	c.subs = append(c.subs, sub)
	return sub, nil
}

func (c *fakeConn) Send(destination string, body []byte, headers map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, sentMessage{destination: destination, body: string(body), headers: headers})
	return nil
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *fakeConn) subscriptions() []*fakeSub {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeSub(nil), c.subs...)
}

func (c *fakeConn) sentMessages() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}

// fakeDialer hands out fakeConns. Each dial optionally waits on the next gate.
type fakeDialer struct {
	mu     sync.Mutex
	conns  []*fakeConn
	tokens []string
	gates  []chan struct{}
	err    error
	subErr error
}

var errDialRefused = errors.New("connection refused")

func (d *fakeDialer) Dial(ctx context.Context, token string) (Conn, error) {
	d.mu.Lock()
	d.tokens = append(d.tokens, token)
	var gate chan struct{}
	if len(d.gates) > 0 {
		gate, d.gates = d.gates[0], d.gates[1:]
	}
	err, subErr := d.err, d.subErr
	d.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	conn := &fakeConn{subErr: subErr}
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tokens)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

type orderLog struct {
	mu    sync.Mutex
	names []string
}

func (o *orderLog) add(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.names = append(o.names, name)
}

func (o *orderLog) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.names...)
}

// recorder is a Listener that keeps every payload it receives
type recorder struct {
	mu       sync.Mutex
	name     string
	order    *orderLog
	payloads []Payload
}

func (r *recorder) OnMessage(p Payload) {
	r.mu.Lock()
	r.payloads = append(r.payloads, p)
	r.mu.Unlock()
	if r.order != nil {
		r.order.add(r.name)
	}
}

func (r *recorder) received() []Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Payload(nil), r.payloads...)
}

// lossRecorder is a recorder that also hears about lost connections
type lossRecorder struct {
	recorder
	mu     sync.Mutex
	causes []error
	retry  []bool
}

func (r *lossRecorder) OnConnectionLost(cause error, reconnecting bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.causes = append(r.causes, cause)
	r.retry = append(r.retry, reconnecting)
}

func (r *lossRecorder) losses() ([]error, []bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.causes...), append([]bool(nil), r.retry...)
}
