package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/devkiraa/Hang/internal/protocol"
	"github.com/devkiraa/Hang/internal/queue"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Transport carries envelopes to and from the relay. Send must not block.
// Inbound is closed and Done fires once the connection is gone.
type Transport interface {
	Send(env protocol.Envelope) error
	Inbound() <-chan protocol.Envelope
	Done() <-chan struct{}
	Close() error
}

const (
	clientPingPeriod = 12 * time.Second
	clientPongWait   = 30 * time.Second
	clientWriteWait  = 10 * time.Second
	clientReadLimit  = 1 << 16
)

// WSTransport is a Transport over a gorilla websocket.
type WSTransport struct {
	conn    *websocket.Conn
	outbox  *queue.Queue[[]byte]
	inbound chan protocol.Envelope
	done    chan struct{}

	closeOnce sync.Once
	err       error
}

// Dial connects to url and starts the read and write loops. They stop when
// ctx ends, the server goes away or Close is called.
func Dial(ctx context.Context, url string, timeout time.Duration) (*WSTransport, error) {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = timeout
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	t := &WSTransport{
		conn:    conn,
		outbox:  queue.New[[]byte](),
		inbound: make(chan protocol.Envelope, 16),
		done:    make(chan struct{}),
	}
	go t.run(ctx)
	log.Info().Str("module", "client.transport").Str("url", url).Msg("connected")
	return t, nil
}

func (t *WSTransport) run(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return t.readLoop(gctx) })
	g.Go(func() error { return t.writeLoop(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		t.outbox.Close()
		return t.conn.Close()
	})
	err := g.Wait()
	t.err = err
	close(t.inbound)
	close(t.done)
	log.Info().Str("module", "client.transport").AnErr("reason", err).Msg("transport stopped")
}

func (t *WSTransport) readLoop(ctx context.Context) error {
	t.conn.SetReadLimit(clientReadLimit)
	_ = t.conn.SetReadDeadline(time.Now().Add(clientPongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(clientPongWait))
	})
	t.conn.SetPingHandler(func(data string) error {
		_ = t.conn.SetReadDeadline(time.Now().Add(clientPongWait))
		err := t.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(clientWriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		env, err := protocol.Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "client.transport").Msg("dropping undecodable frame")
			continue
		}
		select {
		case t.inbound <- env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *WSTransport) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(clientPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.outbox.Ready():
			frames, open := t.outbox.Drain()
			for _, f := range frames {
				if err := t.write(websocket.TextMessage, f); err != nil {
					return fmt.Errorf("write: %w", err)
				}
			}
			if !open {
				_ = t.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return errClosedByClient
			}
		case <-ticker.C:
			if err := t.write(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

var errClosedByClient = errors.New("closed by client")

func (t *WSTransport) write(messageType int, data []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(clientWriteWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(messageType, data)
}

func (t *WSTransport) Send(env protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := t.outbox.Push(data); err != nil {
		return ErrDisconnected
	}
	return nil
}

func (t *WSTransport) Inbound() <-chan protocol.Envelope { return t.inbound }

func (t *WSTransport) Done() <-chan struct{} { return t.done }

// Close sends a close frame after any queued messages and waits for the
// loops to stop.
func (t *WSTransport) Close() error {
	t.closeOnce.Do(t.outbox.Close)
	select {
	case <-t.done:
	case <-time.After(clientWriteWait):
		_ = t.conn.Close()
		<-t.done
	}
	return nil
}

// Err reports why the transport stopped. It is nil until Done fires.
func (t *WSTransport) Err() error {
	select {
	case <-t.done:
	default:
		return nil
	}
	if errors.Is(t.err, errClosedByClient) {
		return nil
	}
	return t.err
}
