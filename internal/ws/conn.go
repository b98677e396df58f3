package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vladimirvolkov/soccer/server/internal/middleware"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

type frame struct {
	typ  websocket.MessageType
	data []byte
}

type Conn struct {
	ws       *websocket.Conn
	codec    Codec
	sendCh   chan frame
	done     chan struct{}
	once     sync.Once
	finish   chan struct{}
	finished sync.Once
	ID       string
	Nickname string
	IP       string
	limiter  *middleware.IPRateLimiter
	log      zerolog.Logger
}

func NewConn(ws *websocket.Conn, id, ip string, codec Codec, limiter *middleware.IPRateLimiter, log zerolog.Logger) *Conn {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Conn{
		ws:      ws,
		codec:   codec,
		sendCh:  make(chan frame, sendBuffer),
		done:    make(chan struct{}),
		finish:  make(chan struct{}),
		ID:      id,
		IP:      ip,
		limiter: limiter,
		log:     log.With().Str("conn", id).Logger(),
	}
}

func (c *Conn) Codec() Codec { return c.codec }

// Send encodes and queues a message. A full buffer drops the message.
func (c *Conn) Send(typ uint8, tick uint32, payload any) {
	data, err := c.codec.Encode(typ, tick, payload)
	if err != nil {
		c.log.Error().Err(err).Uint8("type", typ).Msg("encode failed")
		return
	}
	select {
	case c.sendCh <- frame{typ: c.codec.FrameType(), data: data}:
	default:
		c.log.Warn().Uint8("type", typ).Msg("send buffer full, dropping message")
	}
}

// Unmarshal decodes a received payload with the connection's codec.
func (c *Conn) Unmarshal(msg Message, v any) error {
	return c.codec.Unmarshal(msg.Payload, v)
}

func (c *Conn) ReadLoop(ctx context.Context) <-chan Message {
	ch := make(chan Message, sendBuffer)
	go func() {
		defer close(ch)
		for {
			_, data, err := c.ws.Read(ctx)
			if err != nil {
				c.log.Debug().Err(err).Msg("read ended")
				c.Close()
				return
			}
			// Per-IP message rate limiting
			if c.limiter != nil && !c.limiter.MessageAllowed(c.IP) {
				continue // drop message silently, don't disconnect
			}
			msg, err := c.codec.Decode(data)
			if err != nil {
				c.log.Warn().Err(err).Msg("decode failed")
				continue
			}
			select {
			case ch <- msg:
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (c *Conn) WriteLoop(ctx context.Context) {
	for {
		select {
		case f := <-c.sendCh:
			if !c.write(ctx, f) {
				return
			}
		case <-c.finish:
			c.flush(ctx)
			c.Close()
			return
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Conn) write(ctx context.Context, f frame) bool {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := c.ws.Write(wctx, f.typ, f.data); err != nil {
		c.log.Warn().Err(err).Msg("write failed")
		c.Close()
		return false
	}
	return true
}

// flush writes whatever is already queued.
func (c *Conn) flush(ctx context.Context) {
	for {
		select {
		case f := <-c.sendCh:
			if !c.write(ctx, f) {
				return
			}
		default:
			return
		}
	}
}

// Finish closes the connection normally once queued messages are written.
// Messages sent after Finish may be dropped.
func (c *Conn) Finish() {
	c.finished.Do(func() { close(c.finish) })
}

func (c *Conn) Close() {
	c.closeWith(websocket.StatusNormalClosure, "")
}

func (c *Conn) closeWith(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close(code, reason)
	})
}

func (c *Conn) Done() <-chan struct{} {
	return c.done
}
