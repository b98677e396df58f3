package ws

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vladimirvolkov/soccer/server/internal/middleware"
)

const (
	defaultMaxActiveRooms = 100
	maxNicknameRunes      = 12
	readLimit             = 1024 // input and ping messages are well under this
)

// sanitizeNickname validates and cleans a nickname.
// Strips invalid chars, enforces 2-12 rune length, ensures valid UTF-8.
func sanitizeNickname(raw string) string {
	if !utf8.ValidString(raw) {
		return "Player"
	}
	cleaned := []rune{}
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '_' || r == '-' || r == ' ' ||
			(r >= 0x0400 && r <= 0x04FF) {
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) < 2 {
		return "Player"
	}
	if len(cleaned) > maxNicknameRunes {
		cleaned = cleaned[:maxNicknameRunes]
	}
	return string(cleaned)
}

// dedupeNickname marks the second of two identical nicknames.
func dedupeNickname(name string) string {
	const suffix = "(2)"
	runes := []rune(name)
	maxBase := maxNicknameRunes - utf8.RuneCountInString(suffix)
	if len(runes) > maxBase {
		runes = runes[:maxBase]
	}
	return string(runes) + suffix
}

type RoomCreator interface {
	CreateRoom(p1, p2 *Conn)
}

// HubStats holds live server metrics.
type HubStats struct {
	ActiveRooms      int64  `json:"activeRooms"`
	TotalConnections uint64 `json:"totalConnections"`
	WaitingPlayers   int    `json:"waitingPlayers"`
}

type HubOptions struct {
	OriginPatterns []string
	MaxActiveRooms int
	Logger         zerolog.Logger
}

type Hub struct {
	mu      sync.Mutex
	waiting *Conn
	creator RoomCreator

	activeRooms      atomic.Int64
	totalConnections atomic.Uint64

	limiter        *middleware.IPRateLimiter
	originPatterns []string
	maxActiveRooms int
	log            zerolog.Logger
}

func NewHub(creator RoomCreator, limiter *middleware.IPRateLimiter, opts HubOptions) *Hub {
	if opts.MaxActiveRooms <= 0 {
		opts.MaxActiveRooms = defaultMaxActiveRooms
	}
	return &Hub{
		creator:        creator,
		limiter:        limiter,
		originPatterns: opts.OriginPatterns,
		maxActiveRooms: opts.MaxActiveRooms,
		log:            opts.Logger.With().Str("component", "hub").Logger(),
	}
}

// Stats returns a snapshot of current server metrics.
func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	w := 0
	if h.waiting != nil {
		w = 1
	}
	h.mu.Unlock()
	return HubStats{
		ActiveRooms:      h.activeRooms.Load(),
		TotalConnections: h.totalConnections.Load(),
		WaitingPlayers:   w,
	}
}

// RoomEnded decrements the active room counter. Call when a room goroutine exits.
func (h *Hub) RoomEnded() {
	h.activeRooms.Add(-1)
}

func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ip := middleware.RealIP(r)
	if h.limiter != nil && !h.limiter.ConnectAllowed(ip) {
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}

	acceptOpts := &websocket.AcceptOptions{}
	if len(h.originPatterns) > 0 {
		acceptOpts.OriginPatterns = h.originPatterns
	}

	ws, err := websocket.Accept(w, r, acceptOpts)
	if err != nil {
		if h.limiter != nil {
			h.limiter.Disconnect(ip)
		}
		h.log.Warn().Err(err).Str("ip", ip).Msg("ws accept failed")
		return
	}
	ws.SetReadLimit(readLimit)

	h.totalConnections.Add(1)
	q := r.URL.Query()
	conn := NewConn(ws, uuid.NewString(), ip, CodecByName(q.Get("codec")), h.limiter, h.log)
	conn.Nickname = sanitizeNickname(q.Get("name"))
	h.log.Info().
		Str("conn", conn.ID).
		Str("name", conn.Nickname).
		Str("ip", ip).
		Str("codec", conn.codec.Name()).
		Uint64("total", h.totalConnections.Load()).
		Msg("new connection")

	// Background context so the connection outlives the HTTP handler
	go conn.WriteLoop(context.Background())

	go func() {
		<-conn.Done()
		if h.limiter != nil {
			h.limiter.Disconnect(ip)
		}
	}()

	h.tryMatch(conn)

	// Block until closed; returning would tear down the hijacked connection.
	<-conn.Done()
	h.log.Info().Str("conn", conn.ID).Msg("connection closed")
}

func (h *Hub) tryMatch(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.waiting == nil {
		h.waiting = conn
		h.log.Debug().Str("conn", conn.ID).Msg("waiting for opponent")

		go func() {
			<-conn.Done()
			h.mu.Lock()
			if h.waiting == conn {
				h.waiting = nil
				h.log.Debug().Str("conn", conn.ID).Msg("disconnected while waiting")
			}
			h.mu.Unlock()
		}()
		return
	}

	if h.activeRooms.Load() >= int64(h.maxActiveRooms) {
		h.log.Warn().Str("conn", conn.ID).Msg("max rooms reached, rejecting")
		go conn.closeWith(websocket.StatusTryAgainLater, "server full")
		return
	}

	if h.waiting.Nickname == conn.Nickname {
		conn.Nickname = dedupeNickname(conn.Nickname)
	}

	opponent := h.waiting
	h.waiting = nil

	h.activeRooms.Add(1)
	h.log.Info().
		Str("home", opponent.ID).
		Str("away", conn.ID).
		Int64("rooms", h.activeRooms.Load()).
		Msg("matched")
	h.creator.CreateRoom(opponent, conn)
}
