package ws

// Client -> Server message types
const (
	MsgPlayerInput uint8 = 0x01
	MsgPing        uint8 = 0x04
)

// Server -> Client message types
const (
	MsgGameState          uint8 = 0x81
	MsgGameStart          uint8 = 0x82
	MsgPong               uint8 = 0x86
	MsgPlayerDisconnected uint8 = 0x87
)

type PingPayload struct {
	ClientTime uint64 `json:"clientTime"`
}

type PongPayload struct {
	ClientTime uint64 `json:"clientTime"`
	ServerTime uint64 `json:"serverTime"`
}

type GameStartPayload struct {
	MatchID     string    `json:"matchId"`
	PlayerIndex uint8     `json:"playerIndex"`
	PlayerID    string    `json:"playerId"`
	Names       [2]string `json:"names"`
	Countdown   float32   `json:"countdown"`
}

type PlayerDisconnectedPayload struct {
	PlayerIndex uint8 `json:"playerIndex"`
}
