package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/vladimirvolkov/soccer/server/internal/game"
	"github.com/vladimirvolkov/soccer/server/internal/physics"
)

// FileName is the optional config file looked up in the config directory.
const FileName = "soccer.cfg.json"

// EnvPrefix prefixes every environment override, e.g. SOCCER_BALL_MAXSPEED.
const EnvPrefix = "SOCCER"

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	StaticDir      string   `mapstructure:"staticDir"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
	MaxConnsPerIP  int      `mapstructure:"maxConnsPerIP"`
	MsgRate        float64  `mapstructure:"msgRate"` // messages per second per IP
	MsgBurst       int      `mapstructure:"msgBurst"`
	MaxActiveRooms int      `mapstructure:"maxActiveRooms"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type MatchConfig struct {
	Countdown time.Duration `mapstructure:"countdown"`
	FixedRate int           `mapstructure:"fixedRate"`
	FrameRate int           `mapstructure:"frameRate"`
}

// FixedDT is the physics step derived from FixedRate.
func (m MatchConfig) FixedDT() time.Duration {
	if m.FixedRate <= 0 {
		return game.FixedDT
	}
	return time.Second / time.Duration(m.FixedRate)
}

// FrameDT is the presentation frame derived from FrameRate.
func (m MatchConfig) FrameDT() time.Duration {
	if m.FrameRate <= 0 {
		return game.FrameDT
	}
	return time.Second / time.Duration(m.FrameRate)
}

type Config struct {
	Server   ServerConfig       `mapstructure:"server"`
	Log      LogConfig          `mapstructure:"log"`
	Match    MatchConfig        `mapstructure:"match"`
	Ball     game.BallTuning    `mapstructure:"ball"`
	Player   game.PlayerTuning  `mapstructure:"player"`
	Pitch    physics.Pitch      `mapstructure:"pitch"`
	BallBody physics.BodyConfig `mapstructure:"ballBody"`
}

// Game returns the match construction settings.
func (c *Config) Game() game.MatchConfig {
	return game.MatchConfig{
		Ball:     c.Ball,
		Player:   c.Player,
		Pitch:    c.Pitch,
		BallBody: c.BallBody,
		FixedDT:  c.Match.FixedDT(),
	}
}

func defaultServer() ServerConfig {
	return ServerConfig{
		Port:           "8080",
		StaticDir:      "../client/dist",
		MaxConnsPerIP:  4,
		MsgRate:        120,
		MsgBurst:       120,
		MaxActiveRooms: 100,
	}
}

func defaultMatch() MatchConfig {
	return MatchConfig{
		Countdown: 3 * time.Second,
		FixedRate: game.FixedRate,
		FrameRate: game.FrameRate,
	}
}

// Load reads defaults, the optional config file in configDir and
// environment overrides, in increasing precedence.
func Load(configDir string) (*Config, error) {
	v := viper.New()

	sections := map[string]any{
		"server":   defaultServer(),
		"log":      LogConfig{Level: "info"},
		"match":    defaultMatch(),
		"ball":     game.DefaultBallTuning(),
		"player":   game.DefaultPlayerTuning(),
		"pitch":    physics.DefaultPitch(),
		"ballBody": physics.DefaultBallBody(),
	}
	for name, def := range sections {
		if err := setDefaults(v, name, def); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if configDir != "" {
		path := filepath.Join(configDir, FileName)
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Unprefixed names kept for existing deployments, after the prefixed one.
var legacyEnv = [][]string{
	{"server.port", "SOCCER_SERVER_PORT", "PORT"},
	{"server.staticDir", "SOCCER_SERVER_STATICDIR", "STATIC_DIR"},
	{"server.allowedOrigins", "SOCCER_SERVER_ALLOWEDORIGINS", "ALLOWED_ORIGINS"},
}

func bindLegacyEnv(v *viper.Viper) error {
	for _, names := range legacyEnv {
		if err := v.BindEnv(names...); err != nil {
			return fmt.Errorf("config env binding %v: %w", names, err)
		}
	}
	return nil
}

// setDefaults registers every field of a flat settings struct under
// section so env overrides can reach it.
func setDefaults(v *viper.Viper, section string, def any) error {
	fields := map[string]any{}
	if err := mapstructure.Decode(def, &fields); err != nil {
		return fmt.Errorf("config defaults for %s: %w", section, err)
	}
	for k, val := range fields {
		if val == nil {
			continue
		}
		v.SetDefault(section+"."+k, val)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Match.FixedRate <= 0 || c.Match.FrameRate <= 0 {
		return fmt.Errorf("invalid match rates: fixed %d, frame %d", c.Match.FixedRate, c.Match.FrameRate)
	}
	if c.BallBody.Mass <= 0 || c.BallBody.Radius <= 0 {
		return fmt.Errorf("invalid ball body: mass %v, radius %v", c.BallBody.Mass, c.BallBody.Radius)
	}
	if c.Server.Port == "" {
		return errors.New("server port is empty")
	}
	return nil
}
