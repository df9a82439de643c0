package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DoyleJ11/rally-backend/internal/engine"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Addr           string
	TickPeriod     time.Duration
	MaxPlayers     int
	FlightDuration time.Duration
	ArcAmplitude   float64
	HitRadius      float64
	BallStart      engine.Vec3
	TableWidth     float64
	TableLength    float64
	TableHeight    float64
	OutboxSize     int
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	DefaultTable   string
	OriginPatterns []string
	LogLevel       string
	Development    bool
}

func Default() Config {
	r := engine.DefaultRules()
	return Config{
		Addr:           ":8080",
		TickPeriod:     33 * time.Millisecond,
		MaxPlayers:     r.MaxPlayers,
		FlightDuration: r.FlightDuration,
		ArcAmplitude:   r.ArcAmplitude,
		HitRadius:      r.HitRadius,
		BallStart:      r.BallStart,
		TableWidth:     r.Table.Width,
		TableLength:    r.Table.Length,
		TableHeight:    r.Table.Height,
		OutboxSize:     16,
		WriteTimeout:   3 * time.Second,
		IdleTimeout:    0, // no idle cutoff; a still paddle keeps its seat
		DefaultTable:   "main",
		LogLevel:       "info",
	}
}

// Load reads an optional .env file and then the RALLY_* environment.
// Every bad value is reported, not just the first one.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from any key lookup, os.LookupEnv in
// production and a map in tests.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	p := parser{lookup: lookup}

	p.str("RALLY_ADDR", &c.Addr)
	p.duration("RALLY_TICK", &c.TickPeriod)
	p.integer("RALLY_MAX_PLAYERS", &c.MaxPlayers)
	p.duration("RALLY_FLIGHT_DURATION", &c.FlightDuration)
	p.float("RALLY_ARC_AMPLITUDE", &c.ArcAmplitude)
	p.float("RALLY_HIT_RADIUS", &c.HitRadius)
	p.vec("RALLY_BALL_START", &c.BallStart)
	p.float("RALLY_TABLE_WIDTH", &c.TableWidth)
	p.float("RALLY_TABLE_LENGTH", &c.TableLength)
	p.float("RALLY_TABLE_HEIGHT", &c.TableHeight)
	p.integer("RALLY_OUTBOX", &c.OutboxSize)
	p.duration("RALLY_WRITE_TIMEOUT", &c.WriteTimeout)
	p.duration("RALLY_IDLE_TIMEOUT", &c.IdleTimeout)
	p.str("RALLY_DEFAULT_TABLE", &c.DefaultTable)
	p.list("RALLY_ORIGINS", &c.OriginPatterns)
	p.str("RALLY_LOG_LEVEL", &c.LogLevel)
	p.boolean("RALLY_DEV", &c.Development)

	err := multierr.Append(p.err, c.Validate())
	if err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var err error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
		}
	}

	check(c.Addr != "", "addr is empty")
	check(c.TickPeriod > 0, "tick period must be positive, got %s", c.TickPeriod)
	check(c.MaxPlayers > 0, "max players must be positive, got %d", c.MaxPlayers)
	check(c.FlightDuration > 0, "flight duration must be positive, got %s", c.FlightDuration)
	check(c.HitRadius > 0, "hit radius must be positive, got %g", c.HitRadius)
	check(c.TableWidth > 0 && c.TableLength > 0, "table must have a positive width and length")
	check(c.OutboxSize > 0, "outbox size must be positive, got %d", c.OutboxSize)
	check(c.WriteTimeout > 0, "write timeout must be positive, got %s", c.WriteTimeout)
	check(c.IdleTimeout >= 0, "idle timeout cannot be negative, got %s", c.IdleTimeout)
	check(c.DefaultTable != "", "default table code is empty")

	var lvl zapcore.Level
	check(lvl.UnmarshalText([]byte(c.LogLevel)) == nil, "unknown log level %q", c.LogLevel)
	return err
}

func (c Config) Rules() engine.Rules {
	return engine.Rules{
		MaxPlayers:     c.MaxPlayers,
		FlightDuration: c.FlightDuration,
		ArcAmplitude:   c.ArcAmplitude,
		HitRadius:      c.HitRadius,
		BallStart:      c.BallStart,
		Table: engine.Geometry{
			Width:  c.TableWidth,
			Length: c.TableLength,
			Height: c.TableHeight,
		},
	}
}

type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) get(key string) (string, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (p *parser) fail(key, raw string, err error) {
	p.err = multierr.Append(p.err, fmt.Errorf("%w: %s=%q: %v", ErrInvalid, key, raw, err))
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p *parser) list(key string, dst *[]string) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (p *parser) duration(key string, dst *time.Duration) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = d
}

func (p *parser) integer(key string, dst *int) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = n
}

func (p *parser) float(key string, dst *float64) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = f
}

func (p *parser) boolean(key string, dst *bool) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = b
}

// vec parses "x,y,z".
func (p *parser) vec(key string, dst *engine.Vec3) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	parts := strings.Split(v, ",")
	if len(parts) != 3 {
		p.fail(key, v, errors.New("want x,y,z"))
		return
	}
	var xyz [3]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		xyz[i] = f
	}
	*dst = engine.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}
}
