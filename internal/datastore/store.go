package datastore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Errors returned by backends and the typed client.
var (
	ErrNotFound  = errors.New("datastore: path not found")
	ErrOffline   = errors.New("datastore: offline")
	ErrMalformed = errors.New("datastore: malformed value")

	// ErrBuffered reports a write held for replay on reconnect. It matches
	// ErrOffline.
	ErrBuffered = fmt.Errorf("%w: write buffered for replay", ErrOffline)
)

// Store is the typed boundary used by the sync gateway. Every write is
// best-effort; every read failure means "no change".
type Store interface {
	ReadBool(ctx context.Context, p Path) (bool, error)
	ReadInt(ctx context.Context, p Path) (int, error)
	ReadFloat(ctx context.Context, p Path) (float64, error)
	ReadString(ctx context.Context, p Path) (string, error)

	WriteBool(ctx context.Context, p Path, v bool) error
	WriteInt(ctx context.Context, p Path, v int) error
	WriteFloat(ctx context.Context, p Path, v float64) error
	WriteString(ctx context.Context, p Path, v string) error
	WriteTimestamp(ctx context.Context, p Path) error
}

// Backend stores raw string leaves.
type Backend interface {
	// Get returns the raw value at p or ErrNotFound.
	Get(ctx context.Context, p Path) (string, error)

	// Put stores the raw value at p.
	Put(ctx context.Context, p Path, v string) error

	// Close releases backend resources.
	Close() error
}

// ConnectionStatus reports whether a backend currently reaches its server.
type ConnectionStatus interface {
	IsConnected() bool
}

// Client implements Store over a raw Backend.
type Client struct {
	backend Backend
	now     func() time.Time
}

// NewClient wraps b. now stamps WriteTimestamp values.
func NewClient(b Backend, now func() time.Time) *Client {
	if now == nil {
		now = time.Now
	}
	return &Client{backend: b, now: now}
}

func (c *Client) read(ctx context.Context, p Path) (string, error) {
	v, err := c.backend.Get(ctx, p)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	return v, nil
}

func (c *Client) write(ctx context.Context, p Path, v string) error {
	if err := c.backend.Put(ctx, p, v); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

// ReadBool reads a boolean leaf.
func (c *Client) ReadBool(ctx context.Context, p Path) (bool, error) {
	s, err := c.read(ctx, p)
	if err != nil {
		return false, err
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("read %s: %w: %q", p, ErrMalformed, s)
	}
	return v, nil
}

// ReadInt reads an integer leaf. Integral floats ("42.0") are accepted.
func (c *Client) ReadInt(ctx context.Context, p Path) (int, error) {
	s, err := c.read(ctx, p)
	if err != nil {
		return 0, err
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("read %s: %w: %q", p, ErrMalformed, s)
	}
	return int(f), nil
}

// ReadFloat reads a float leaf.
func (c *Client) ReadFloat(ctx context.Context, p Path) (float64, error) {
	s, err := c.read(ctx, p)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w: %q", p, ErrMalformed, s)
	}
	return v, nil
}

// ReadString reads a string leaf.
func (c *Client) ReadString(ctx context.Context, p Path) (string, error) {
	return c.read(ctx, p)
}

// WriteBool writes a boolean leaf.
func (c *Client) WriteBool(ctx context.Context, p Path, v bool) error {
	return c.write(ctx, p, strconv.FormatBool(v))
}

// WriteInt writes an integer leaf.
func (c *Client) WriteInt(ctx context.Context, p Path, v int) error {
	return c.write(ctx, p, strconv.Itoa(v))
}

// WriteFloat writes a float leaf.
func (c *Client) WriteFloat(ctx context.Context, p Path, v float64) error {
	return c.write(ctx, p, strconv.FormatFloat(v, 'f', -1, 64))
}

// WriteString writes a string leaf.
func (c *Client) WriteString(ctx context.Context, p Path, v string) error {
	return c.write(ctx, p, v)
}

// WriteTimestamp writes the current time as unix milliseconds.
func (c *Client) WriteTimestamp(ctx context.Context, p Path) error {
	return c.write(ctx, p, strconv.FormatInt(c.now().UnixMilli(), 10))
}

// IsConnected reports the backend connection state. Backends without a
// connection notion are always connected.
func (c *Client) IsConnected() bool {
	if cs, ok := c.backend.(ConnectionStatus); ok {
		return cs.IsConnected()
	}
	return true
}

// Close closes the backend.
func (c *Client) Close() error {
	return c.backend.Close()
}
