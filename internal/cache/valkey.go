package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// ValkeyProvider implements Provider against a Valkey/Redis-compatible
// server using one short-lived RESP connection per command.
type ValkeyProvider struct {
	cfg ValkeyConfig
}

// ValkeyConfig holds connection parameters for the Valkey server.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	TLS          bool
}

// NewValkeyProvider creates a Provider and pings the server so that bad
// addresses or credentials fail at startup.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	cfg.withDefaults()
	p := &ValkeyProvider{cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	reply, err := p.do(ctx, "PING")
	if err != nil {
		return nil, fmt.Errorf("valkey ping: %w", err)
	}
	if reply.kind != kindSimple || string(reply.data) != "PONG" {
		return nil, fmt.Errorf("valkey ping: unexpected reply %q", reply.data)
	}
	return p, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	reply, err := p.do(ctx, "GET", key)
	if err != nil {
		return nil, err
	}
	switch reply.kind {
	case kindNil:
		return nil, ErrCacheMiss
	case kindBulk:
		return reply.data, nil
	default:
		return nil, fmt.Errorf("valkey GET: unexpected reply kind %q", reply.kind)
	}
}

// Set stores bytes with the provided TTL.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	reply, err := p.do(ctx, setArgs(key, value, ttl)...)
	if err != nil {
		return err
	}
	if reply.kind != kindSimple || string(reply.data) != "OK" {
		return fmt.Errorf("valkey SET: unexpected reply %q", reply.data)
	}
	return nil
}

// SetNX stores the value only if the key does not exist.
func (p *ValkeyProvider) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	reply, err := p.do(ctx, append(setArgs(key, value, ttl), "NX")...)
	if err != nil {
		return false, err
	}
	switch reply.kind {
	case kindSimple:
		return true, nil
	case kindNil:
		return false, nil
	default:
		return false, fmt.Errorf("valkey SET NX: unexpected reply kind %q", reply.kind)
	}
}

// Del removes a key.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	_, err := p.do(ctx, "DEL", key)
	return err
}

// Close is a no-op; connections are not pooled.
func (p *ValkeyProvider) Close() error { return nil }

func setArgs(key string, value []byte, ttl time.Duration) []string {
	args := []string{"SET", key, string(value)}
	if ttl > 0 {
		args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
	}
	return args
}

// do runs one command, retrying network timeouts with exponential backoff.
func (p *ValkeyProvider) do(ctx context.Context, args ...string) (respReply, error) {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return respReply{}, err
		}
		reply, err := p.attempt(ctx, args)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		select {
		case <-ctx.Done():
			return respReply{}, ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
	return respReply{}, lastErr
}

func (p *ValkeyProvider) attempt(ctx context.Context, args []string) (respReply, error) {
	conn, err := p.dial(ctx)
	if err != nil {
		return respReply{}, err
	}
	defer conn.close()

	if err := conn.handshake(p.cfg); err != nil {
		return respReply{}, err
	}
	return conn.roundTrip(args...)
}

func (p *ValkeyProvider) dial(ctx context.Context) (*respConn, error) {
	dialer := &net.Dialer{Timeout: dialTimeout(ctx, p.cfg.DialTimeout)}
	var (
		conn net.Conn
		err  error
	)
	if p.cfg.TLS {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{MinVersion: tls.VersionTLS12, ServerName: tlsHost(p.cfg.Addr)},
		}
		conn, err = tlsDialer.DialContext(ctx, "tcp", p.cfg.Addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", p.cfg.Addr)
	}
	if err != nil {
		return nil, err
	}
	return &respConn{conn: conn, rd: bufio.NewReader(conn), wr: bufio.NewWriter(conn), cfg: p.cfg}, nil
}

type replyKind string

const (
	kindSimple  replyKind = "+"
	kindBulk    replyKind = "$"
	kindInteger replyKind = ":"
	kindNil     replyKind = "_"
)

type respReply struct {
	kind replyKind
	data []byte
}

// serverError is an error reply from Valkey; it is never retried.
type serverError string

func (e serverError) Error() string { return "valkey: " + string(e) }

type respConn struct {
	conn net.Conn
	rd   *bufio.Reader
	wr   *bufio.Writer
	cfg  ValkeyConfig
}

func (c *respConn) close() { _ = c.conn.Close() }

func (c *respConn) handshake(cfg ValkeyConfig) error {
	if cfg.Password != "" {
		args := []string{"AUTH", cfg.Password}
		if cfg.Username != "" {
			args = []string{"AUTH", cfg.Username, cfg.Password}
		}
		if err := c.expectOK(args...); err != nil {
			return fmt.Errorf("valkey auth: %w", err)
		}
	}
	if cfg.DB > 0 {
		if err := c.expectOK("SELECT", strconv.Itoa(cfg.DB)); err != nil {
			return fmt.Errorf("valkey select: %w", err)
		}
	}
	return nil
}

func (c *respConn) expectOK(args ...string) error {
	reply, err := c.roundTrip(args...)
	if err != nil {
		return err
	}
	if reply.kind != kindSimple || !strings.EqualFold(string(reply.data), "OK") {
		return fmt.Errorf("unexpected reply %q", reply.data)
	}
	return nil
}

func (c *respConn) roundTrip(args ...string) (respReply, error) {
	if err := c.send(args); err != nil {
		return respReply{}, err
	}
	return c.read()
}

func (c *respConn) send(args []string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	fmt.Fprintf(c.wr, "*%d\r\n", len(args))
	for _, arg := range args {
		fmt.Fprintf(c.wr, "$%d\r\n%s\r\n", len(arg), arg)
	}
	return c.wr.Flush()
}

func (c *respConn) read() (respReply, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
		return respReply{}, err
	}
	line, err := c.rd.ReadString('\n')
	if err != nil {
		return respReply{}, err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return respReply{}, errors.New("valkey: empty reply")
	}

	prefix, body := line[0], line[1:]
	switch prefix {
	case '+':
		return respReply{kind: kindSimple, data: []byte(body)}, nil
	case '-':
		return respReply{}, serverError(body)
	case ':':
		return respReply{kind: kindInteger, data: []byte(body)}, nil
	case '_':
		return respReply{kind: kindNil}, nil
	case '$':
		size, err := strconv.Atoi(body)
		if err != nil {
			return respReply{}, fmt.Errorf("valkey: bad bulk length %q", body)
		}
		if size < 0 {
			return respReply{kind: kindNil}, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(c.rd, buf); err != nil {
			return respReply{}, err
		}
		if buf[size] != '\r' || buf[size+1] != '\n' {
			return respReply{}, errors.New("valkey: invalid bulk termination")
		}
		return respReply{kind: kindBulk, data: buf[:size]}, nil
	default:
		return respReply{}, fmt.Errorf("valkey: unexpected RESP prefix %q", prefix)
	}
}

func (cfg *ValkeyConfig) withDefaults() {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
}

func dialTimeout(ctx context.Context, d time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < d {
			if remaining <= 0 {
				return time.Millisecond
			}
			return remaining
		}
	}
	return d
}

func backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * 25 * time.Millisecond
}

func retryable(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func tlsHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
