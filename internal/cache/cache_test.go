package cache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMemoryProviderExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := NewMemoryProvider()
	p.now = func() time.Time { return now }
	ctx := context.Background()

	if err := p.Set(ctx, "k", []byte("v"), time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := p.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("expected hit, got %q %v", got, err)
	}

	now = now.Add(2 * time.Second)
	if _, err := p.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestMemoryProviderSetNX(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	ok, _ := p.SetNX(ctx, "lock", []byte("a"), time.Minute)
	if !ok {
		t.Fatalf("expected first SetNX to win")
	}
	ok, _ = p.SetNX(ctx, "lock", []byte("b"), time.Minute)
	if ok {
		t.Fatalf("expected second SetNX to lose")
	}
	_ = p.Del(ctx, "lock")
	ok, _ = p.SetNX(ctx, "lock", []byte("c"), time.Minute)
	if !ok {
		t.Fatalf("expected SetNX after Del to win")
	}
}

func TestNoopProvider(t *testing.T) {
	var p Provider = NoopProvider{}
	if _, err := p.Get(context.Background(), "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	if ok, _ := p.SetNX(context.Background(), "k", nil, 0); !ok {
		t.Fatalf("noop SetNX should report success")
	}
}

// fakeValkey speaks just enough RESP for the provider.
type fakeValkey struct {
	mu    sync.Mutex
	store map[string]string
	ln    net.Listener
}

func startFakeValkey(t *testing.T) *fakeValkey {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeValkey{store: make(map[string]string), ln: ln}
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeValkey) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeValkey) handle(conn net.Conn) {
	defer conn.Close()
	rd := bufio.NewReader(conn)
	for {
		args, err := readCommand(rd)
		if err != nil {
			return
		}
		if _, err := io.WriteString(conn, f.exec(args)); err != nil {
			return
		}
	}
}

func (f *fakeValkey) exec(args []string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch strings.ToUpper(args[0]) {
	case "PING":
		return "+PONG\r\n"
	case "GET":
		v, ok := f.store[args[1]]
		if !ok {
			return "$-1\r\n"
		}
		return fmt.Sprintf("$%d\r\n%s\r\n", len(v), v)
	case "SET":
		nx := strings.EqualFold(args[len(args)-1], "NX")
		if _, exists := f.store[args[1]]; nx && exists {
			return "$-1\r\n"
		}
		f.store[args[1]] = args[2]
		return "+OK\r\n"
	case "DEL":
		delete(f.store, args[1])
		return ":1\r\n"
	default:
		return "-ERR unknown command\r\n"
	}
}

func readCommand(rd *bufio.Reader) ([]string, error) {
	line, err := rd.ReadString('\n')
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		header, err := rd.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimSpace(header[1:]))
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(rd, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func TestValkeyProviderRoundTrip(t *testing.T) {
	server := startFakeValkey(t)
	p, err := NewValkeyProvider(ValkeyConfig{Addr: server.ln.Addr().String()})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	ctx := context.Background()

	if _, err := p.Get(ctx, "roundcast:latest"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	if err := p.Set(ctx, "roundcast:latest", []byte(`{"phien":1}`), time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := p.Get(ctx, "roundcast:latest")
	if err != nil || string(got) != `{"phien":1}` {
		t.Fatalf("unexpected get: %q %v", got, err)
	}

	ok, err := p.SetNX(ctx, "roundcast:latest", []byte("x"), 0)
	if err != nil || ok {
		t.Fatalf("expected SetNX to lose on existing key, got %v %v", ok, err)
	}
	if err := p.Del(ctx, "roundcast:latest"); err != nil {
		t.Fatalf("del: %v", err)
	}
	ok, err = p.SetNX(ctx, "roundcast:latest", []byte("x"), 0)
	if err != nil || !ok {
		t.Fatalf("expected SetNX to win after delete, got %v %v", ok, err)
	}
}

func TestValkeyProviderRequiresAddr(t *testing.T) {
	if _, err := NewValkeyProvider(ValkeyConfig{}); err == nil {
		t.Fatalf("expected error without addr")
	}
}
