package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// round mirrors the upstream payload, including its Vietnamese field names.
type round struct {
	Phien  int64  `json:"phien"`
	Dice1  int    `json:"xuc_xac_1"`
	Dice2  int    `json:"xuc_xac_2"`
	Dice3  int    `json:"xuc_xac_3"`
	Tong   int    `json:"tong"`
	KetQua string `json:"ket_qua"`
}

type feed struct {
	mu      sync.Mutex
	rng     *rand.Rand
	current round
}

func newFeed(seed int64, start int64) *feed {
	f := &feed{rng: rand.New(rand.NewSource(seed))}
	f.current = f.roll(start)
	return f
}

func (f *feed) roll(id int64) round {
	d1, d2, d3 := f.rng.Intn(6)+1, f.rng.Intn(6)+1, f.rng.Intn(6)+1
	total := d1 + d2 + d3
	result := "Xỉu"
	if total >= 11 {
		result = "Tài"
	}
	return round{Phien: id, Dice1: d1, Dice2: d2, Dice3: d3, Tong: total, KetQua: result}
}

func (f *feed) advance() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.roll(f.current.Phien + 1)
}

func (f *feed) latest() round {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	every := flag.Duration("every", 10*time.Second, "interval between rounds")
	seed := flag.Int64("seed", time.Now().UnixNano(), "dice seed")
	flag.Parse()

	f := newFeed(*seed, 100000)
	go func() {
		ticker := time.NewTicker(*every)
		defer ticker.Stop()
		for range ticker.C {
			f.advance()
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/taixiu/latest", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, f.latest())
	})

	logger := log.New(log.Writer(), "feed-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    *addr,
		Handler: logRequests(logger, mux),
	}

	logger.Printf("listening on %s, new round every %s", *addr, *every)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
