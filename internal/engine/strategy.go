package engine

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/roundcast/roundcast/internal/models"
)

// Strategy names accepted by the registry.
const (
	StrategyCascade    = "cascade"
	StrategyDiceParity = "dice-parity"
)

// Strategy turns a history snapshot (oldest first) into a prediction. Implementations
// must not retain or mutate the slice.
type Strategy interface {
	Name() string
	Predict(records []models.RoundRecord) models.PredictionResult
}

// Source supplies randomness for confidence jitter. Strategies may be
// called concurrently, so implementations must be safe for that.
type Source interface {
	Float64() float64
}

// SeededSource is a mutex-guarded *rand.Rand.
type SeededSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededSource returns a Source producing a reproducible sequence.
func NewSeededSource(seed int64) *SeededSource {
	return &SeededSource{rng: rand.New(rand.NewSource(seed))}
}

// Float64 returns a value in [0, 1).
func (s *SeededSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Option customises a strategy.
type Option func(*options)

type options struct {
	source Source
}

// WithSource enables confidence jitter drawn from src. A seeded source makes
// results reproducible.
func WithSource(src Source) Option {
	return func(o *options) { o.source = src }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Registry resolves strategies by name and knows the configured default.
type Registry struct {
	strategies map[string]Strategy
	fallback   string
}

// NewRegistry registers the given strategies; defaultName must be one of them.
func NewRegistry(defaultName string, strategies ...Strategy) (*Registry, error) {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.strategies[s.Name()] = s
	}
	if _, ok := r.strategies[defaultName]; !ok {
		return nil, fmt.Errorf("unknown default strategy %q (available: %s)", defaultName, strings.Join(r.Names(), ", "))
	}
	r.fallback = defaultName
	return r, nil
}

// NewDefaultRegistry builds a registry holding both built-in strategies.
func NewDefaultRegistry(defaultName string, th Thresholds, opts ...Option) (*Registry, error) {
	return NewRegistry(defaultName, NewCascade(th, opts...), NewDiceParity(th, opts...))
}

// Resolve returns the named strategy, or the default when name is empty.
func (r *Registry) Resolve(name string) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = r.fallback
	}
	s, ok := r.strategies[key]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	return s, nil
}

// Default returns the name of the default strategy.
func (r *Registry) Default() string {
	return r.fallback
}

// Names lists registered strategy names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func insufficient(strategy, rationale string) models.PredictionResult {
	return models.PredictionResult{
		Prediction:   models.PredictionInsufficient,
		Rationale:    rationale,
		PatternLabel: models.PatternInsufficient,
		Strategy:     strategy,
	}
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// confidence applies optional jitter and clamps to the valid range.
func confidence(th Thresholds, src Source, value float64) *float64 {
	if src != nil && th.Jitter > 0 {
		value += (src.Float64()*2 - 1) * th.Jitter
	}
	c := clamp(value, th.ConfidenceMin, th.ConfidenceMax)
	return &c
}
