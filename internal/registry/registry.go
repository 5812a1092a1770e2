// Package registry fetches carbon-offset projects from upstream registries
// and normalizes their records into models.OffsetProject.
package registry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"carbon_dashboard/internal/models"
)

const (
	NamePrimary   = "primary"
	NameSecondary = "secondary"
)

// PrimaryPageSize is the fixed size of the catalog page.
const PrimaryPageSize = 9

// ErrNoProjects is returned when a registry answered but listed nothing usable.
var ErrNoProjects = errors.New("registry returned no projects")

// Registry lists one bounded page of projects.
type Registry interface {
	Name() string
	Projects(ctx context.Context) ([]models.OffsetProject, error)
}

// Pricer produces a price per credit for projects whose upstream record has none.
type Pricer interface {
	Price() float64
}

// RandomPricer draws prices uniformly from [Min, Max], rounded to cents.
// Prices are simulated; upstream registries do not publish market data.
type RandomPricer struct {
	Min, Max float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPricer creates a pricer over [min, max] seeded with seed.
func NewRandomPricer(min, max float64, seed int64) *RandomPricer {
	return &RandomPricer{Min: min, Max: max, rng: rand.New(rand.NewSource(seed))}
}

func (p *RandomPricer) Price() float64 {
	p.mu.Lock()
	f := p.rng.Float64()
	p.mu.Unlock()
	return roundCents(p.Min + f*(p.Max-p.Min))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// records finds the record list in a payload that is either a bare array
// or an object wrapping it under one of keys.
func records(root gjson.Result, keys ...string) []gjson.Result {
	if root.IsArray() {
		return root.Array()
	}
	for _, k := range keys {
		if r := root.Get(k); r.IsArray() {
			return r.Array()
		}
	}
	return nil
}

// firstString returns the first non-blank string among paths, or def.
func firstString(rec gjson.Result, def string, paths ...string) string {
	for _, p := range paths {
		if s := strings.TrimSpace(rec.Get(p).String()); s != "" {
			return s
		}
	}
	return def
}

// firstInt returns the first numeric value among paths, or 0.
func firstInt(rec gjson.Result, paths ...string) int64 {
	for _, p := range paths {
		if r := rec.Get(p); r.Exists() && r.Type != gjson.Null {
			return r.Int()
		}
	}
	return 0
}

// price returns the upstream price at path, or a simulated one.
func price(rec gjson.Result, pricer Pricer, paths ...string) (float64, bool) {
	for _, p := range paths {
		if r := rec.Get(p); r.Exists() && r.Float() > 0 {
			return roundCents(r.Float()), false
		}
	}
	return pricer.Price(), true
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
