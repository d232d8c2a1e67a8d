package policy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/MrEthical07/goGuard/internal/ratelimit"
	"github.com/MrEthical07/goGuard/internal/resilience"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is the only document version understood by this package.
const CurrentVersion = 1

// ErrInvalidPolicy wraps every validation failure.
var ErrInvalidPolicy = errors.New("invalid policy")

// Document is one policy file.
type Document struct {
	Version    int                 `yaml:"version" json:"version"`
	Operations []Operation         `yaml:"operations" json:"operations"`
	Members    map[string][]string `yaml:"members,omitempty" json:"members,omitempty"`
	Whitelist  []string            `yaml:"whitelist,omitempty" json:"whitelist,omitempty"`
}

// Operation configures one gated action. Exactly one of Name or ID
// identifies it; Name is hashed with SHA-256.
type Operation struct {
	Name             string     `yaml:"name,omitempty" json:"name,omitempty"`
	ID               string     `yaml:"id,omitempty" json:"id,omitempty"`
	Scope            string     `yaml:"scope,omitempty" json:"scope,omitempty"`
	RequiresApproval bool       `yaml:"requires_approval" json:"requires_approval"`
	RateLimit        *RateLimit `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	Breaker          *Breaker   `yaml:"breaker,omitempty" json:"breaker,omitempty"`
}

type RateLimit struct {
	Algorithm       string        `yaml:"algorithm" json:"algorithm"`
	MaxRequests     uint64        `yaml:"max_requests" json:"max_requests"`
	Window          time.Duration `yaml:"window,omitempty" json:"window,omitempty"`
	RefillPerSecond float64       `yaml:"refill_per_second,omitempty" json:"refill_per_second,omitempty"`
	Global          bool          `yaml:"global,omitempty" json:"global,omitempty"`
	// Active defaults to true.
	Active *bool `yaml:"active,omitempty" json:"active,omitempty"`
}

type Breaker struct {
	Threshold       uint64        `yaml:"threshold" json:"threshold"`
	Window          time.Duration `yaml:"window" json:"window"`
	Cooldown        time.Duration `yaml:"cooldown" json:"cooldown"`
	TriggerSeverity string        `yaml:"trigger_severity" json:"trigger_severity"`
}

// Parse decodes and validates a document. Unknown fields are rejected.
func Parse(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load policy %q: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse policy %q: %w", path, err)
	}
	return doc, nil
}

// Validate checks the whole document. Role names are not checked here;
// the engine rejects roles it does not know.
func (d *Document) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil document", ErrInvalidPolicy)
	}
	if d.Version != CurrentVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidPolicy, d.Version)
	}

	seen := make(map[[32]byte]int, len(d.Operations))
	for i, op := range d.Operations {
		key, err := op.Key()
		if err != nil {
			return fmt.Errorf("%w: operations[%d]: %v", ErrInvalidPolicy, i, err)
		}
		if j, dup := seen[key]; dup {
			return fmt.Errorf("%w: operations[%d] duplicates operations[%d]", ErrInvalidPolicy, i, j)
		}
		seen[key] = i

		if op.RateLimit != nil {
			if _, err := op.RateLimit.Config(); err != nil {
				return fmt.Errorf("%w: operations[%d].rate_limit: %v", ErrInvalidPolicy, i, err)
			}
		}
		if op.Breaker != nil {
			if _, err := op.Breaker.Config(); err != nil {
				return fmt.Errorf("%w: operations[%d].breaker: %v", ErrInvalidPolicy, i, err)
			}
		}
	}

	for member, roles := range d.Members {
		if member == "" {
			return fmt.Errorf("%w: empty member id", ErrInvalidPolicy)
		}
		if len(roles) == 0 {
			return fmt.Errorf("%w: member %q has no roles", ErrInvalidPolicy, member)
		}
	}
	for i, caller := range d.Whitelist {
		if caller == "" {
			return fmt.Errorf("%w: whitelist[%d] is empty", ErrInvalidPolicy, i)
		}
	}
	return nil
}

// Key returns the operation identifier: the decoded ID, or the SHA-256 of
// Name.
func (o Operation) Key() ([32]byte, error) {
	var key [32]byte
	switch {
	case o.Name != "" && o.ID != "":
		return key, errors.New("name and id are mutually exclusive")
	case o.ID != "":
		raw, err := hex.DecodeString(o.ID)
		if err != nil || len(raw) != len(key) {
			return key, fmt.Errorf("id %q is not 32 hex-encoded bytes", o.ID)
		}
		copy(key[:], raw)
		return key, nil
	case o.Name != "":
		return sha256.Sum256([]byte(o.Name)), nil
	default:
		return key, errors.New("name or id is required")
	}
}

// Config converts r into a validated rate limit configuration.
func (r RateLimit) Config() (ratelimit.Config, error) {
	alg, err := ratelimit.ParseAlgorithm(r.Algorithm)
	if err != nil {
		return ratelimit.Config{}, err
	}
	cfg := ratelimit.Config{
		Algorithm:       alg,
		MaxRequests:     r.MaxRequests,
		Window:          r.Window,
		RefillPerSecond: r.RefillPerSecond,
		Global:          r.Global,
		Active:          r.Active == nil || *r.Active,
	}
	if err := cfg.Validate(); err != nil {
		return ratelimit.Config{}, err
	}
	return cfg, nil
}

// Config converts b into a validated breaker configuration.
func (b Breaker) Config() (resilience.BreakerConfig, error) {
	level, err := resilience.ParseLevel(b.TriggerSeverity)
	if err != nil {
		return resilience.BreakerConfig{}, err
	}
	cfg := resilience.BreakerConfig{
		Threshold:       b.Threshold,
		Window:          b.Window,
		Cooldown:        b.Cooldown,
		TriggerSeverity: level,
	}
	if err := cfg.Validate(); err != nil {
		return resilience.BreakerConfig{}, err
	}
	return cfg, nil
}
