// Package risk answers per-author departure risk questions: how likely an
// author is to become unavailable, and whether a group of authors is safe.
package risk

import (
	"math"
	"sort"
	"strings"
)

// DefaultBusRisk is the risk assumed for authors without an override
const DefaultBusRisk = 0.1

// DefaultThreshold returns the joint probability below which knowledge is
// considered safe when no threshold is configured: the default risk cubed.
func DefaultThreshold(defaultRisk float64) float64 {
	return defaultRisk * defaultRisk * defaultRisk
}

// thresholdTolerance absorbs float rounding when a product lands on the bound
const thresholdTolerance = 1e-12

// Config holds the scalar parameters of an Oracle
type Config struct {
	// DefaultRisk applies to authors without an override
	DefaultRisk float64
	// Threshold is the inclusive safe bound for joint probabilities.
	// Nil means DefaultThreshold(DefaultRisk).
	Threshold *float64
}

// Oracle is the read-only risk lookup shared by all replays of a run.
// It is safe for concurrent use once constructed.
type Oracle struct {
	defaultRisk float64
	threshold   float64
	overrides   map[string]float64
	departed    map[string]struct{}
}

// NewOracle creates an Oracle with no overrides and no departed authors
func NewOracle(cfg Config) *Oracle {
	threshold := DefaultThreshold(cfg.DefaultRisk)
	if cfg.Threshold != nil {
		threshold = *cfg.Threshold
	}
	return &Oracle{
		defaultRisk: cfg.DefaultRisk,
		threshold:   threshold,
		overrides:   make(map[string]float64),
		departed:    make(map[string]struct{}),
	}
}

// Risk returns the departure probability of author. The empty name stands
// for the safe account and reports the threshold itself.
func (o *Oracle) Risk(author string) float64 {
	name := strings.TrimSpace(author)
	if name == "" {
		return o.threshold
	}
	if _, ok := o.departed[name]; ok {
		return 1.0
	}
	if r, ok := o.overrides[name]; ok {
		return r
	}
	return o.defaultRisk
}

// JointProbability is the product of the members' risks; 1.0 for no members
func (o *Oracle) JointProbability(authors []string) float64 {
	p := 1.0
	for _, a := range authors {
		p *= o.Risk(a)
	}
	return p
}

// IsDeparted reports whether author is flagged as departed
func (o *Oracle) IsDeparted(author string) bool {
	_, ok := o.departed[strings.TrimSpace(author)]
	return ok
}

// AllDeparted reports whether every member of authors has departed.
// An empty group has no departed members and reports false.
func (o *Oracle) AllDeparted(authors []string) bool {
	if len(authors) == 0 {
		return false
	}
	for _, a := range authors {
		if !o.IsDeparted(a) {
			return false
		}
	}
	return true
}

// BelowThreshold reports whether the group's joint probability is at or
// below the threshold
func (o *Oracle) BelowThreshold(authors []string) bool {
	p := o.JointProbability(authors)
	if p <= o.threshold {
		return true
	}
	return math.Abs(p-o.threshold) <= thresholdTolerance*math.Max(math.Abs(p), math.Abs(o.threshold))
}

// Threshold returns the configured safe bound
func (o *Oracle) Threshold() float64 {
	return o.threshold
}

// DefaultRisk returns the risk used for authors without an override
func (o *Oracle) DefaultRisk() float64 {
	return o.defaultRisk
}

// Departed returns the departed authors in sorted order
func (o *Oracle) Departed() []string {
	names := make([]string, 0, len(o.departed))
	for name := range o.departed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Overrides returns a copy of the per-author risk overrides
func (o *Oracle) Overrides() map[string]float64 {
	out := make(map[string]float64, len(o.overrides))
	for k, v := range o.overrides {
		out[k] = v
	}
	return out
}

func (o *Oracle) setOverride(author string, risk float64) {
	o.overrides[strings.TrimSpace(author)] = risk
}

func (o *Oracle) markDeparted(author string) {
	if name := strings.TrimSpace(author); name != "" {
		o.departed[name] = struct{}{}
	}
}
