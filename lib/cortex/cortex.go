// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package cortex is the engine's scaling heuristic: an EWMA over the
// mailbox queue depth that recommends raising or lowering the worker
// target. It only recommends; acting on a decision is the caller's
// business.
//
// Scale-up fires when the average has stayed above UpThreshold for
// UpHold, or immediately when a single sample exceeds the average by
// more than PeakDelta. Scale-down fires when the average has stayed
// below DownThreshold for DownHold. Every change starts a cooldown
// during which no further change is made.
package cortex

import (
	"errors"
	"fmt"
	"time"
)

// Config tunes a Controller.
type Config struct {
	Tick          time.Duration `yaml:"tick"`
	EWMAAlpha     float64       `yaml:"ewma_alpha"`
	UpThreshold   float64       `yaml:"up_threshold"`
	DownThreshold float64       `yaml:"down_threshold"`
	PeakDelta     float64       `yaml:"peak_delta"`
	UpHold        time.Duration `yaml:"up_hold"`
	DownHold      time.Duration `yaml:"down_hold"`
	CooldownUp    time.Duration `yaml:"cooldown_up"`
	CooldownDown  time.Duration `yaml:"cooldown_down"`
	MinTarget     int           `yaml:"min_target"`
	MaxTarget     int           `yaml:"max_target"`
	StepUp        int           `yaml:"step_up"`
	StepDown      int           `yaml:"step_down"`
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		Tick:          100 * time.Millisecond,
		EWMAAlpha:     0.2,
		UpThreshold:   30,
		DownThreshold: 10,
		PeakDelta:     20,
		UpHold:        500 * time.Millisecond,
		DownHold:      2000 * time.Millisecond,
		CooldownUp:    3000 * time.Millisecond,
		CooldownDown:  5000 * time.Millisecond,
		MinTarget:     1,
		MaxTarget:     8,
		StepUp:        1,
		StepDown:      1,
	}
}

// ValidationError reports an unusable Config. Code is stable: -2 tick,
// -3 alpha, -4 thresholds, -5 target range, -6 steps.
type ValidationError struct {
	Code    int
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cortex config invalid (%d): %s", e.Code, e.Message)
}

// Validate checks c.
func (c Config) Validate() error {
	switch {
	case c.Tick <= 0:
		return &ValidationError{Code: -2, Message: "tick must be positive"}
	case c.EWMAAlpha <= 0 || c.EWMAAlpha > 1:
		return &ValidationError{Code: -3, Message: "ewma_alpha must be in (0, 1]"}
	case c.DownThreshold >= c.UpThreshold:
		return &ValidationError{Code: -4, Message: "down_threshold must be below up_threshold"}
	case c.MinTarget <= 0 || c.MaxTarget < c.MinTarget:
		return &ValidationError{Code: -5, Message: "target range must satisfy 0 < min_target <= max_target"}
	case c.StepUp <= 0 || c.StepDown <= 0:
		return &ValidationError{Code: -6, Message: "steps must be positive"}
	}
	return nil
}

// Mode is the controller's phase.
type Mode int

const (
	Stable Mode = iota
	CooldownUp
	CooldownDown
)

func (m Mode) String() string {
	switch m {
	case Stable:
		return "stable"
	case CooldownUp:
		return "cooldown_up"
	case CooldownDown:
		return "cooldown_down"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Decision reasons.
const (
	ReasonNone           = "none"
	ReasonPeak           = "peak_detected"
	ReasonOverThreshold  = "ewma_over_threshold"
	ReasonBelowThreshold = "ewma_below_threshold"
)

// Decision is the outcome of one Tick.
type Decision struct {
	Triggered bool

	// Direction is +1 for scale up, -1 for scale down, 0 otherwise.
	Direction int

	Reason     string
	PrevTarget int
	NewTarget  int
	QueueDepth int
	QueueEWMA  float64
	PeakDelta  float64
}

// Controller holds the EWMA state. It is not safe for concurrent use.
type Controller struct {
	config   Config
	mode     Mode
	ewma     float64
	above    time.Duration
	below    time.Duration
	cooldown time.Duration
	target   int
}

// New validates config and returns a controller starting at
// initialTarget, clamped to the configured range.
func New(config Config, initialTarget int) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		config: config,
		mode:   Stable,
		target: clamp(initialTarget, config.MinTarget, config.MaxTarget),
	}, nil
}

// Config returns the controller's configuration.
func (c *Controller) Config() Config { return c.config }

// Target returns the current recommended worker count.
func (c *Controller) Target() int { return c.target }

// Mode returns the current phase.
func (c *Controller) Mode() Mode { return c.mode }

// EWMA returns the current average.
func (c *Controller) EWMA() float64 { return c.ewma }

// Tick feeds one queue depth sample, taken once per Config.Tick.
func (c *Controller) Tick(queueDepth int) Decision {
	config := c.config
	if queueDepth < 0 {
		queueDepth = 0
	}
	decision := Decision{
		Reason:     ReasonNone,
		PrevTarget: c.target,
		NewTarget:  c.target,
		QueueDepth: queueDepth,
	}

	if c.ewma == 0 {
		c.ewma = float64(queueDepth)
	} else {
		c.ewma = config.EWMAAlpha*float64(queueDepth) + (1-config.EWMAAlpha)*c.ewma
	}
	decision.QueueEWMA = c.ewma
	decision.PeakDelta = float64(queueDepth) - c.ewma

	if c.ewma > config.UpThreshold {
		c.above += config.Tick
	} else {
		c.above = 0
	}
	if c.ewma < config.DownThreshold {
		c.below += config.Tick
	} else {
		c.below = 0
	}

	if c.cooldown > 0 {
		c.cooldown = max(c.cooldown-config.Tick, 0)
		return decision
	}

	peak := decision.PeakDelta > config.PeakDelta
	if c.above >= config.UpHold || peak {
		next := clamp(c.target+config.StepUp, config.MinTarget, config.MaxTarget)
		if next != c.target {
			decision.Triggered = true
			decision.Direction = 1
			decision.Reason = ReasonOverThreshold
			if peak {
				decision.Reason = ReasonPeak
			}
			decision.NewTarget = next
			c.shift(next, CooldownUp, config.CooldownUp)
		}
		return decision
	}

	if c.below >= config.DownHold {
		next := clamp(c.target-config.StepDown, config.MinTarget, config.MaxTarget)
		if next != c.target {
			decision.Triggered = true
			decision.Direction = -1
			decision.Reason = ReasonBelowThreshold
			decision.NewTarget = next
			c.shift(next, CooldownDown, config.CooldownDown)
		}
		return decision
	}

	c.mode = Stable
	return decision
}

func (c *Controller) shift(target int, mode Mode, cooldown time.Duration) {
	c.target = target
	c.mode = mode
	c.cooldown = cooldown
	c.above = 0
	c.below = 0
}

func clamp(value, low, high int) int {
	return min(max(value, low), high)
}

// ErrInvalid is wrapped by FromEnv when an override does not parse.
var ErrInvalid = errors.New("invalid cortex override")
