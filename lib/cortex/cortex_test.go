// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package cortex

import (
	"errors"
	"testing"
	"time"
)

func newController(t *testing.T, config Config, initial int) *Controller {
	t.Helper()
	controller, err := New(config, initial)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return controller
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   int
	}{
		{"zero tick", func(c *Config) { c.Tick = 0 }, -2},
		{"alpha zero", func(c *Config) { c.EWMAAlpha = 0 }, -3},
		{"alpha above one", func(c *Config) { c.EWMAAlpha = 1.5 }, -3},
		{"thresholds inverted", func(c *Config) { c.DownThreshold = c.UpThreshold }, -4},
		{"min zero", func(c *Config) { c.MinTarget = 0 }, -5},
		{"max below min", func(c *Config) { c.MaxTarget = 0; c.MinTarget = 2 }, -5},
		{"step down zero", func(c *Config) { c.StepDown = 0 }, -6},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := DefaultConfig()
			test.mutate(&config)
			var validationErr *ValidationError
			if err := config.Validate(); !errors.As(err, &validationErr) || validationErr.Code != test.code {
				t.Errorf("Validate = %v, want code %d", err, test.code)
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestInitialTargetClamped(t *testing.T) {
	if got := newController(t, DefaultConfig(), 40).Target(); got != 8 {
		t.Errorf("Target = %d, want 8", got)
	}
	if got := newController(t, DefaultConfig(), -1).Target(); got != 1 {
		t.Errorf("Target = %d, want 1", got)
	}
}

func TestFirstSampleSeedsAverage(t *testing.T) {
	controller := newController(t, DefaultConfig(), 1)
	decision := controller.Tick(12)
	if decision.QueueEWMA != 12 {
		t.Errorf("QueueEWMA = %v, want 12", decision.QueueEWMA)
	}
	if decision.PeakDelta != 0 {
		t.Errorf("PeakDelta = %v, want 0", decision.PeakDelta)
	}
	if decision.Triggered {
		t.Error("first sample triggered a decision")
	}
}

func TestPeakScalesUpImmediately(t *testing.T) {
	controller := newController(t, DefaultConfig(), 1)
	controller.Tick(5)

	// ewma = 0.2*40 + 0.8*5 = 12; delta 28 > 20.
	decision := controller.Tick(40)
	if !decision.Triggered || decision.Direction != 1 || decision.Reason != ReasonPeak {
		t.Fatalf("decision = %+v, want peak scale-up", decision)
	}
	if decision.PrevTarget != 1 || decision.NewTarget != 2 {
		t.Errorf("targets = %d -> %d, want 1 -> 2", decision.PrevTarget, decision.NewTarget)
	}
	if controller.Mode() != CooldownUp {
		t.Errorf("mode = %s, want cooldown_up", controller.Mode())
	}
}

func TestSustainedLoadScalesUpAfterHold(t *testing.T) {
	controller := newController(t, DefaultConfig(), 1)

	// A steady 50 keeps the average above 30 with no peak. The hold is
	// 500ms at 100ms ticks: five ticks above threshold.
	for tick := 1; tick <= 4; tick++ {
		if decision := controller.Tick(50); decision.Triggered {
			t.Fatalf("tick %d triggered early: %+v", tick, decision)
		}
	}
	decision := controller.Tick(50)
	if !decision.Triggered || decision.Reason != ReasonOverThreshold {
		t.Fatalf("decision = %+v, want ewma_over_threshold", decision)
	}
}

func TestCooldownSuppressesChanges(t *testing.T) {
	controller := newController(t, DefaultConfig(), 1)
	for range 5 {
		controller.Tick(50)
	}
	if controller.Target() != 2 {
		t.Fatalf("Target = %d, want 2", controller.Target())
	}

	// Cooldown up is 3000ms: thirty ticks with no change.
	for tick := 1; tick <= 30; tick++ {
		if decision := controller.Tick(50); decision.Triggered {
			t.Fatalf("tick %d changed target during cooldown", tick)
		}
	}
	if decision := controller.Tick(50); !decision.Triggered {
		t.Fatal("no change once cooldown expired with load still high")
	}
}

func TestIdleScalesDown(t *testing.T) {
	config := DefaultConfig()
	controller := newController(t, config, 3)

	// Twenty ticks below threshold make up the 2000ms hold.
	var decision Decision
	for range 20 {
		decision = controller.Tick(1)
	}
	if !decision.Triggered || decision.Direction != -1 || decision.Reason != ReasonBelowThreshold {
		t.Fatalf("decision = %+v, want scale-down", decision)
	}
	if controller.Target() != 2 {
		t.Errorf("Target = %d, want 2", controller.Target())
	}
	if controller.Mode() != CooldownDown {
		t.Errorf("mode = %s, want cooldown_down", controller.Mode())
	}
}

func TestAtFloorStaysPut(t *testing.T) {
	controller := newController(t, DefaultConfig(), 1)
	for range 50 {
		if decision := controller.Tick(0); decision.Triggered {
			t.Fatalf("scaled below the minimum: %+v", decision)
		}
	}
	if controller.Mode() != Stable {
		t.Errorf("mode = %s, want stable", controller.Mode())
	}
}

func TestFromEnv(t *testing.T) {
	env := map[string]string{
		"YAI_ENGINE_CORTEX_TICK_MS":        "250",
		"YAI_ENGINE_CORTEX_EWMA_ALPHA":     "0.5",
		"YAI_ENGINE_CORTEX_MAX_TARGET":     "16",
		"YAI_ENGINE_CORTEX_INITIAL_TARGET": "4",
		"YAI_ENGINE_CORTEX_STEP_UP":        "two",
	}
	lookup := func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}

	config, initial, err := FromEnv(DefaultConfig(), 1, lookup)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid for STEP_UP", err)
	}
	if config.Tick != 250*time.Millisecond {
		t.Errorf("Tick = %v, want 250ms", config.Tick)
	}
	if config.EWMAAlpha != 0.5 || config.MaxTarget != 16 {
		t.Errorf("config = %+v", config)
	}
	if config.StepUp != 1 {
		t.Errorf("StepUp = %d, want default 1 after bad override", config.StepUp)
	}
	if initial != 4 {
		t.Errorf("initial = %d, want 4", initial)
	}
}
