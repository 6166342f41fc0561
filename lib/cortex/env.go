// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package cortex

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvPrefix starts every override variable.
const EnvPrefix = "YAI_ENGINE_CORTEX_"

// FromEnv applies YAI_ENGINE_CORTEX_* overrides to base and
// initialTarget. Durations are whole milliseconds (TICK_MS, UP_HOLD_MS,
// and so on). lookup is os.LookupEnv when nil.
//
// A value that does not parse leaves the field at its base value; the
// returned error (wrapping ErrInvalid) names every such variable so
// the caller can warn. The result is not validated.
func FromEnv(base Config, initialTarget int, lookup func(string) (string, bool)) (Config, int, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	config := base
	var errs []error

	millis := func(name string, field *time.Duration) {
		raw, ok := lookup(EnvPrefix + name)
		if !ok || raw == "" {
			return
		}
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s%s=%q", ErrInvalid, EnvPrefix, name, raw))
			return
		}
		*field = time.Duration(value) * time.Millisecond
	}
	integer := func(name string, field *int) {
		raw, ok := lookup(EnvPrefix + name)
		if !ok || raw == "" {
			return
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s%s=%q", ErrInvalid, EnvPrefix, name, raw))
			return
		}
		*field = value
	}
	float := func(name string, field *float64) {
		raw, ok := lookup(EnvPrefix + name)
		if !ok || raw == "" {
			return
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s%s=%q", ErrInvalid, EnvPrefix, name, raw))
			return
		}
		*field = value
	}

	millis("TICK_MS", &config.Tick)
	float("EWMA_ALPHA", &config.EWMAAlpha)
	float("UP_THRESHOLD", &config.UpThreshold)
	float("DOWN_THRESHOLD", &config.DownThreshold)
	float("PEAK_DELTA", &config.PeakDelta)
	millis("UP_HOLD_MS", &config.UpHold)
	millis("DOWN_HOLD_MS", &config.DownHold)
	millis("COOLDOWN_UP_MS", &config.CooldownUp)
	millis("COOLDOWN_DOWN_MS", &config.CooldownDown)
	integer("MIN_TARGET", &config.MinTarget)
	integer("MAX_TARGET", &config.MaxTarget)
	integer("STEP_UP", &config.StepUp)
	integer("STEP_DOWN", &config.StepDown)
	integer("INITIAL_TARGET", &initialTarget)

	return config, initialTarget, errors.Join(errs...)
}
