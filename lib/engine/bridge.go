// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/yai-labs/yai/lib/clock"
	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/cortex"
	"github.com/yai-labs/yai/lib/events"
	"github.com/yai-labs/yai/lib/kernel"
	"github.com/yai-labs/yai/lib/vault"
)

// DefaultPollInterval is how often Run checks the mailbox.
const DefaultPollInterval = 50 * time.Millisecond

// Options configures Attach.
type Options struct {
	// Dir holds the shared memory segments. Empty uses vault.DefaultDir.
	Dir string

	WorkspaceID string

	// Channels to attach besides the core. A channel whose segment does
	// not exist falls back to the core record.
	Channels []string

	// Create makes the core segment when it is missing instead of
	// failing. Quota is its energy budget.
	Create bool
	Quota  uint32

	PollInterval time.Duration

	// EnergyCost is what Meter charges per effectful command. Zero
	// uses DefaultEnergyCost.
	EnergyCost uint32

	// Cortex tunes the scaling heuristic. The zero value uses
	// cortex.DefaultConfig.
	Cortex        cortex.Config
	InitialTarget int

	Kernel *kernel.Kernel
	Sink   events.Sink
	Clock  clock.Clock
	Logger *slog.Logger
}

// Bridge is an attached engine.
type Bridge struct {
	workspaceID string
	core        *vault.Segment
	channels    map[string]*vault.Record
	segments    []*vault.Segment

	kernel   *kernel.Kernel
	cortex   *cortex.Controller
	sink     events.Sink
	clock    clock.Clock
	logger   *slog.Logger
	interval time.Duration

	energyCost uint32
}

// Attach maps the workspace's vaults.
func Attach(options Options) (*Bridge, error) {
	if options.WorkspaceID == "" {
		return nil, errors.New("engine: workspace id is required")
	}
	if options.PollInterval <= 0 {
		options.PollInterval = DefaultPollInterval
	}
	if options.Cortex == (cortex.Config{}) {
		options.Cortex = cortex.DefaultConfig()
	}
	if options.InitialTarget == 0 {
		options.InitialTarget = options.Cortex.MinTarget
	}
	controller, err := cortex.New(options.Cortex, options.InitialTarget)
	if err != nil {
		return nil, err
	}

	bridge := &Bridge{
		workspaceID: options.WorkspaceID,
		channels:    make(map[string]*vault.Record),
		kernel:      options.Kernel,
		cortex:      controller,
		sink:        options.Sink,
		clock:       options.Clock,
		logger:      options.Logger,
		interval:    options.PollInterval,
		energyCost:  options.EnergyCost,
	}
	if bridge.energyCost == 0 {
		bridge.energyCost = DefaultEnergyCost
	}
	if bridge.sink == nil {
		bridge.sink = events.Discard
	}
	if bridge.clock == nil {
		bridge.clock = clock.Real()
	}
	if bridge.logger == nil {
		bridge.logger = slog.New(slog.DiscardHandler)
	}
	if bridge.kernel == nil {
		bridge.kernel = kernel.New(kernel.Options{Sink: bridge.sink, Clock: bridge.clock, Logger: bridge.logger})
	}

	var core *vault.Segment
	if options.Create {
		core, err = vault.Create(options.Dir, options.WorkspaceID, "", options.Quota)
	} else {
		core, err = vault.Open(options.Dir, options.WorkspaceID, "")
	}
	if err != nil {
		return nil, fmt.Errorf("attaching core vault: %w", err)
	}
	bridge.core = core
	bridge.segments = append(bridge.segments, core)

	for _, channel := range options.Channels {
		segment, err := vault.Open(options.Dir, options.WorkspaceID, channel)
		if errors.Is(err, os.ErrNotExist) {
			bridge.logger.Debug("channel vault absent, using core", "ws_id", options.WorkspaceID, "channel", channel)
			bridge.channels[channel] = core.Record()
			continue
		}
		if err != nil {
			bridge.Close()
			return nil, fmt.Errorf("attaching %s vault: %w", channel, err)
		}
		bridge.segments = append(bridge.segments, segment)
		bridge.channels[channel] = segment.Record()
	}

	if err := bridge.start(); err != nil {
		bridge.Close()
		return nil, err
	}
	return bridge, nil
}

// start brings the core record to READY: a halted record is re-armed
// through PREBOOT, a fresh one booted. Any other state is kept.
func (b *Bridge) start() error {
	record := b.core.Record()
	if b.kernel.State(record) == kernel.Halt {
		if err := b.kernel.Transition(record, kernel.Preboot); err != nil {
			return fmt.Errorf("re-arming halted workspace: %w", err)
		}
	}
	if err := b.kernel.Boot(record); err != nil {
		return fmt.Errorf("booting workspace: %w", err)
	}
	b.logger.Info("engine attached",
		"ws_id", b.workspaceID,
		"state", b.kernel.State(record).String(),
		"channels", len(b.channels),
	)
	return nil
}

// Vault returns the core record.
func (b *Bridge) Vault() *vault.Record { return b.core.Record() }

// Channel returns the record of an attached channel.
func (b *Bridge) Channel(name string) (*vault.Record, bool) {
	record, ok := b.channels[name]
	return record, ok
}

// Cortex returns the scaling controller.
func (b *Bridge) Cortex() *cortex.Controller { return b.cortex }

// ConsumeEnergy spends amount from the core budget.
func (b *Bridge) ConsumeEnergy(amount uint32) bool {
	return vault.ConsumeEnergy(b.core.Record(), amount)
}

// AllowsCommand reports whether the core authority lock permits id.
func (b *Bridge) AllowsCommand(id command.ID) bool {
	return vault.AllowsCommand(b.core.Record(), id)
}

// CheckIntegrity locks the brain channel when the core has overspent
// its budget. Reports whether the lock was engaged.
func (b *Bridge) CheckIntegrity() bool {
	core := b.core.Record()
	if vault.EnergyWithinQuota(core) {
		return false
	}
	brain, ok := b.channels[vault.ChannelBrain]
	if !ok {
		return false
	}
	if !brain.AuthorityLocked() {
		b.logger.Warn("energy quota exceeded, locking brain channel",
			"ws_id", b.workspaceID,
			"consumed", core.EnergyConsumed(),
			"quota", core.EnergyQuota(),
		)
		b.kernel.Lock(brain, "energy_quota_exceeded")
	}
	return true
}

// EmergencyLock engages the core authority lock and asks for ERROR.
// Called on SIGINT and SIGTERM. The lock holds even when the
// transition is refused.
func (b *Bridge) EmergencyLock(reason string) {
	if err := b.core.Lock(); err != nil {
		b.logger.Warn("emergency lock without segment lock", "ws_id", b.workspaceID, "error", err)
	} else {
		defer b.core.Unlock()
	}
	record := b.core.Record()
	b.kernel.Lock(record, reason)
	if err := b.kernel.Transition(record, kernel.Error); err != nil {
		b.logger.Warn("emergency transition refused", "ws_id", b.workspaceID, "error", err)
	}
	vault.SetError(record, "emergency lock: "+reason)
}

// Close unmaps every attached segment.
func (b *Bridge) Close() error {
	var errs []error
	for _, segment := range b.segments {
		errs = append(errs, segment.Close())
	}
	b.segments = nil
	return errors.Join(errs...)
}

// Run polls the mailbox and feeds the cortex until ctx is cancelled
// or the workspace reaches HALT or ERROR.
func (b *Bridge) Run(ctx context.Context) error {
	ticker := b.clock.NewTicker(b.interval)
	defer ticker.Stop()

	config := b.cortex.Config()
	var sinceTick time.Duration
	for {
		b.CheckIntegrity()
		b.ProcessPending(ctx)

		sinceTick += b.interval
		if sinceTick >= config.Tick {
			sinceTick = 0
			b.observe()
		}

		switch b.kernel.State(b.core.Record()) {
		case kernel.Halt, kernel.Error:
			b.logger.Info("engine stopping", "ws_id", b.workspaceID, "state", b.kernel.State(b.core.Record()).String())
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// observe feeds the queue depth to the cortex and reports decisions.
func (b *Bridge) observe() {
	decision := b.cortex.Tick(int(vault.QueueDepth(b.core.Record())))
	if !decision.Triggered {
		return
	}
	config := b.cortex.Config()
	kind, step := "engine_scale_up", config.StepUp
	if decision.Direction < 0 {
		kind, step = "engine_scale_down", config.StepDown
	}
	b.logger.Info("cortex decision",
		"ws_id", b.workspaceID,
		"type", kind,
		"reason", decision.Reason,
		"queue_depth", decision.QueueDepth,
		"queue_ewma", decision.QueueEWMA,
		"prev_target", decision.PrevTarget,
		"new_target", decision.NewTarget,
	)
	record := b.core.Record()
	b.sink.Emit(events.New(b.clock.Now(), b.workspaceID, record.TraceID(),
		events.DecisionProposed, events.LevelInfo, kind,
		map[string]any{
			"type":   kind,
			"actor":  "engine",
			"reason": decision.Reason,
			"metrics": map[string]any{
				"queue_depth": decision.QueueDepth,
				"queue_ewma":  decision.QueueEWMA,
				"peak_delta":  decision.PeakDelta,
			},
			"recommendation": map[string]any{
				"prev_target": decision.PrevTarget,
				"new_target":  decision.NewTarget,
				"step":        step,
			},
		}))
}
