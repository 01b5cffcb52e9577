package skyra

import (
	"context"
	stderrors "errors"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jmylchreest/skyrad/internal/errors"
	"github.com/jmylchreest/skyrad/internal/events"
)

// DefaultMonitorInterval is used when StartMonitor is given a non-positive interval.
const DefaultMonitorInterval = 30 * time.Second

// OpenerFactory resolves the transport opener for a registered box.
type OpenerFactory func(id string, cfg Config) (Opener, error)

// BoxManager defines the operations the daemon needs over a set of boxes.
type BoxManager interface {
	Register(id string, cfg Config) error
	Connect(ctx context.Context, id string) (*Box, error)
	ConnectAll(ctx context.Context) error
	Disconnect(ctx context.Context, id string) error
	GetBoxes() map[string]*Box
	GetBox(ctx context.Context, id string, refresh bool) (*Box, error)
	GetChannel(ctx context.Context, boxID, channel string, refresh bool) (ChannelState, error)
	SetChannelState(ctx context.Context, boxID, channel string, values ...ChannelPropertyValue) (ChannelState, error)
	StartMonitor(ctx context.Context, interval time.Duration)
	CloseAll()
}

type boxEntry struct {
	cfg  Config
	ctrl *Controller
	box  Box
	sem  chan struct{}
}

func (e *boxEntry) lock(ctx context.Context) error {
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *boxEntry) tryLock() bool {
	select {
	case e.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (e *boxEntry) unlock() { <-e.sem }

// Manager owns one Controller per configured box. Exchanges with a box are
// serialized by a per-box lock whose acquisition honours the caller's context.
type Manager struct {
	mu       sync.RWMutex
	boxes    map[string]*boxEntry
	openers  OpenerFactory
	logger   *slog.Logger
	eventBus *events.Bus
}

var _ BoxManager = (*Manager)(nil)

// NewManager creates a manager. openers resolves the transport for each box.
func NewManager(logger *slog.Logger, openers OpenerFactory) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		boxes:   make(map[string]*boxEntry),
		openers: openers,
		logger:  logger,
	}
}

// SetEventBus attaches an event bus. Events are dropped while none is set.
func (m *Manager) SetEventBus(bus *events.Bus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventBus = bus
}

func (m *Manager) emit(t events.EventType, data any) {
	m.mu.RLock()
	bus := m.eventBus
	m.mu.RUnlock()
	if bus != nil {
		bus.Publish(events.NewEvent(t, data))
	}
}

// Register adds a box configuration without connecting to it.
func (m *Manager) Register(id string, cfg Config) error {
	if id == "" {
		return errors.InvalidInputf("box id is required")
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return errors.WithKind(errors.ErrInvalidInput, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.boxes[id]; exists {
		return errors.InvalidInputf("box %s already registered", id)
	}
	m.boxes[id] = &boxEntry{
		cfg: cfg,
		sem: make(chan struct{}, 1),
		box: Box{
			ID:       id,
			Name:     cfg.Name,
			Port:     cfg.Port,
			State:    StateUnopened.String(),
			Channels: configuredChannels(cfg),
		},
	}
	m.logger.Info("box: registered", "id", id, "name", cfg.Name, "port", cfg.Port, "channels", len(cfg.Channels))
	return nil
}

func configuredChannels(cfg Config) []ChannelState {
	out := make([]ChannelState, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		out = append(out, ChannelState{Name: ch.Name, Index: ch.Index, MaxPowerMW: ch.MaxPowerMW})
	}
	return out
}

func (m *Manager) entry(id string) (*boxEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.boxes[id]
	if !ok {
		return nil, errors.NotFoundf("box %s not found", id)
	}
	return e, nil
}

// Connect opens the box and runs its startup handshake. Connecting an already
// connected box returns its current snapshot.
func (m *Manager) Connect(ctx context.Context, id string) (*Box, error) {
	e, err := m.entry(id)
	if err != nil {
		return nil, err
	}
	if err := e.lock(ctx); err != nil {
		return nil, err
	}
	defer e.unlock()

	m.mu.RLock()
	connected := e.ctrl != nil
	m.mu.RUnlock()
	if connected {
		return m.snapshot(e), nil
	}

	opener, err := m.openers(id, e.cfg)
	if err != nil {
		return nil, errors.WithKind(errors.ErrInvalidInput, err)
	}

	ctrl, err := Open(opener, e.cfg, m.logger.With("id", id))
	if err != nil {
		m.mu.Lock()
		e.box.State = StateClosed.String()
		e.box.LastError = err.Error()
		m.mu.Unlock()
		m.emit(events.BoxUnavailable, map[string]any{"id": id, "error": err.Error()})
		return nil, errors.LogErrorAndReturn(m.logger, classify(err), "box: connect failed", "id", id)
	}

	channels, _ := ctrl.Channels()
	now := time.Now()
	m.mu.Lock()
	e.ctrl = ctrl
	e.box.SerialNumber = ctrl.SerialNumber()
	e.box.State = StateReady.String()
	e.box.KeySwitch = true
	e.box.Channels = channels
	e.box.ConnectedAt = now
	e.box.LastSeen = now
	e.box.LastError = ""
	box := e.box
	m.mu.Unlock()

	box.Channels = slices.Clone(box.Channels)
	m.logger.Info("box: connected", "id", id, "serial_number", box.SerialNumber, "port", box.Port)
	m.emit(events.BoxConnected, box)
	return &box, nil
}

// ConnectAll connects every registered box in id order. Boxes that fail stay
// registered; the failures are returned joined.
func (m *Manager) ConnectAll(ctx context.Context) error {
	var errs []error
	for _, id := range m.ids() {
		if _, err := m.Connect(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Disconnect closes the box's serial link. The box stays registered.
func (m *Manager) Disconnect(ctx context.Context, id string) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}
	if err := e.lock(ctx); err != nil {
		return err
	}
	defer e.unlock()

	m.mu.Lock()
	ctrl := e.ctrl
	e.ctrl = nil
	e.box.State = StateClosed.String()
	m.mu.Unlock()

	if ctrl == nil {
		return errors.DeviceUnavailablef("box %s is not connected", id)
	}
	if err := ctrl.Close(); err != nil {
		m.logger.Warn("box: close reported error", "id", id, "error", err)
	}
	m.logger.Info("box: disconnected", "id", id)
	m.emit(events.BoxDisconnected, map[string]string{"id": id})
	return nil
}

// GetBoxes returns snapshots of all registered boxes keyed by id.
func (m *Manager) GetBoxes() map[string]*Box {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Box, len(m.boxes))
	for id, e := range m.boxes {
		b := e.box
		b.Channels = slices.Clone(e.box.Channels)
		out[id] = &b
	}
	return out
}

func (m *Manager) ids() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.boxes))
	for id := range m.boxes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) snapshot(e *boxEntry) *Box {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b := e.box
	b.Channels = slices.Clone(e.box.Channels)
	return &b
}

// GetBox returns a box snapshot. With refresh every channel is read back
// from the hardware first.
func (m *Manager) GetBox(ctx context.Context, id string, refresh bool) (*Box, error) {
	e, err := m.entry(id)
	if err != nil {
		return nil, err
	}
	if !refresh {
		return m.snapshot(e), nil
	}
	if err := e.lock(ctx); err != nil {
		return nil, err
	}
	defer e.unlock()
	if err := m.refreshLocked(id, e); err != nil {
		return m.snapshot(e), err
	}
	return m.snapshot(e), nil
}

// GetChannel returns one channel's snapshot, optionally read back from the hardware.
func (m *Manager) GetChannel(ctx context.Context, boxID, channel string, refresh bool) (ChannelState, error) {
	e, err := m.entry(boxID)
	if err != nil {
		return ChannelState{}, err
	}
	if refresh {
		if err := e.lock(ctx); err != nil {
			return ChannelState{}, err
		}
		defer e.unlock()
		ctrl, err := m.controller(boxID, e)
		if err != nil {
			return ChannelState{}, err
		}
		if err := refreshChannel(ctrl, channel); err != nil {
			m.recordFailure(boxID, e, err)
			return ChannelState{}, classify(err)
		}
		m.storeChannels(boxID, e, ctrl)
	}

	b := m.snapshot(e)
	ch, ok := b.Channel(channel)
	if !ok {
		return ChannelState{}, errors.NotFoundf("channel %s not found on box %s", channel, boxID)
	}
	return ch, nil
}

// SetChannelState applies values to a channel. When any value switches
// something off the order is power, active, on; otherwise on, active, power.
// Application stops at the first failure.
func (m *Manager) SetChannelState(ctx context.Context, boxID, channel string, values ...ChannelPropertyValue) (ChannelState, error) {
	if len(values) == 0 {
		return ChannelState{}, errors.InvalidInputf("no properties to set")
	}
	for _, v := range values {
		if err := v.Validate(); err != nil {
			return ChannelState{}, errors.WithKind(errors.ErrInvalidInput, err)
		}
	}

	e, err := m.entry(boxID)
	if err != nil {
		return ChannelState{}, err
	}
	if err := e.lock(ctx); err != nil {
		return ChannelState{}, err
	}
	defer e.unlock()

	ctrl, err := m.controller(boxID, e)
	if err != nil {
		return ChannelState{}, err
	}
	before, err := ctrl.Channel(channel)
	if err != nil {
		return ChannelState{}, classify(err)
	}

	var setErr error
	for _, v := range orderValues(before, values) {
		if setErr = ctrl.Set(channel, v); setErr != nil {
			break
		}
	}

	after, _ := ctrl.Channel(channel)
	m.storeChannels(boxID, e, ctrl)
	if after != before {
		m.emit(events.ChannelStateChanged, map[string]any{"box_id": boxID, "channel": after})
	}
	if setErr != nil {
		m.recordFailure(boxID, e, setErr)
		return after, errors.LogErrorAndReturn(m.logger, classify(setErr), "box: set channel state failed",
			"id", boxID, "channel", channel)
	}
	return after, nil
}

// orderValues sorts a request so the channel never passes through a state
// brighter than both its current and its requested one. Enabling applies on,
// active, then power. When a value disables, a power cut goes first, then
// active and on are cleared, and only then is power raised or anything
// switched back on.
func orderValues(current ChannelState, values []ChannelPropertyValue) []ChannelPropertyValue {
	disabling := false
	for _, v := range values {
		if b, ok := v.Value().(bool); ok && !b {
			disabling = true
		}
	}
	rank := func(v ChannelPropertyValue) int {
		if !disabling {
			switch v.PropertyName() {
			case PropertyOn:
				return 0
			case PropertyActive:
				return 1
			default:
				return 2
			}
		}
		switch val := v.Value().(type) {
		case float64:
			if val <= current.PowerMW {
				return 0
			}
			return 3
		case bool:
			r := 1
			if v.PropertyName() == PropertyOn {
				r = 2
			}
			if val {
				r += 3
			}
			return r
		}
		return 3
	}
	out := slices.Clone(values)
	slices.SortStableFunc(out, func(a, b ChannelPropertyValue) int { return rank(a) - rank(b) })
	return out
}

// controller returns the live controller. Caller holds the box lock.
func (m *Manager) controller(id string, e *boxEntry) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e.ctrl == nil {
		return nil, errors.DeviceUnavailablef("box %s is not connected", id)
	}
	return e.ctrl, nil
}

func refreshChannel(ctrl *Controller, name string) error {
	if _, err := ctrl.Power(name); err != nil {
		return err
	}
	if _, err := ctrl.OnState(name); err != nil {
		return err
	}
	_, err := ctrl.ActiveState(name)
	return err
}

// refreshLocked reads every channel back. Caller holds the box lock.
func (m *Manager) refreshLocked(id string, e *boxEntry) error {
	ctrl, err := m.controller(id, e)
	if err != nil {
		return err
	}
	before := m.snapshot(e).Channels
	for _, name := range ctrl.ChannelNames() {
		if err := refreshChannel(ctrl, name); err != nil {
			m.recordFailure(id, e, err)
			return classify(err)
		}
	}
	after := m.storeChannels(id, e, ctrl)
	for i := range after {
		if i >= len(before) || after[i] != before[i] {
			m.emit(events.ChannelStateChanged, map[string]any{"box_id": id, "channel": after[i]})
		}
	}
	return nil
}

func (m *Manager) storeChannels(id string, e *boxEntry, ctrl *Controller) []ChannelState {
	channels, err := ctrl.Channels()
	if err != nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e.box.Channels = channels
	e.box.LastSeen = time.Now()
	e.box.LastError = ""
	m.logger.Debug("box: channels updated", "id", id)
	return slices.Clone(channels)
}

func (m *Manager) recordFailure(id string, e *boxEntry, err error) {
	m.mu.Lock()
	e.box.LastError = err.Error()
	m.mu.Unlock()
	if !errors.IsDeviceUnavailable(classify(err)) {
		return
	}
	m.emit(events.BoxUnavailable, map[string]any{"id": id, "error": err.Error()})
}

// StartMonitor polls every connected box in the background: the key switch
// is re-read and all channels are refreshed. Boxes busy with another request
// are skipped for that round.
func (m *Manager) StartMonitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		m.logger.Warn("Monitor interval must be positive, using default instead",
			"interval", interval,
			"default", DefaultMonitorInterval)
		interval = DefaultMonitorInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		m.logger.Info("box: monitor started", "interval", interval)
		for {
			select {
			case <-ctx.Done():
				m.logger.Info("box: monitor stopped (context canceled)")
				return
			case <-ticker.C:
				m.monitorOnce()
			}
		}
	}()
}

func (m *Manager) monitorOnce() {
	for _, id := range m.ids() {
		e, err := m.entry(id)
		if err != nil {
			continue
		}
		if !e.tryLock() {
			m.logger.Debug("box: busy, skipping monitor round", "id", id)
			continue
		}
		m.pollLocked(id, e)
		e.unlock()
	}
}

func (m *Manager) pollLocked(id string, e *boxEntry) {
	ctrl, err := m.controller(id, e)
	if err != nil {
		return
	}
	on, err := ctrl.KeySwitch()
	if err != nil {
		m.recordFailure(id, e, err)
		m.logger.Warn("box: monitor poll failed", "id", id, "error", err)
		return
	}

	m.mu.Lock()
	changed := e.box.KeySwitch != on
	e.box.KeySwitch = on
	m.mu.Unlock()
	if changed {
		if on {
			m.logger.Info("box: key switch on", "id", id)
		} else {
			m.logger.Warn("box: key switch turned off", "id", id)
		}
		m.emit(events.BoxInterlockChanged, map[string]any{"id": id, "key_switch": on})
	}

	if err := m.refreshLocked(id, e); err != nil {
		m.logger.Warn("box: monitor refresh failed", "id", id, "error", err)
	}
}

// CloseAll closes every connected box.
func (m *Manager) CloseAll() {
	for _, id := range m.ids() {
		e, err := m.entry(id)
		if err != nil {
			continue
		}
		e.sem <- struct{}{}
		m.mu.Lock()
		ctrl := e.ctrl
		e.ctrl = nil
		e.box.State = StateClosed.String()
		m.mu.Unlock()
		if ctrl != nil {
			if err := ctrl.Close(); err != nil {
				m.logger.Warn("box: close reported error", "id", id, "error", err)
			}
			m.logger.Info("box: closed", "id", id)
		}
		e.unlock()
	}
}

// classify maps controller errors onto daemon error kinds.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, ErrUnknownChannel):
		return errors.WithKind(errors.ErrNotFound, err)
	case stderrors.Is(err, ErrOutOfRange),
		stderrors.Is(err, ErrMalformedCommand),
		stderrors.Is(err, ErrInvalidConfig):
		return errors.WithKind(errors.ErrInvalidInput, err)
	case IsSafetyError(err):
		return errors.WithKind(errors.ErrSafety, err)
	case stderrors.Is(err, ErrTimeout),
		stderrors.Is(err, ErrConnection),
		stderrors.Is(err, ErrProtocolDesync),
		stderrors.Is(err, ErrIllegalCommand),
		stderrors.Is(err, ErrMalformedReply),
		stderrors.Is(err, ErrClosed):
		return errors.WithKind(errors.ErrDeviceUnavailable, err)
	default:
		return errors.WithKind(errors.ErrInternal, err)
	}
}
