package skyra

import (
	"fmt"
	"math"
)

// Power reads the channel's output power in mW, rounded to 0.1 mW.
func (c *Controller) Power(name string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, err := c.lookup(name)
	if err != nil {
		return 0, err
	}
	return c.readPower(ch)
}

// SetPower requests powerMW on the channel and confirms it by reading it back.
// Requests are quantized to 0.1 mW. Values outside [0, MaxPowerMW] are
// rejected before anything is sent.
func (c *Controller) SetPower(name string, powerMW float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, err := c.lookup(name)
	if err != nil {
		return err
	}
	if math.IsNaN(powerMW) || powerMW < 0 || powerMW > ch.cfg.MaxPowerMW {
		return fmt.Errorf("%w: channel %s power %v mW outside [0, %v]",
			ErrOutOfRange, name, powerMW, ch.cfg.MaxPowerMW)
	}
	requested := roundTenth(powerMW)
	if requested > ch.cfg.MaxPowerMW {
		requested = math.Floor(powerMW*10) / 10
	}

	c.logOp("skyra: setting power", "channel", name, "power_mw", requested)
	if _, err := c.channel.Send(ch.cfg.Index + "p " + wattsToken(requested)); err != nil {
		return fmt.Errorf("channel %s: %w", name, err)
	}
	got, err := c.readPower(ch)
	if err != nil {
		return fmt.Errorf("channel %s: confirming power: %w", name, err)
	}
	if got != requested {
		return &ConfirmationError{Channel: name, Property: PropertyPower, Requested: requested, Confirmed: got}
	}
	c.logOp("skyra: power set", "channel", name, "power_mw", got)
	return nil
}

// OnState reads whether the channel's laser is on.
func (c *Controller) OnState(name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, err := c.lookup(name)
	if err != nil {
		return false, err
	}
	return c.readOnState(ch)
}

// SetOnState switches the channel's laser on or off and confirms the change.
func (c *Controller) SetOnState(name string, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, err := c.lookup(name)
	if err != nil {
		return err
	}

	c.logOp("skyra: setting on state", "channel", name, "on", on)
	if _, err := c.channel.Send(fmt.Sprintf("%sl%d", ch.cfg.Index, boolToInt(on))); err != nil {
		return fmt.Errorf("channel %s: %w", name, err)
	}
	got, err := c.readOnState(ch)
	if err != nil {
		return fmt.Errorf("channel %s: confirming on state: %w", name, err)
	}
	if got != on {
		return &ConfirmationError{Channel: name, Property: PropertyOn, Requested: on, Confirmed: got}
	}
	c.settle(ch)
	return nil
}

// ActiveState reads whether the channel is active.
func (c *Controller) ActiveState(name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, err := c.lookup(name)
	if err != nil {
		return false, err
	}
	return c.readActiveState(ch)
}

// SetActiveState sets the channel's active state and confirms the change.
func (c *Controller) SetActiveState(name string, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, err := c.lookup(name)
	if err != nil {
		return err
	}

	c.logOp("skyra: setting active state", "channel", name, "active", active)
	if _, err := c.channel.Send(fmt.Sprintf("%ssla %d", ch.cfg.Index, boolToInt(active))); err != nil {
		return fmt.Errorf("channel %s: %w", name, err)
	}
	got, err := c.readActiveState(ch)
	if err != nil {
		return fmt.Errorf("channel %s: confirming active state: %w", name, err)
	}
	if got != active {
		return &ConfirmationError{Channel: name, Property: PropertyActive, Requested: active, Confirmed: got}
	}
	c.settle(ch)
	return nil
}

// Set applies a single typed property value to a channel.
func (c *Controller) Set(name string, value ChannelPropertyValue) error {
	if err := value.Validate(); err != nil {
		return err
	}
	switch v := value.(type) {
	case PowerValue:
		return c.SetPower(name, float64(v))
	case OnValue:
		return c.SetOnState(name, bool(v))
	case ActiveValue:
		return c.SetActiveState(name, bool(v))
	default:
		return fmt.Errorf("unsupported property %s", value.PropertyName())
	}
}

func (c *Controller) readPower(ch *channelEntry) (float64, error) {
	cmd := ch.cfg.Index + "p?"
	c.logOp("skyra: getting power", "channel", ch.cfg.Name)
	reply, err := c.channel.Send(cmd)
	if err != nil {
		return 0, err
	}
	w, err := parseWatts(reply)
	if err != nil {
		return 0, &CommandError{Command: cmd, Reply: reply, Err: err}
	}
	ch.powerMW = wattsToMilliwatts(w)
	c.logOp("skyra: power", "channel", ch.cfg.Name, "power_mw", ch.powerMW)
	return ch.powerMW, nil
}

func (c *Controller) readOnState(ch *channelEntry) (bool, error) {
	cmd := ch.cfg.Index + "l?"
	c.logOp("skyra: getting on state", "channel", ch.cfg.Name)
	reply, err := c.channel.Send(cmd)
	if err != nil {
		return false, err
	}
	on, err := parseFlag(reply)
	if err != nil {
		return false, &CommandError{Command: cmd, Reply: reply, Err: err}
	}
	ch.on = on
	c.logOp("skyra: on state", "channel", ch.cfg.Name, "on", on)
	return on, nil
}

func (c *Controller) readActiveState(ch *channelEntry) (bool, error) {
	cmd := ch.cfg.Index + "gla?"
	c.logOp("skyra: getting active state", "channel", ch.cfg.Name)
	reply, err := c.channel.Send(cmd)
	if err != nil {
		return false, err
	}
	active, err := parseFlag(reply)
	if err != nil {
		return false, &CommandError{Command: cmd, Reply: reply, Err: err}
	}
	ch.active = active
	c.logOp("skyra: active state", "channel", ch.cfg.Name, "active", active)
	return active, nil
}

func (c *Controller) settle(ch *channelEntry) {
	if ch.cfg.SettleDelay <= 0 {
		return
	}
	c.logOp("skyra: settling", "channel", ch.cfg.Name, "delay", ch.cfg.SettleDelay)
	c.sleep(ch.cfg.SettleDelay)
}
