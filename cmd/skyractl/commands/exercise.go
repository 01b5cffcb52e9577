package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/skyrad/internal/config"
	"github.com/jmylchreest/skyrad/pkg/skyra"
)

// DefaultExerciseSteps are the power setpoints, in mW, each channel is ramped through.
var DefaultExerciseSteps = []float64{4, 6, 8}

// DefaultExerciseDwell is how long each power setpoint is held.
const DefaultExerciseDwell = 500 * time.Millisecond

// NewExerciseCommand runs the end-to-end check against one box directly over
// serial, bypassing the daemon.
func NewExerciseCommand(logger *slog.Logger) *cobra.Command {
	var (
		configPath string
		driver     string
		settle     time.Duration
		dwell      time.Duration
		steps      []float64
		yes        bool
	)
	cmd := &cobra.Command{
		Use:   "exercise <box>",
		Short: "Cycle every channel of a box through on, active and a power ramp",
		Long: "Open the box described in the daemon config directly over serial and, for each\n" +
			"channel, switch on, activate, ramp the power through the given steps, then return\n" +
			"to 0 mW, inactive and off. Stop skyrad first if it owns the port.\n" +
			"Use --driver simulator for a dry run without hardware.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.DaemonConfigFilename, configPath)
			if err != nil {
				return err
			}
			b, ok := cfg.Box(args[0])
			if !ok {
				return fmt.Errorf("box %q is not in %s", args[0], cfg.Path())
			}
			if driver != "" {
				b.Driver = driver
			}
			if settle > 0 {
				for i := range b.Channels {
					b.Channels[i].SettleDelay = settle
				}
			}

			ok, err = acknowledgeSafety(yes, fmt.Sprintf("exercise every channel of %s", b.ID))
			if err != nil || !ok {
				return err
			}

			opener, err := b.Opener()
			if err != nil {
				return err
			}
			if logger == nil {
				logger = getLoggerFromCmd(cmd)
			}
			ctrl, err := skyra.Open(opener, b.ControllerConfig(), logger)
			if err != nil {
				return fmt.Errorf("opening box %s: %w", b.ID, err)
			}
			return runExercise(cmd.OutOrStdout(), ctrl, steps, dwell)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the skyrad config file")
	cmd.Flags().StringVar(&driver, "driver", "", "Override the box's serial driver (bugst, tarm, simulator)")
	cmd.Flags().DurationVar(&settle, "settle", 0, "Wait after each on/active change (overrides the config)")
	cmd.Flags().Float64SliceVar(&steps, "steps", DefaultExerciseSteps, "Power ramp in mW")
	cmd.Flags().DurationVar(&dwell, "dwell", DefaultExerciseDwell, "Hold each power step this long")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the laser safety confirmation")
	return cmd
}

// runExercise drives every channel through the sequence and closes ctrl. A
// failing channel is returned to a safe state before the error is reported.
// Steps above a channel's maximum are skipped. Each applied step is held for
// dwell.
func runExercise(out io.Writer, ctrl *skyra.Controller, steps []float64, dwell time.Duration) (err error) {
	defer func() {
		if cerr := ctrl.Close(); cerr != nil && !errors.Is(cerr, skyra.ErrClosed) {
			err = errors.Join(err, cerr)
		}
	}()

	fmt.Fprintf(out, "box %s serial %s on %s\n", ctrl.Name(), ctrl.SerialNumber(), ctrl.Port())
	for _, name := range ctrl.ChannelNames() {
		if err := exerciseChannel(out, ctrl, name, steps, dwell); err != nil {
			safeOff(ctrl, name)
			return fmt.Errorf("channel %s: %w", name, err)
		}
	}
	fmt.Fprintln(out, "exercise complete")
	return nil
}

func exerciseChannel(out io.Writer, ctrl *skyra.Controller, name string, steps []float64, dwell time.Duration) error {
	state, err := ctrl.Channel(name)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s (%s nm, max %.1f mW)\n", name, state.WavelengthNM, state.MaxPowerMW)

	if err := ctrl.SetOnState(name, true); err != nil {
		return err
	}
	fmt.Fprintf(out, "  on\n")
	if err := ctrl.SetActiveState(name, true); err != nil {
		return err
	}
	fmt.Fprintf(out, "  active\n")

	for _, p := range steps {
		if p > state.MaxPowerMW {
			fmt.Fprintf(out, "  skip %.1f mW (above max)\n", p)
			continue
		}
		if err := ctrl.SetPower(name, p); err != nil {
			return err
		}
		got, err := ctrl.Power(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  power %.1f mW\n", got)
		time.Sleep(dwell)
	}

	if err := ctrl.SetPower(name, 0); err != nil {
		return err
	}
	if err := ctrl.SetActiveState(name, false); err != nil {
		return err
	}
	if err := ctrl.SetOnState(name, false); err != nil {
		return err
	}
	fmt.Fprintf(out, "  off\n")
	return nil
}

// safeOff makes a best effort to stop emission on a channel after a failure.
func safeOff(ctrl *skyra.Controller, name string) {
	_ = ctrl.SetPower(name, 0)
	_ = ctrl.SetActiveState(name, false)
	_ = ctrl.SetOnState(name, false)
}
