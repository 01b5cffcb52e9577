package commands

import (
	"fmt"

	"github.com/pterm/pterm"
)

// SafetyBanner is shown before any command that can start laser emission.
const SafetyBanner = "This command can switch on laser emission. Close the shutter or block the beam path before continuing."

// confirmEmission asks the operator to acknowledge the banner. Tests replace it.
var confirmEmission = func(prompt string) (bool, error) {
	return pterm.DefaultInteractiveConfirm.
		WithDefaultText(prompt).
		WithDefaultValue(false).
		Show()
}

// acknowledgeSafety shows the banner unless yes is set and reports whether
// the command may continue.
func acknowledgeSafety(yes bool, action string) (bool, error) {
	if yes {
		return true, nil
	}
	pterm.Warning.Println(SafetyBanner)
	ok, err := confirmEmission(fmt.Sprintf("Continue and %s?", action))
	if err != nil {
		return false, fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		pterm.Info.Println("Cancelled.")
	}
	return ok, nil
}
