package cli

import (
	"context"
	"fmt"

	"github.com/dbelyaev/authflow/internal/client/flow"
	"github.com/dbelyaev/authflow/internal/client/gateway"
)

// SubmitCode sends a 6-digit code to finish either a pending login challenge
// or an in-progress enrollment, whichever the flow is currently waiting on.
// A wrong code keeps the flow where it is so the user can retry.
func (a *App) SubmitCode(ctx context.Context, code string) error {
	s := a.flow.State()

	if s.Phase == flow.PhaseAuthenticated && s.MfaSetupInProgress {
		return a.confirmSetup(ctx, code)
	}

	if err := a.flow.SubmitMfaCode(ctx, code); err != nil {
		if gateway.IsKind(err, gateway.KindInvalidMfaCode) {
			fmt.Fprintln(a.out, "Wrong code, try again.")
			return nil
		}
		return err
	}

	fmt.Fprintf(a.out, "Logged in as %s.\n", a.flow.State().User.Username)
	return nil
}

// SetupMfa starts two-factor enrollment: it fetches a fresh secret, shows it
// as a terminal QR code, and waits for the confirmation code entered with
// 'code <digits>'. 'cancel' abandons the enrollment.
func (a *App) SetupMfa(ctx context.Context) error {
	material, err := a.flow.BeginMfaSetup(ctx)
	if err != nil {
		return err
	}

	if material.Message != "" {
		fmt.Fprintln(a.out, material.Message)
	}
	fmt.Fprintln(a.out, "Scan this with your authenticator app:")
	if err := renderTotpQR(a.out, a.flow.State().User.Username, material.ManualEntryKey); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Then confirm with 'code <6 digits>', or 'cancel' to abort.")
	return nil
}

// confirmSetup completes enrollment. Backup codes come back exactly once and
// are printed immediately; they are never stored.
func (a *App) confirmSetup(ctx context.Context, code string) error {
	backupCodes, err := a.flow.VerifyMfaSetup(ctx, code)
	if err != nil {
		if gateway.IsKind(err, gateway.KindInvalidMfaCode) {
			fmt.Fprintln(a.out, "Wrong code, try again or 'cancel' to abort.")
			return nil
		}
		return err
	}

	fmt.Fprintln(a.out, "Two-factor authentication is now enabled.")
	if len(backupCodes) > 0 {
		fmt.Fprintln(a.out, "Backup codes (shown once, store them somewhere safe):")
		for _, bc := range backupCodes {
			fmt.Fprintf(a.out, "  %s\n", bc)
		}
	}
	return nil
}
