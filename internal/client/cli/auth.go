package cli

import (
	"context"
	"fmt"

	"github.com/dbelyaev/authflow/internal/client/flow"
	"github.com/dbelyaev/authflow/internal/client/gateway"
	"github.com/dbelyaev/authflow/internal/client/models"
	"github.com/dbelyaev/authflow/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts the user for credentials and starts the sign-in flow.
//
// Depending on the account, a successful password check either authenticates
// immediately or parks the flow waiting for a 6-digit code; both outcomes are
// reported to the user. The password byte slice is securely wiped before
// returning.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	creds := models.LoginCredentials{Username: userName, Password: string(password)}
	if err := a.flow.Login(ctx, creds); err != nil {
		if gateway.IsKind(err, gateway.KindInvalidCredentials) {
			fmt.Fprintln(a.out, "Invalid username or password.")
			return nil
		}
		return err
	}

	switch s := a.flow.State(); s.Phase {
	case flow.PhaseAwaitingMfaCode:
		fmt.Fprintln(a.out, "Enter the 6-digit code from your authenticator app with 'code <digits>'.")
	case flow.PhaseAuthenticated:
		fmt.Fprintf(a.out, "Logged in as %s.\n", s.User.Username)
		if s.MfaSetupPromptVisible {
			fmt.Fprintln(a.out, "Two-factor authentication is off. Run 'setup-mfa' to enable it, or 'dismiss' to hide this.")
		}
	}
	return nil
}

// Whoami prints the authenticated user, or a hint when logged out.
func (a *App) Whoami() {
	s := a.flow.State()
	if s.Phase != flow.PhaseAuthenticated {
		fmt.Fprintln(a.out, "Not logged in.")
		return
	}
	fmt.Fprintf(a.out, "%s <%s>", s.User.Username, s.User.Email)
	if s.User.IsMfaEnabled {
		fmt.Fprint(a.out, " (2FA enabled)")
	}
	fmt.Fprintln(a.out)
}

// Logout ends the session. Local credentials are always cleared even when
// the server-side revocation fails.
func (a *App) Logout(ctx context.Context) error {
	if err := a.flow.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}
