package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dbelyaev/authflow/internal/client/flow"
	"github.com/dbelyaev/authflow/internal/client/gateway"
)

func (a *App) getStatus() string {
	s := a.flow.State()
	switch s.Phase {
	case flow.PhaseAuthenticated:
		if s.User.Username != "" {
			return fmt.Sprintf("(%s)", s.User.Username)
		}
		return "(authenticated)"
	case flow.PhaseAwaitingMfaCode:
		return "(mfa)"
	case flow.PhaseAwaitingEmailVerification, flow.PhaseVerifyingEmailToken:
		return "(verify email)"
	default:
		return ""
	}
}

func (a *App) printHelp() {
	switch a.flow.State().Phase {
	case flow.PhaseLoggedOut:
		fmt.Fprintln(a.out, "Available commands: login, signup, verify <token>, help, exit")
	case flow.PhaseAwaitingMfaCode:
		fmt.Fprintln(a.out, "Available commands: code <6 digits>, logout, help, exit")
	case flow.PhaseAwaitingEmailVerification, flow.PhaseVerifyingEmailToken:
		fmt.Fprintln(a.out, "Available commands: verify <token>, back, help, exit")
	case flow.PhaseAuthenticated:
		fmt.Fprintln(a.out, "Available commands: whoami, setup-mfa, cancel, dismiss, logout, help, exit")
	}
}

// printErr renders an error for the terminal. Gateway errors already carry
// a user-facing message; everything else is printed as-is.
func (a *App) printErr(err error) {
	switch {
	case gateway.IsKind(err, gateway.KindNetwork):
		fmt.Fprintf(a.out, "Server unreachable: %s\n", err.Error())
	case err != nil:
		fmt.Fprintln(a.out, err.Error())
	}
}

func (a *App) Root(ctx context.Context) {

	fmt.Fprintln(a.out, "Welcome to authflow CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	if s := a.flow.State(); s.Phase == flow.PhaseAuthenticated && s.MfaSetupPromptVisible {
		fmt.Fprintln(a.out, "Two-factor authentication is off. Run 'setup-mfa' to enable it, or 'dismiss' to hide this.")
	}

	for {
		fmt.Fprintf(a.out, "authflow %s> ", a.getStatus())
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			a.printHelp()
		case "login":
			if err := a.Login(ctx); err != nil {
				a.printErr(err)
			}
		case "signup":
			if err := a.Signup(ctx); err != nil {
				a.printErr(err)
			}
		case "verify":
			if len(args) == 0 {
				fmt.Fprintln(a.out, "Usage: verify <token>")
				continue
			}
			if err := a.VerifyEmail(ctx, args[0]); err != nil {
				a.printErr(err)
			}
		case "back":
			if err := a.flow.AbandonEmailVerification(); err != nil {
				a.printErr(err)
			}
		case "code":
			if len(args) == 0 {
				fmt.Fprintln(a.out, "Usage: code <6 digits>")
				continue
			}
			if err := a.SubmitCode(ctx, args[0]); err != nil {
				a.printErr(err)
			}
		case "setup-mfa":
			if err := a.SetupMfa(ctx); err != nil {
				a.printErr(err)
			}
		case "cancel":
			if err := a.flow.CancelMfaSetup(); err != nil {
				a.printErr(err)
			}
		case "dismiss":
			a.flow.DismissMfaPrompt()
		case "whoami":
			a.Whoami()
		case "logout":
			if err := a.Logout(ctx); err != nil {
				a.printErr(err)
			}
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return
		default:
			fmt.Fprintln(a.out, "Unknown command:", cmd)
		}
	}
}
