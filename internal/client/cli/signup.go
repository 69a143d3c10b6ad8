package cli

import (
	"context"
	"fmt"

	"github.com/dbelyaev/authflow/internal/client/gateway"
	"github.com/dbelyaev/authflow/internal/client/models"
	"github.com/dbelyaev/authflow/internal/common"
)

// Signup prompts for registration details and creates an account. The two
// password entries must match; mismatches are reported without a round trip.
// On success the flow moves to awaiting email verification and the user is
// told to check their inbox.
func (a *App) Signup(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword("Repeat password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if string(password) != string(confirm) {
		fmt.Fprintln(a.out, "Passwords do not match.")
		return nil
	}

	creds := models.SignupCredentials{
		Username:        userName,
		Email:           email,
		Password:        string(password),
		PasswordConfirm: string(confirm),
	}

	res, err := a.flow.Signup(ctx, creds)
	if err != nil {
		if gateway.IsKind(err, gateway.KindValidation) {
			fmt.Fprintln(a.out, err.Error())
			return nil
		}
		return err
	}

	if res.Message != "" {
		fmt.Fprintln(a.out, res.Message)
	} else {
		fmt.Fprintf(a.out, "Account created. A verification link was sent to %s.\n", res.Email)
	}
	fmt.Fprintln(a.out, "Open the link, then paste the token here with 'verify <token>'.")
	return nil
}

// VerifyEmail redeems a verification token from the emailed link. A spent or
// expired token is reported as such; the user can request a fresh link by
// signing up again.
func (a *App) VerifyEmail(ctx context.Context, token string) error {
	if err := a.flow.ObserveVerificationToken(ctx, token); err != nil {
		if gateway.IsKind(err, gateway.KindExpiredToken) {
			fmt.Fprintln(a.out, "This verification link is invalid or has expired. Type 'back' to return.")
			return nil
		}
		return err
	}
	fmt.Fprintln(a.out, "Email verified. You can now log in.")
	return nil
}
