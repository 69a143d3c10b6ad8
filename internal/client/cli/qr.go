package cli

import (
	"fmt"
	"io"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

const totpIssuer = "authflow"

// totpProvisioningURI builds the otpauth:// URI an authenticator app expects
// when scanning an enrollment QR code.
func totpProvisioningURI(username, secret string) string {
	params := url.Values{}
	params.Add("secret", secret)
	params.Add("issuer", totpIssuer)

	return fmt.Sprintf("otpauth://totp/%s:%s?%s",
		url.PathEscape(totpIssuer),
		url.PathEscape(username),
		params.Encode(),
	)
}

// renderTotpQR draws a scannable QR code for the enrollment secret directly
// in the terminal, followed by the manual entry key for devices without a
// camera.
func renderTotpQR(w io.Writer, username, secret string) error {
	qr, err := qrcode.New(totpProvisioningURI(username, secret), qrcode.Medium)
	if err != nil {
		return fmt.Errorf("failed to build QR code: %w", err)
	}
	fmt.Fprint(w, qr.ToSmallString(false))
	fmt.Fprintf(w, "Manual entry key: %s\n", secret)
	return nil
}
