package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

const verificationSubject = "Account Verification"

var verificationTemplate = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #1f2937;">
    <h2>Verify your {{.AppName}} account</h2>
    <p>Click the button below to confirm your email address. The link expires in {{.ExpiresIn}}.</p>
    <p>
      <a href="{{.Link}}" style="display:inline-block;padding:12px 24px;background:#4f46e5;color:#ffffff;text-decoration:none;border-radius:6px;">Verify account</a>
    </p>
    <p>If the button does not work, copy this link into your browser:</p>
    <p><a href="{{.Link}}">{{.Link}}</a></p>
    <p>If you did not try to sign in, you can ignore this email.</p>
  </body>
</html>`))

// VerificationLink builds {frontendURL}/auth/verify?token=<token>.
func VerificationLink(frontendURL, token string) string {
	return strings.TrimRight(frontendURL, "/") + "/auth/verify?token=" + url.QueryEscape(token)
}

// VerificationEmail renders the account verification mail for destination.
func VerificationEmail(appName, destination, link, expiresIn string) (Message, error) {
	var buf bytes.Buffer
	err := verificationTemplate.Execute(&buf, struct {
		AppName   string
		Link      string
		ExpiresIn string
	}{appName, link, expiresIn})
	if err != nil {
		return Message{}, fmt.Errorf("render verification email: %w", err)
	}
	return Message{
		Kind:        KindEmailVerification,
		Destination: destination,
		Subject:     verificationSubject,
		Body:        "Verify your account by opening this link: " + link,
		HTML:        buf.String(),
	}, nil
}
