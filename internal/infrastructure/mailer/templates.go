package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

var otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background: #0f172a; color: #e2e8f0; padding: 24px;">
  <div style="max-width: 480px; margin: 0 auto; background: #1e293b; border-radius: 8px; padding: 32px;">
    <h1 style="color: #38bdf8; margin-top: 0;">ChainGuard</h1>
    <p>Your email verification code is:</p>
    <p style="font-size: 32px; letter-spacing: 8px; font-weight: bold; color: #f8fafc;">{{.Code}}</p>
    <p>Combine it with the code sent to your phone to finish verification.</p>
    <p style="color: #94a3b8;">This code expires in {{.Minutes}} minutes. Never share it with anyone.</p>
  </div>
</body>
</html>`))

var verificationSuccessTemplate = template.Must(template.New("verified").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background: #0f172a; color: #e2e8f0; padding: 24px;">
  <div style="max-width: 480px; margin: 0 auto; background: #1e293b; border-radius: 8px; padding: 32px;">
    <h1 style="color: #22c55e; margin-top: 0;">Account verified</h1>
    <p>Your ChainGuard account has been verified successfully. You can now sign in and monitor your wallets.</p>
    <p style="color: #94a3b8;">If you did not request this, contact support immediately.</p>
  </div>
</body>
</html>`))

func renderOTP(code string, minutes int) (string, error) {
	var buf bytes.Buffer
	err := otpTemplate.Execute(&buf, struct {
		Code    string
		Minutes int
	}{code, minutes})
	if err != nil {
		return "", fmt.Errorf("render otp email: %w", err)
	}
	return buf.String(), nil
}

func renderVerificationSuccess() (string, error) {
	var buf bytes.Buffer
	if err := verificationSuccessTemplate.Execute(&buf, nil); err != nil {
		return "", fmt.Errorf("render verification email: %w", err)
	}
	return buf.String(), nil
}
