package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

const otpSubject = "Your Verification Code for Books4All"

// defaultValidFor es el texto cuando el OTP no tiene expiracion configurada.
const defaultValidFor = "10 minutes"

var otpHTMLTemplate = htmltemplate.Must(htmltemplate.New("otp_html").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Books4All Verification</title>
</head>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #0d1117;">
  <table width="100%" cellpadding="0" cellspacing="0" border="0" bgcolor="#0d1117">
    <tr>
      <td align="center" style="padding: 40px 10px;">
        <table width="600" cellpadding="0" cellspacing="0" border="0" style="max-width: 600px; border-radius: 12px; overflow: hidden;">
          <tr>
            <td height="8" style="background: linear-gradient(90deg, #36d7b7, #2ecc71);"></td>
          </tr>
          <tr>
            <td bgcolor="#1a2a3a" style="padding: 40px 30px;">
              <h1 style="margin: 0 0 30px; font-size: 28px; color: #ffffff; text-align: center;">Books<span style="color: #36d7b7;">4</span>All</h1>
              <h2 style="margin: 0 0 20px; font-size: 32px; color: #36d7b7; text-align: center;">Verification Code</h2>
              <p style="margin: 0 0 30px; font-size: 18px; color: #c9d1d9; text-align: center;">Use this code to complete your registration</p>
              <p style="margin: 0 0 30px; text-align: center;">
                <span style="font-size: 38px; letter-spacing: 6px; font-weight: 700; color: #36d7b7; font-family: monospace;">{{.Code}}</span>
              </p>
              <p style="margin: 0 0 24px; font-size: 15px; color: #8b949e; text-align: center;">This code will expire in {{.ValidFor}}.<br>If you didn't request this code, please ignore this email.</p>
              <p style="text-align: center;">
                <a href="{{.SiteURL}}" style="display: inline-block; padding: 10px 24px; background: #36d7b7; color: #0d1117; text-decoration: none; font-weight: 600; border-radius: 6px;">Visit Books4All</a>
              </p>
            </td>
          </tr>
          <tr>
            <td height="8" style="background: linear-gradient(90deg, #2ecc71, #36d7b7);"></td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>
`))

var otpTextTemplate = texttemplate.Must(texttemplate.New("otp_text").Parse(
	"Your OTP code is: {{.Code}}. Use this to verify your Books4All account.\n" +
		"This code will expire in {{.ValidFor}}. If you didn't request this code, please ignore this email.\n"))

type otpTemplateData struct {
	Code     string
	ValidFor string
	SiteURL  string
}

// Message es un correo ya renderizado.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// RenderOTP genera el correo de verificacion con cuerpo HTML y texto plano.
// ttl en cero usa el texto por defecto.
func RenderOTP(code string, ttl time.Duration) (Message, error) {
	data := otpTemplateData{
		Code:     code,
		ValidFor: validForText(ttl),
		SiteURL:  "https://books4all.com",
	}

	var html bytes.Buffer
	if err := otpHTMLTemplate.Execute(&html, data); err != nil {
		return Message{}, err
	}
	var text bytes.Buffer
	if err := otpTextTemplate.Execute(&text, data); err != nil {
		return Message{}, err
	}
	return Message{
		Subject: otpSubject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

func validForText(ttl time.Duration) string {
	if ttl <= 0 {
		return defaultValidFor
	}
	if ttl%time.Hour == 0 {
		return plural(int(ttl/time.Hour), "hour")
	}
	minutes := int((ttl + time.Minute - 1) / time.Minute)
	return plural(minutes, "minute")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
