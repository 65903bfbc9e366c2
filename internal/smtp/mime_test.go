package smtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmail_PlainText(t *testing.T) {
	raw := []byte("From: sender@example.com\r\n" +
		"To: user@temp-inbox.com\r\n" +
		"Subject: hello\r\n" +
		"\r\n" +
		"plain body\r\n")

	parsed, err := ParseEmail(raw)
	require.NoError(t, err)

	assert.Equal(t, "sender@example.com", parsed.From)
	assert.Equal(t, "user@temp-inbox.com", parsed.To)
	assert.Equal(t, "hello", parsed.Subject)
	assert.Equal(t, "plain body\r\n", parsed.Text)
	assert.Equal(t, "plain body\r\n", parsed.Body())
}

func TestParseEmail_EncodedSubject(t *testing.T) {
	raw := []byte("From: sender@example.com\r\n" +
		"Subject: =?UTF-8?B?5L2g5aW9?=\r\n" +
		"\r\n" +
		"body\r\n")

	parsed, err := ParseEmail(raw)
	require.NoError(t, err)
	assert.Equal(t, "你好", parsed.Subject)
}

func TestParseEmail_Multipart(t *testing.T) {
	raw := []byte("From: sender@example.com\r\n" +
		"To: user@temp-inbox.com\r\n" +
		"Subject: multipart\r\n" +
		"Content-Type: multipart/alternative; boundary=\"BOUNDARY\"\r\n" +
		"\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
		"\r\n" +
		"text part\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/html; charset=\"utf-8\"\r\n" +
		"\r\n" +
		"<p>html part</p>\r\n" +
		"--BOUNDARY--\r\n")

	parsed, err := ParseEmail(raw)
	require.NoError(t, err)

	assert.Contains(t, parsed.Text, "text part")
	assert.Contains(t, parsed.HTML, "html part")
	// 正文优先纯文本
	assert.Contains(t, parsed.Body(), "text part")
}

func TestParseEmail_QuotedPrintable(t *testing.T) {
	raw := []byte("From: sender@example.com\r\n" +
		"Subject: qp\r\n" +
		"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"caf=C3=A9\r\n")

	parsed, err := ParseEmail(raw)
	require.NoError(t, err)
	assert.Contains(t, parsed.Text, "café")
}

func TestParseEmail_HTMLOnly(t *testing.T) {
	raw := []byte("From: sender@example.com\r\n" +
		"Subject: html\r\n" +
		"Content-Type: text/html; charset=\"utf-8\"\r\n" +
		"\r\n" +
		"<b>bold</b>\r\n")

	parsed, err := ParseEmail(raw)
	require.NoError(t, err)
	assert.Empty(t, parsed.Text)
	assert.Contains(t, parsed.HTML, "bold")
	// 没有纯文本时退回 HTML
	assert.Contains(t, parsed.Body(), "bold")
}

func TestParseEmail_Invalid(t *testing.T) {
	_, err := ParseEmail([]byte("not an email"))
	assert.Error(t, err)
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "user@temp-inbox.com", normalizeAddress(" <User@Temp-Inbox.com> "))
	assert.Equal(t, "user@temp-inbox.com", normalizeAddress("user@temp-inbox.com"))
}
