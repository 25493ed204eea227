package email

import (
	"bytes"
	"testing"

	"authguard/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRequiresConfiguration(t *testing.T) {
	s := NewService(config.EmailConfig{FromAddress: "noreply@example.com"})
	err := s.SendVerificationEmail("a@example.com", "alice", "tok")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestLink(t *testing.T) {
	s := NewService(config.EmailConfig{FrontendURL: "https://app.example.com/"})
	assert.Equal(t, "https://app.example.com/reset-password/abc", s.link("reset-password", "abc"))
}

func TestTemplates(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]string
		contains string
	}{
		{name: "Verification", template: "verification", data: map[string]string{"Name": "alice", "URL": "https://x/verify-email/t"}, contains: `href="https://x/verify-email/t"`},
		{name: "Reset", template: "reset", data: map[string]string{"Name": "alice", "URL": "https://x/reset-password/t"}, contains: "10 minutes"},
		{name: "Two factor", template: "two_factor", data: map[string]string{"Name": "alice", "Secret": "JBSWY3DPEHPK3PXP"}, contains: "JBSWY3DPEHPK3PXP"},
		{name: "Escapes name", template: "reset", data: map[string]string{"Name": "<b>"}, contains: "&lt;b&gt;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, templates.ExecuteTemplate(&buf, tt.template, tt.data))
			assert.Contains(t, buf.String(), tt.contains)
		})
	}
}

func TestBuildMessage(t *testing.T) {
	msg := string(BuildMessage("from@example.com", "to@example.com", "Hi", "<p>x</p>"))
	assert.Contains(t, msg, "To: to@example.com\r\n")
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n<p>x</p>")
}
