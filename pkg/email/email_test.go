package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidAddress(t *testing.T) {
	valid := []string{
		"user@example.com",
		"first.last@sub.example.org",
		"dev+tickets@example.io",
	}
	for _, addr := range valid {
		assert.True(t, ValidAddress(addr), addr)
	}

	invalid := []string{
		"",
		"not-an-address",
		"missing@domain@twice",
		"Spaced Name <user@example.com>", // display-name form is rejected
		"@example.com",
	}
	for _, addr := range invalid {
		assert.False(t, ValidAddress(addr), addr)
	}
}

func TestDeriveNameFromEmail(t *testing.T) {
	first, last := DeriveNameFromEmail("jane.doe@example.com")
	assert.Equal(t, "Jane", first)
	assert.Equal(t, "Doe", last)

	first, last = DeriveNameFromEmail("support@example.com")
	assert.Equal(t, "Support", first)
	assert.Equal(t, "User", last)

	first, last = DeriveNameFromEmail("@example.com")
	assert.Equal(t, "User", first)
	assert.Equal(t, "User", last)
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("helpdesk@example.com", "user@example.com", "Ticket updated", "<p>hi</p>"))
	assert.Contains(t, msg, "To: user@example.com\r\n")
	assert.Contains(t, msg, "Subject: Ticket updated\r\n")
	assert.Contains(t, msg, "Content-Type: text/html")
	assert.Contains(t, msg, "\r\n\r\n<p>hi</p>")
}
