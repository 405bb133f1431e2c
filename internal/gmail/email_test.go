package gmail

import (
	"encoding/base64"
	"mime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailMessage_Validate(t *testing.T) {
	tests := []struct {
		name        string
		msg         EmailMessage
		errContains string
	}{
		{
			name: "complete",
			msg:  EmailMessage{To: []string{"a@example.com"}, Subject: "s", Body: "b"},
		},
		{
			name:        "missing recipient",
			msg:         EmailMessage{Subject: "s", Body: "b"},
			errContains: "at least one recipient is required",
		},
		{
			name:        "missing subject",
			msg:         EmailMessage{To: []string{"a@example.com"}, Body: "b"},
			errContains: "subject is required",
		},
		{
			name:        "missing body",
			msg:         EmailMessage{To: []string{"a@example.com"}, Subject: "s"},
			errContains: "body is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidMessage)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestEmailMessage_RFC2822(t *testing.T) {
	msg := EmailMessage{
		To:      []string{"a@example.com", "b@example.com"},
		Cc:      []string{"c@example.com"},
		Subject: "Hello",
		Body:    "<p>hi</p>",
		IsHTML:  true,
	}

	out := msg.RFC2822()

	assert.True(t, strings.HasPrefix(out, "To: a@example.com, b@example.com\r\n"))
	assert.Contains(t, out, "Cc: c@example.com\r\n")
	assert.NotContains(t, out, "Bcc:")
	assert.Contains(t, out, "Subject: Hello\r\n")
	assert.Contains(t, out, "Content-Type: text/html; charset=\"UTF-8\"\r\n")
	assert.Contains(t, out, "MIME-Version: 1.0\r\n\r\n<p>hi</p>")
}

func TestEmailMessage_Raw(t *testing.T) {
	msg := EmailMessage{To: []string{"a@example.com"}, Subject: "s", Body: "b"}

	raw, err := msg.Raw()
	require.NoError(t, err)

	decoded, err := base64.URLEncoding.DecodeString(raw)
	require.NoError(t, err)
	assert.Equal(t, msg.RFC2822(), string(decoded))
}

func TestEncodeRFC2047(t *testing.T) {
	assert.Equal(t, "Plain subject", encodeRFC2047("Plain subject"))

	encoded := encodeRFC2047("Über uns")
	assert.NotEqual(t, "Über uns", encoded)

	decoded, err := new(mime.WordDecoder).DecodeHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, "Über uns", decoded)
}

func TestSplitAddresses(t *testing.T) {
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, SplitAddresses(" a@example.com, ,b@example.com "))
	assert.Nil(t, SplitAddresses(""))
}
