package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupRequestTermsFlag(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`"true"`, true},
		{`"1"`, true},
		{`1`, true},
		{`0`, false},
		{`"no"`, false},
		{`""`, false},
		{`null`, false},
		{`{}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			var req SetupRequest
			require.NoError(t, json.Unmarshal([]byte(`{"novaSenha":"abcdef","aceitouTermo":`+tc.raw+`}`), &req))
			assert.Equal(t, tc.want, bool(req.TermsAccepted))
		})
	}
}

func TestLoginEmailHint(t *testing.T) {
	assert.Equal(t, "A@x.com", LoginEmailHint([]byte(`{"email":"A@x.com","senha":42}`)))
	assert.Empty(t, LoginEmailHint([]byte(`{"email":7}`)))
	assert.Empty(t, LoginEmailHint([]byte(`{"senha":"x"}`)))
	assert.Empty(t, LoginEmailHint([]byte(`{"email":`)))
	assert.Empty(t, LoginEmailHint([]byte(`[]`)))
}
