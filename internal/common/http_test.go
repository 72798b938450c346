package common

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		name      string
		forwarded string
		realIP    string
		remote    string
		want      string
	}{
		{name: "first forwarded hop", forwarded: "203.0.113.9, 10.0.0.1", remote: "10.0.0.2:443", want: "203.0.113.9"},
		{name: "forwarded with port", forwarded: "198.51.100.7:5050", remote: "10.0.0.2:443", want: "198.51.100.7"},
		{name: "garbage forwarded falls through", forwarded: "unknown", realIP: "192.0.2.4", remote: "10.0.0.2:443", want: "192.0.2.4"},
		{name: "ipv6 real ip", realIP: "[2001:db8::1]", remote: "10.0.0.2:443", want: "2001:db8::1"},
		{name: "remote addr", remote: "192.0.2.10:1234", want: "192.0.2.10"},
		{name: "remote without port", remote: "192.0.2.11", want: "192.0.2.11"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/checkout/quote", nil)
			req.RemoteAddr = tc.remote
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			require.Equal(t, tc.want, ClientIP(req))
		})
	}
	require.Empty(t, ClientIP(nil))
}

func TestJSONErrorShape(t *testing.T) {
	rr := httptest.NewRecorder()
	JSONError(rr, http.StatusUnprocessableEntity, CodeUnresolvedPolicy, "promotion <vip> not found", map[string]string{"promotionId": "vip"})

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Body.String(), "<vip>")

	var body struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, CodeUnresolvedPolicy, body.Error.Code)
	require.Equal(t, "promotion <vip> not found", body.Error.Message)
	require.Equal(t, map[string]any{"promotionId": "vip"}, body.Error.Details)
}
