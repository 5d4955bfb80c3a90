package fetcher

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_MarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		expected string
	}{
		{
			name:     "ok with object",
			result:   Ok(map[string]any{"rating": float64(1500)}),
			expected: `{"success": true, "data": {"rating": 1500}}`,
		},
		{
			name:     "ok with null payload keeps data",
			result:   Ok(nil),
			expected: `{"success": true, "data": null}`,
		},
		{
			name:     "remote error",
			result:   Fail(&Error{Kind: RemoteError, StatusCode: 404}),
			expected: `{"success": false, "error": "API request failed with status 404"}`,
		},
		{
			name:     "transport error",
			result:   Fail(&Error{Kind: TransportError, Err: errors.New("dial tcp: connection refused")}),
			expected: `{"success": false, "error": "Request error: dial tcp: connection refused"}`,
		},
		{
			name:     "nil failure is still an error",
			result:   Fail(nil),
			expected: `{"success": false, "error": "Unexpected error: failure without error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.result.Envelope())
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
		})
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	data, err := json.Marshal(Ok(map[string]any{"rating": float64(1500)}).Envelope())
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Success)
	assert.Equal(t, map[string]any{"rating": float64(1500)}, decoded.Data)
	assert.Empty(t, decoded.Error)
}

func TestFailure(t *testing.T) {
	data, err := json.Marshal(Failure("plugin is not ready"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": false, "error": "plugin is not ready"}`, string(data))
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "transport_error", TransportError.String())
	assert.Equal(t, "remote_error", RemoteError.String())
	assert.Equal(t, "malformed_response", MalformedResponse.String())
	assert.Equal(t, "internal_error", InternalError.String())
	assert.Equal(t, "unknown_error(0)", ErrorKind(0).String())
}

func TestResult_ZeroValueIsNotOk(t *testing.T) {
	var r Result
	assert.False(t, r.IsOk())
	assert.False(t, r.Envelope().Success)
	assert.NotEmpty(t, r.Envelope().Error)
}
