package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyoez/blendconv/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		kind       types.NotificationKind
		token      string
		resourceId string
		status     string
	}{
		{name: "session assigned", raw: `{"connectionId":"c1"}`, kind: types.NotificationSessionAssigned, token: "c1"},
		{name: "completed", raw: `{"jobStatus":"completed","modelId":"m1"}`, kind: types.NotificationJobStatus, resourceId: "m1", status: "completed"},
		{name: "relayed job record carries connectionId", raw: `{"connectionId":"c1","jobStatus":"completed","modelId":"m1","jobId":"j1"}`, kind: types.NotificationJobStatus, resourceId: "m1", status: "completed"},
		{name: "pending", raw: `{"jobStatus":"pending"}`, kind: types.NotificationJobStatus, status: "pending"},
		{name: "empty object", raw: `{}`, kind: types.NotificationUnrecognized},
		{name: "unknown fields", raw: `{"message":"Forbidden"}`, kind: types.NotificationUnrecognized},
		{name: "bare string", raw: `"keepalive"`, kind: types.NotificationUnrecognized},
		{name: "array", raw: `[1,2]`, kind: types.NotificationUnrecognized},
		{name: "number", raw: `42`, kind: types.NotificationUnrecognized},
		{name: "null", raw: `null`, kind: types.NotificationUnrecognized},
		{name: "numeric connectionId", raw: `{"connectionId":7}`, kind: types.NotificationUnrecognized},
		{name: "non-string jobStatus falls through to connectionId", raw: `{"jobStatus":true,"connectionId":"c2"}`, kind: types.NotificationSessionAssigned, token: "c2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Classify([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, n.Kind)
			assert.Equal(t, tt.token, n.Token)
			assert.Equal(t, tt.resourceId, n.ResourceID)
			assert.Equal(t, tt.status, n.Status)
			assert.Equal(t, tt.raw, n.Raw)
		})
	}
}

func TestClassifyFailedCarriesError(t *testing.T) {
	n, err := Classify([]byte(`{"jobStatus":"failed","modelId":"m1","jobId":"j1","error":"blender crashed"}`))
	require.NoError(t, err)
	assert.Equal(t, types.NotificationJobStatus, n.Kind)
	assert.Equal(t, "j1", n.JobID)
	assert.Equal(t, types.JobStatusFailed, n.Status)
	assert.Equal(t, "blender crashed", n.Error)
}

func TestClassifyUnparseable(t *testing.T) {
	for _, raw := range []string{"hello", `{"connectionId":`, `{jobStatus:completed}`, ""} {
		n, err := Classify([]byte(raw))
		assert.ErrorIs(t, err, types.ErrProtocolDesync, raw)
		assert.Equal(t, types.NotificationUnrecognized, n.Kind)
		assert.Equal(t, raw, n.Raw)
	}
}

func TestEncodeInit(t *testing.T) {
	b, err := encodeInit()
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"init"}`, string(b))
}

func TestSignalFirstWins(t *testing.T) {
	s := newSignal[string]()
	_, ok := s.peek()
	assert.False(t, ok)

	assert.True(t, s.resolve("a"))
	assert.False(t, s.resolve("b"))

	v, ok := s.peek()
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	select {
	case <-s.ready():
	default:
		t.Fatal("ready channel should be closed after resolve")
	}
}
