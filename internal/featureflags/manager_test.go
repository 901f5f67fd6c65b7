package featureflags

import (
	"testing"

	"confessional/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	assert.True(t, m.Enabled("a", 1))
	assert.True(t, m.Enabled("c", 1))
	assert.True(t, m.Enabled("e", 1))
	assert.False(t, m.Enabled("b", 1))
	assert.False(t, m.Enabled("d", 1))
	assert.False(t, m.Enabled("f", 1))
	assert.False(t, m.Enabled("missing", 1))
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%")

	assert.True(t, m.Enabled("always", 1))
	assert.False(t, m.Enabled("never", 1))

	// platform ids are large; the bucket must stay stable for them
	const userID int64 = 7001310702
	first := m.Enabled("canary", userID)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", userID))
	}
	assert.False(t, m.Enabled("canary", 0), "percentage rollout requires a user")
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off ")

	raw := m.Raw()
	assert.Equal(t, map[string]string{"x": "on", "y": "20%", "z": "off"}, raw)
	assert.Len(t, m.Snapshot(123), 3)
}

func TestNilManagerIsOff(t *testing.T) {
	var m *Manager
	assert.False(t, m.Enabled(ChatRequests, 1))
	assert.True(t, NewManager("CHAT_REQUESTS=ON").Enabled(ChatRequests, 1))
}

func TestRequire(t *testing.T) {
	m := NewManager("chat_requests=off")
	err := m.Require(ChatRequests, 5)
	assert.Equal(t, models.CodeForbidden, models.ErrorCode(err))
	assert.EqualError(t, err, "chat requests is not available right now")
	assert.NoError(t, NewManager("chat_requests=on").Require(ChatRequests, 5))
}

func TestMalformedValuesAreDropped(t *testing.T) {
	m := NewManager("a=maybe,b=ten%,c=150%,d=-5%")
	assert.Equal(t, map[string]string{"c": "150%", "d": "-5%"}, m.Raw())
	assert.True(t, m.Enabled("c", 1))
	assert.False(t, m.Enabled("d", 1))
	assert.False(t, m.Enabled("a", 1))
}

func TestRolloutIsRoughlyProportional(t *testing.T) {
	m := NewManager("canary=30%")
	on := 0
	for id := int64(1); id <= 2000; id++ {
		if m.Enabled("canary", id) {
			on++
		}
	}
	assert.InDelta(t, 600, on, 150)
}
