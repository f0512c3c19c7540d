package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActivityCode(t *testing.T) {
	assert.True(t, ActivityLying.IsPosture())
	assert.True(t, ActivityActive.IsPosture())
	assert.False(t, ActivityFall.IsPosture())
	assert.True(t, ActivityFall.IsFall())
	assert.False(t, ActivityCode(0).IsPosture())
	assert.Equal(t, "sitting", ActivitySitting.String())
	assert.Equal(t, "unknown", ActivityCode(9).String())
}

func TestActivitySegment_Duration(t *testing.T) {
	start := time.Date(2025, 3, 21, 6, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	open := ActivitySegment{StartedAt: start}
	assert.True(t, open.IsOpen())
	assert.Equal(t, time.Hour, open.Duration(start.Add(time.Hour)))

	closed := ActivitySegment{StartedAt: start, EndedAt: &end}
	assert.False(t, closed.IsOpen())
	assert.Equal(t, 30*time.Minute, closed.Duration(start.Add(5*time.Hour)))
}

func TestEmergencyContact_Descriptor(t *testing.T) {
	c := EmergencyContact{FirstName: "Anna", LastName: "Berg", PhoneNumber: "+491701234567"}
	assert.Equal(t, "Anna Berg", c.FullName())
	assert.Equal(t, "Anna Berg (+491701234567)", c.Descriptor())
}
