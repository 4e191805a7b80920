package hcw

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]string{
		"PENDING":              "proposed",
		"SENT":                 "pending",
		"ACCEPTED":             "booked",
		"SCHEDULED_FOR_INVITE": "booked",
		"COMPLETE":             "fulfilled",
		"CANCELED":             "cancelled",
		"UNDELIVERED":          "cancelled",
		"QUEUED":               "pending",
		"READ":                 "arrived",
		"booked":               "booked",
	}

	for in, want := range tests {
		assert.Equal(t, want, NormalizeStatus(in), in)
	}
}

func TestNormalizeAppointmentStatus_Resource(t *testing.T) {
	out := NormalizeAppointmentStatus([]byte(`{"resourceType":"Appointment","id":"1","status":"COMPLETE"}`))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "fulfilled", doc["status"])
	assert.Equal(t, "1", doc["id"])
}

func TestNormalizeAppointmentStatus_Bundle(t *testing.T) {
	in := `{"resourceType":"Bundle","entry":[
		{"resource":{"resourceType":"Appointment","status":"SENT"}},
		{"resource":{"resourceType":"Encounter","status":"SENT"}}]}`

	out := NormalizeAppointmentStatus([]byte(in))

	var doc struct {
		Entry []struct {
			Resource map[string]any `json:"resource"`
		} `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "pending", doc.Entry[0].Resource["status"])
	assert.Equal(t, "SENT", doc.Entry[1].Resource["status"])
}

func TestNormalizeAppointmentStatus_LeavesOtherBodiesAlone(t *testing.T) {
	in := []byte(`{"resourceType":"Encounter","status":"finished"}`)
	assert.Equal(t, in, NormalizeAppointmentStatus(in))

	garbage := []byte(`not json`)
	assert.Equal(t, garbage, NormalizeAppointmentStatus(garbage))
}
