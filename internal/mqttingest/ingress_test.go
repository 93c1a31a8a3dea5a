package mqttingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTopic(t *testing.T) {
	tenantID, vehicleID, err := parseTopic("tenant/school-42/vehicles/bus-7/telemetry")
	require.NoError(t, err)
	assert.Equal(t, "school-42", tenantID)
	assert.Equal(t, "bus-7", vehicleID)
}

func TestParseTopic_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		topic string
	}{
		{"wrong prefix", "fleet/school-42/vehicles/bus-7/telemetry"},
		{"wrong middle segment", "tenant/school-42/drivers/bus-7/telemetry"},
		{"wrong suffix", "tenant/school-42/vehicles/bus-7/status"},
		{"too few segments", "tenant/school-42/vehicles/telemetry"},
		{"too many segments", "tenant/school-42/vehicles/bus-7/telemetry/extra"},
		{"empty tenant", "tenant//vehicles/bus-7/telemetry"},
		{"empty vehicle", "tenant/school-42/vehicles//telemetry"},
		{"empty topic", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseTopic(tt.topic)
			assert.Error(t, err)
		})
	}
}

func TestNew_DefaultsTopic(t *testing.T) {
	in := New(Config{BrokerURL: "tcp://localhost:1883", ClientID: "test"}, nil, nil)
	assert.Equal(t, "tenant/+/vehicles/+/telemetry", in.cfg.Topic)
	assert.NotNil(t, in.client)
}
