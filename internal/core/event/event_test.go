package event

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttestationRequestedRoundTrip(t *testing.T) {
	ev := AttestationRequested{
		ID:            uuid.New(),
		RequestID:     "abc123",
		AttestationID: "att-1",
		Chain:         "ethereum",
	}

	msg, err := ev.Marshal()
	require.NoError(t, err)

	var got AttestationRequested
	require.NoError(t, got.Unmarshal(msg))
	assert.Equal(t, ev, got)
}
