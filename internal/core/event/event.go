package event

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/verichain-labs/verification-node/internal/pubsub"
)

// Pubsub topics
const (
	AttestationRequestedEvent = "attestationRequestedEvent" // AttestationRequestedEvent attestation forwarded to the oracle
	RequestVerifiedEvent      = "requestVerifiedEvent"      // RequestVerifiedEvent request fulfilled and certificate minted
	RequestFailedEvent        = "requestFailedEvent"        // RequestFailedEvent request marked failed by an oracle
)

// AttestationRequested defines the attestationRequested data
type AttestationRequested struct {
	ID            uuid.UUID `json:"id"`
	RequestID     string    `json:"requestID"`
	AttestationID string    `json:"attestationID"`
	Chain         string    `json:"chain"`
}

// Marshal marshals the event into a pubsub.Message
func (ev *AttestationRequested) Marshal() (msg pubsub.Message, err error) {
	return json.Marshal(ev)
}

// Unmarshal creates an event from that message
func (ev *AttestationRequested) Unmarshal(msg pubsub.Message) error {
	return json.Unmarshal(msg, &ev)
}

// RequestVerified defines the requestVerified data
type RequestVerified struct {
	ID        uuid.UUID `json:"id"`
	RequestID string    `json:"requestID"`
	TokenID   string    `json:"tokenID"`
	Chain     string    `json:"chain"`
}

// Marshal marshals the event into a pubsub.Message
func (ev *RequestVerified) Marshal() (msg pubsub.Message, err error) {
	return json.Marshal(ev)
}

// Unmarshal creates an event from that message
func (ev *RequestVerified) Unmarshal(msg pubsub.Message) error {
	return json.Unmarshal(msg, &ev)
}

// RequestFailed defines the requestFailed data
type RequestFailed struct {
	ID        uuid.UUID `json:"id"`
	RequestID string    `json:"requestID"`
	Reason    string    `json:"reason"`
	Chain     string    `json:"chain"`
}

// Marshal marshals the event into a pubsub.Message
func (ev *RequestFailed) Marshal() (msg pubsub.Message, err error) {
	return json.Marshal(ev)
}

// Unmarshal creates an event from that message
func (ev *RequestFailed) Unmarshal(msg pubsub.Message) error {
	return json.Unmarshal(msg, &ev)
}
