package queue

import (
	"fmt"
	"strings"
)

// PushMessage is the broker payload for push execution. The worker re-reads
// the push row before running, so the message only carries identifiers.
type PushMessage struct {
	PushID        string `json:"pushId"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (m PushMessage) Validate() error {
	if strings.TrimSpace(m.PushID) == "" {
		return fmt.Errorf("pushId is required")
	}
	return nil
}
