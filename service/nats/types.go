package nats

import (
	"fmt"
	"time"

	"github.com/brojonat/quorum/service/multisig"
	"github.com/google/uuid"
)

// StatusChangeEvent is published to "multisig.{account}" in JetStream whenever
// a reconciliation derives a different status for a transaction than the
// last one that was recorded.
type StatusChangeEvent struct {
	EventID string `json:"event_id"`

	Account       string           `json:"account"`
	TransactionID string           `json:"transaction_id"`
	Type          multisig.TypeTag `json:"type"`
	Title         string           `json:"title"`
	Subtitle      string           `json:"subtitle,omitempty"`

	// PreviousStatus is empty the first time a transaction is seen.
	PreviousStatus multisig.Status `json:"previous_status,omitempty"`
	Status         multisig.Status `json:"status"`
	CanExecute     bool            `json:"can_execute"`
	Approvals      int             `json:"approvals"`
	Required       int             `json:"required"`

	PublishedAt time.Time `json:"published_at"`
}

// Subject returns the subject the event is published on.
func (e *StatusChangeEvent) Subject() string {
	return SubjectFor(e.Account)
}

// SubjectFor returns the subject carrying status changes of account.
func SubjectFor(account string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, multisig.NormalizeAddress(account))
}

// FromRecord converts a display record into a StatusChangeEvent for publishing.
func FromRecord(account string, rec multisig.Record, previous multisig.Status) *StatusChangeEvent {
	return &StatusChangeEvent{
		EventID:        uuid.NewString(),
		Account:        multisig.NormalizeAddress(account),
		TransactionID:  rec.ID(),
		Type:           rec.Transaction.Type,
		Title:          rec.Title,
		Subtitle:       rec.Subtitle,
		PreviousStatus: previous,
		Status:         rec.Status,
		CanExecute:     rec.CanExecute,
		Approvals:      rec.Approvals,
		Required:       rec.Required,
		PublishedAt:    time.Now().UTC(),
	}
}
