package events

import "time"

const (
	CartSyncedEventName        = "CartSynced"
	NotificationShownEventName = "NotificationShown"
)

type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeDeclined Outcome = "declined"
)

// CartSynced describes one finished cart mutation as the client saw it.
type CartSynced struct {
	CorrelationID string    `json:"-"`
	Operation     string    `json:"operation"`
	ItemID        int64     `json:"itemId,omitempty"`
	ProductID     int64     `json:"productId,omitempty"`
	Quantity      *int      `json:"quantity,omitempty"`
	Outcome       Outcome   `json:"outcome"`
	ItemCount     int       `json:"itemCount"`
	CartTotal     string    `json:"cartTotal"`
	Error         string    `json:"error,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

type NotificationShown struct {
	NotificationID string    `json:"notificationId"`
	Message        string    `json:"message"`
	Severity       string    `json:"severity"`
	OccurredAt     time.Time `json:"occurredAt"`
}
