package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Inventory events
	EventStockReceived  = "inventory.stock.received"
	EventStockIssued    = "inventory.stock.issued"
	EventStockAdjusted  = "inventory.stock.adjusted"
	EventAlertGenerated = "inventory.alert.generated"
	EventAlertResolved  = "inventory.alert.resolved"

	// User events (consumed, published by the user service)
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
	ExchangeUserEvents      = "user.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Inventory events

// StockMovementEvent is published when stock is received, issued or adjusted
type StockMovementEvent struct {
	TransactionID string `json:"transaction_id"`
	Type          string `json:"type"`
	WarehouseID   string `json:"warehouse_id"`
	ProductCount  int    `json:"product_count"`
	TotalQuantity int    `json:"total_quantity"`
	PerformedBy   string `json:"performed_by"`
	DocumentCode  string `json:"document_code,omitempty"`
}

// AlertEvent is published when an alert is generated or resolved
type AlertEvent struct {
	AlertID   string `json:"alert_id"`
	AlertType string `json:"alert_type"`
	Severity  string `json:"severity"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	ProductID string `json:"product_id"`
	LotID     string `json:"lot_id,omitempty"`
}

// User events

// UserEvent carries the user fields the inventory service caches for
// attribution display names.
type UserEvent struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RoleName  string `json:"role_name"`
}

// FullName returns the user's full name
func (e *UserEvent) FullName() string {
	return e.FirstName + " " + e.LastName
}
