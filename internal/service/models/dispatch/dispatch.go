package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is the dispatch lifecycle, separate from the order's own status.
type Status string

const (
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusAccepted       Status = "accepted"
	StatusPickedUp       Status = "picked_up"
	StatusDelivered      Status = "delivered"
)

var (
	ErrInvalidStatus      = errors.New("invalid dispatch status")
	ErrTransitionRejected = errors.New("dispatch transition rejected")
)

var next = map[Status]Status{
	StatusReadyForPickup: StatusAccepted,
	StatusAccepted:       StatusPickedUp,
	StatusPickedUp:       StatusDelivered,
}

// ParseStatus accepts canonical names with '-' or '_' in any case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch st {
	case StatusReadyForPickup, StatusAccepted, StatusPickedUp, StatusDelivered:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Previous returns the status a record must hold to move into s.
func (s Status) Previous() (Status, bool) {
	for from, to := range next {
		if to == s {
			return from, true
		}
	}

	return "", false
}

// CheckTransition allows only the single forward step; the same status is a no-op.
func CheckTransition(from, to Status) (noop bool, err error) {
	if from == to {
		return true, nil
	}
	if next[from] != to {
		return false, fmt.Errorf("%w: %s -> %s", ErrTransitionRejected, from, to)
	}

	return false, nil
}

// Record is a courier-assignable delivery task. At most one exists per order reference.
type Record struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty"            json:"id"`
	OrderRef              string             `bson:"order_ref"                json:"orderRef"`
	RestaurantName        string             `bson:"restaurant_name"          json:"restaurantName"`
	RestaurantLocation    string             `bson:"restaurant_location"      json:"restaurantLocation"`
	CustomerName          string             `bson:"customer_name"            json:"customerName"`
	CustomerPhone         string             `bson:"customer_phone"           json:"customerPhone"`
	DeliveryAddress       string             `bson:"delivery_address"         json:"deliveryAddress"`
	OrderAmount           int64              `bson:"order_amount"             json:"orderAmount"`
	DeliveryFee           int64              `bson:"delivery_fee"             json:"deliveryFee"`
	Distance              float64            `bson:"distance"                 json:"distance"`
	EstimatedDeliveryTime int                `bson:"estimated_delivery_time"  json:"estimatedDeliveryTime"`
	Status                Status             `bson:"status"                   json:"status"`
	CourierID             string             `bson:"courier_id,omitempty"     json:"courierId,omitempty"`
	CreatedAt             time.Time          `bson:"created_at"               json:"createdAt"`
	UpdatedAt             time.Time          `bson:"updated_at"               json:"updatedAt"`
	AcceptedAt            *time.Time         `bson:"accepted_at,omitempty"    json:"acceptedAt,omitempty"`
	PickedUpAt            *time.Time         `bson:"picked_up_at,omitempty"   json:"pickedUpAt,omitempty"`
	DeliveredAt           *time.Time         `bson:"delivered_at,omitempty"   json:"deliveredAt,omitempty"`
}

// Snapshot is the order data a dispatch record is built from.
type Snapshot struct {
	OrderRef              string  `json:"orderRef"              validate:"required"`
	RestaurantName        string  `json:"restaurantName"        validate:"required"`
	RestaurantLocation    string  `json:"restaurantLocation"    validate:"required"`
	CustomerName          string  `json:"customerName"          validate:"required"`
	CustomerPhone         string  `json:"customerPhone"`
	DeliveryAddress       string  `json:"deliveryAddress"       validate:"required"`
	OrderAmount           int64   `json:"orderAmount"           validate:"gte=0"`
	DeliveryFee           int64   `json:"deliveryFee"           validate:"gte=0"`
	Distance              float64 `json:"distance"              validate:"gte=0"`
	EstimatedDeliveryTime int     `json:"estimatedDeliveryTime" validate:"gte=0"`
}

// Defaults fill the snapshot fields the caller left zero.
type Defaults struct {
	DeliveryFee           int64
	EstimatedDeliveryTime int
}

// NewRecord builds a ready-for-pickup record from a snapshot.
func NewRecord(s Snapshot, d Defaults, now time.Time) Record {
	fee := s.DeliveryFee
	if fee == 0 {
		fee = d.DeliveryFee
	}
	eta := s.EstimatedDeliveryTime
	if eta == 0 {
		eta = d.EstimatedDeliveryTime
	}

	return Record{
		OrderRef:              s.OrderRef,
		RestaurantName:        s.RestaurantName,
		RestaurantLocation:    s.RestaurantLocation,
		CustomerName:          s.CustomerName,
		CustomerPhone:         s.CustomerPhone,
		DeliveryAddress:       s.DeliveryAddress,
		OrderAmount:           s.OrderAmount,
		DeliveryFee:           fee,
		Distance:              s.Distance,
		EstimatedDeliveryTime: eta,
		Status:                StatusReadyForPickup,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// Event is published to the dispatcher pool on every lifecycle change.
type Event struct {
	Type       string    `json:"type"`
	OrderRef   string    `json:"orderRef"`
	Status     Status    `json:"status"`
	CourierID  string    `json:"courierId,omitempty"`
	Record     Record    `json:"record"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Key identifies an event for publishers that did not set a message id, so
// redeliveries still collapse onto one row.
func (e Event) Key() string {
	return e.Type + ":" + e.OrderRef + ":" + strconv.FormatInt(e.OccurredAt.UnixNano(), 10)
}

// ErrMalformedEvent marks a feed message that can never be processed.
var ErrMalformedEvent = errors.New("malformed dispatch event")

// DecodeEvent parses a feed message. It must name an order and an event type.
func DecodeEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if ev.OrderRef == "" || ev.Type == "" {
		return Event{}, fmt.Errorf("%w: missing order reference or event type", ErrMalformedEvent)
	}

	return ev, nil
}

// EventType names the routing key for a status, e.g. "dispatch.created".
func EventType(s Status) string {
	if s == StatusReadyForPickup {
		return "dispatch.created"
	}

	return "dispatch." + string(s)
}

// QueryModel represents filter parameters for the dispatcher pool view.
type QueryModel struct {
	Status Status `schema:"status"`
	Limit  int    `schema:"limit"`
	Offset int    `schema:"offset"`
}
