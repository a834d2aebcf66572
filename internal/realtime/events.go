// Package realtime pushes slot capacity changes to connected clients.
//
// Clients subscribe to topics keyed by (date, serviceId) or (date, "all").
// Delivery is best effort: there is no replay, and a slow client loses
// messages instead of slowing down everybody else.  Clients re-sync through
// GET /v1/slots after reconnecting.
package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/iliyamo/slot-booking/internal/model"
)

const (
	EventSubscribe        = "subscribe-slots"
	EventUnsubscribe      = "unsubscribe-slots"
	EventSlotUpdate       = "slot-update"
	EventBookingConfirmed = "booking-confirmed"
	EventError            = "error"

	// AllServices is the service key of the per-date catch-all topic.
	AllServices = "all"
)

// Topic is a subscription group.
type Topic struct {
	Date    string
	Service string
}

func ServiceTopic(date string, serviceID uint64) Topic {
	return Topic{Date: date, Service: strconv.FormatUint(serviceID, 10)}
}

func AllTopic(date string) Topic { return Topic{Date: date, Service: AllServices} }

func (t Topic) String() string { return t.Date + "/" + t.Service }

// Message is the frame exchanged over the socket in both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewMessage(event string, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Event: event, Data: raw}, nil
}

func errorMessage(text string) Message {
	m, _ := NewMessage(EventError, map[string]string{"message": text})
	return m
}

// SlotUpdate is the public capacity delta.  Available is computed from the
// committed state.
type SlotUpdate struct {
	SlotID      uint64    `json:"slotId"`
	Available   bool      `json:"available"`
	BookedCount int       `json:"bookedCount"`
	Capacity    int       `json:"capacity"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewSlotUpdate(s model.Slot, at time.Time) SlotUpdate {
	return SlotUpdate{
		SlotID:      s.ID,
		Available:   s.Available(),
		BookedCount: s.BookedCount,
		Capacity:    s.Capacity,
		Timestamp:   at.UTC(),
	}
}

// BookingNotice is sent privately to the user who booked.
type BookingNotice struct {
	Service  string `json:"service"`
	Date     string `json:"date"`
	Provider string `json:"provider"`
}

// ServiceKey accepts a service id as a JSON number or string, or "all".
type ServiceKey string

func (k *ServiceKey) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*k = ServiceKey(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*k = ServiceKey(n.String())
	return nil
}

// SubscribeRequest is the payload of subscribe-slots and unsubscribe-slots.
type SubscribeRequest struct {
	Date      string     `json:"date"`
	ServiceID ServiceKey `json:"serviceId"`
}

// Topic validates the request and returns the topic it names.
func (r SubscribeRequest) Topic() (Topic, error) {
	if _, err := model.ParseDate(r.Date); err != nil {
		return Topic{}, fmt.Errorf("date must be YYYY-MM-DD")
	}
	svc := string(r.ServiceID)
	if svc == AllServices {
		return AllTopic(r.Date), nil
	}
	id, err := strconv.ParseUint(svc, 10, 64)
	if err != nil || id == 0 {
		return Topic{}, fmt.Errorf("serviceId must be a positive integer or %q", AllServices)
	}
	return ServiceTopic(r.Date, id), nil
}
