package domain

import (
	"slices"
	"time"
)

// TimeOfDay is a local wall-clock hour and minute.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (t TimeOfDay) Validate() error {
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return ErrInvalidTimeOfDay
	}
	return nil
}

// DefaultDeliveryTime is used for subscribers with a timezone but no
// delivery time preference.
var DefaultDeliveryTime = TimeOfDay{Hour: 9, Minute: 30}

// Subscriber is a directory entry in the subscribers table.
type Subscriber struct {
	SubscriberID           string     `json:"subscriberId"`
	Email                  string     `json:"email"`
	Confirmed              bool       `json:"confirmed"`
	Unsubscribed           bool       `json:"unsubscribed"`
	Tags                   []string   `json:"tags,omitempty"`
	Timezone               string     `json:"timezone,omitempty"`
	DeliveryTimePreference *TimeOfDay `json:"deliveryTimePreference,omitempty"`
	Joined                 time.Time  `json:"joined"`
}

// Eligible reports whether the subscriber may receive broadcasts.
func (s Subscriber) Eligible() bool {
	return s.Confirmed && !s.Unsubscribed
}

func (s Subscriber) HasTag(tag string) bool {
	return slices.Contains(s.Tags, tag)
}

// SubscriberFilter narrows a subscriber scan. Eligibility is always applied;
// the zero value matches every eligible subscriber.
type SubscriberFilter struct {
	TagName   string
	NewerThan *time.Time
}

// Match evaluates the filter in memory. The PostgreSQL repository expresses
// the same predicate in SQL.
func (f SubscriberFilter) Match(s Subscriber) bool {
	if !s.Eligible() {
		return false
	}
	if f.TagName != "" && !s.HasTag(f.TagName) {
		return false
	}
	if f.NewerThan != nil && !s.Joined.After(*f.NewerThan) {
		return false
	}
	return true
}

// SubscriberPage is one page of a paginated scan. An empty NextToken means
// the scan is complete.
type SubscriberPage struct {
	Items     []Subscriber
	NextToken string
}
