package domain

import "time"

// TargetDate pins delivery to a calendar day in the subscriber's timezone.
type TargetDate struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

func (d TargetDate) Validate() error {
	if d.Day < 1 || d.Day > 31 || d.Month < 1 || d.Month > 12 || d.Year < 1 {
		return ErrInvalidTargetDate
	}
	return nil
}

// BroadcastRequest describes one broadcast to every eligible subscriber
// matching TagName and SubscribersNewThan.
type BroadcastRequest struct {
	TemplateID  string         `json:"templateId"`
	StartSendAt time.Time      `json:"startSendAt"`
	TagName     string         `json:"tagName,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
	TargetDate  *TargetDate    `json:"targetDate,omitempty"`
	// TargetTime overrides every subscriber's own delivery time preference.
	TargetTime         *TimeOfDay `json:"targetTime,omitempty"`
	SubscribersNewThan *time.Time `json:"subscribersNewThan,omitempty"`
}

func (r BroadcastRequest) Filter() SubscriberFilter {
	return SubscriberFilter{TagName: r.TagName, NewerThan: r.SubscribersNewThan}
}
