package domain

const (
	QueueItemTypeSendEmail = "send email"
	PlacementQueued        = "queued"
)

// QueueItem is the work record consumed by the delivery worker. The field
// names are a contract with that consumer and must not change.
//
// RunAtModified is a tie-break sort key, not a timestamp.
type QueueItem struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	SubscriberID   string         `json:"subscriberId"`
	Subscriber     Subscriber     `json:"subscriber"`
	TemplateID     string         `json:"templateId"`
	Params         map[string]any `json:"params,omitempty"`
	TagReason      string         `json:"tagReason,omitempty"`
	QueuePlacement string         `json:"queuePlacement"`
	RunAt          int64          `json:"runAt"`
	RunAtModified  string         `json:"runAtModified"`
	Attempts       int            `json:"attempts"`
	Failed         bool           `json:"failed"`
	Completed      bool           `json:"completed"`
}

// BatchWriteResult reports the outcome of a batch write that did not fail
// outright. Unprocessed items were not written and may be resubmitted.
type BatchWriteResult struct {
	Written     int
	Unprocessed []*QueueItem
}
