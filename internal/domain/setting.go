package domain

// Names of rows in the settings table.
const (
	SettingBroadcastLock = "isDoingBroadcast"
	SettingLastSent      = "rssSender-LastSent"
)

// LastSent records the newest feed entry that was broadcast.
type LastSent struct {
	LastSentItemISO   string `json:"lastSentItemIso"`
	LastSentTimestamp int64  `json:"lastSentTimestamp"`
}
