package domain

import "time"

// OutputRecord is one produced result image reference. Records live only for
// the current session; nothing is persisted.
type OutputRecord struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}
