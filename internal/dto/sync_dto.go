package dto

import "time"

type SyncStatusResponse struct {
	StoreID      string     `json:"storeId"`
	LastSyncedAt *time.Time `json:"lastSyncedAt"`
	ShouldSync   bool       `json:"shouldSync"`
	Pending      int        `json:"pending"`
	Failed       int        `json:"failed"`
	QueuedWrites int64      `json:"queuedWrites"`
	DeadLetters  int64      `json:"deadLetters"`
}

type RetryFailedResponse struct {
	Requeued int `json:"requeued"`
}
