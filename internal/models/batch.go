package models

import "time"

// BatchStatus represents the status of a conversion batch.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusConverting BatchStatus = "converting"
	BatchStatusComplete   BatchStatus = "complete"
	BatchStatusError      BatchStatus = "error"
	BatchStatusCancelled  BatchStatus = "cancelled"
)

// Terminal reports whether no further transitions can happen.
func (s BatchStatus) Terminal() bool {
	return s == BatchStatusComplete || s == BatchStatusError || s == BatchStatusCancelled
}

// Batch is a snapshot of one conversion run.
type Batch struct {
	ID          string             `json:"id" msgpack:"id"`
	Service     ServiceSelection   `json:"service" msgpack:"service"`
	Status      BatchStatus        `json:"status" msgpack:"status"`
	Files       []string           `json:"files" msgpack:"files"`
	Completed   int                `json:"completed" msgpack:"completed"`
	Progress    float64            `json:"progress" msgpack:"progress"` // 0-100
	Current     string             `json:"current,omitempty" msgpack:"current,omitempty"`
	Results     []ConversionResult `json:"results,omitempty" msgpack:"results,omitempty"`
	Error       string             `json:"error,omitempty" msgpack:"error,omitempty"`
	ErrorKind   string             `json:"errorKind,omitempty" msgpack:"errorKind,omitempty"`
	FailedFile  string             `json:"failedFile,omitempty" msgpack:"failedFile,omitempty"`
	CreatedAt   time.Time          `json:"createdAt" msgpack:"createdAt"`
	CompletedAt *time.Time         `json:"completedAt,omitempty" msgpack:"completedAt,omitempty"`
}
