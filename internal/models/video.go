package models

import "time"

// VideoStatus is the lifecycle of a video record.
type VideoStatus string

const (
	VideoProcessing VideoStatus = "processing"
	VideoProcessed  VideoStatus = "processed"
	VideoFailed     VideoStatus = "failed"
)

// Video is the status record for one uploaded video, keyed by the raw
// object's base name without extension.
type Video struct {
	ID              string      `json:"id"`
	RawObject       string      `json:"raw_object"`
	ProcessedObject string      `json:"processed_object,omitempty"`
	Status          VideoStatus `json:"status"`
	JobID           string      `json:"job_id,omitempty"`
	PublicURL       string      `json:"public_url,omitempty"`
	ErrorText       string      `json:"error,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}
