package domain

import "time"

// UploadTarget is a pre-authorized location a client can upload a file to.
type UploadTarget struct {
	Key       string
	UploadURL string
	PublicURL string
	ExpiresAt time.Time
}
