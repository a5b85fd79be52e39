package archiveclient

import "time"

// ArchiveDescriptor is one entry of the upstream's GET /v0/list response.
type ArchiveDescriptor struct {
	Date    string    `json:"date"`
	URL     string    `json:"url"`
	Size    int64     `json:"size"`
	Updated time.Time `json:"updated"`
}

type listResponse struct {
	Archives []ArchiveDescriptor `json:"archives"`
}
