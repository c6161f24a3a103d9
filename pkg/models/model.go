package models

import "time"

// Entity is a named-entity span recovered from a token-classification model.
type Entity struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	StartToken int     `json:"start_token"`
	EndToken   int     `json:"end_token"`
	Confidence float64 `json:"confidence"`
}

// Timings holds per-phase durations of one pipeline run
type Timings struct {
	Tokenize time.Duration
	Run      time.Duration
	Decode   time.Duration
}

// ModelRecord describes a locally fetched model in the catalog
type ModelRecord struct {
	ID           string
	Repo         string
	Task         string
	Revision     string
	Path         string
	SizeBytes    int64
	SHA          string
	DownloadedAt time.Time
}

// RepoFile is a single file in a hub repository tree
type RepoFile struct {
	Path string `json:"path"`
	Type string `json:"type"` // "file" or "directory"
	Size int64  `json:"size"`
	LFS  *LFS   `json:"lfs,omitempty"`
}

// LFS carries the large-file pointer metadata for a repo file
type LFS struct {
	OID  string `json:"oid"` // sha256 of the blob
	Size int64  `json:"size"`
}

// RepoInfo is the subset of hub model metadata the fetcher needs
type RepoInfo struct {
	ID       string    `json:"id"`
	SHA      string    `json:"sha"`
	Siblings []Sibling `json:"siblings"`
}

// Sibling is a file entry in the hub's model-info response
type Sibling struct {
	Rfilename string `json:"rfilename"`
}
