package model

import "time"

const (
	AnalysisStatusOK     = "ok"
	AnalysisStatusFailed = "failed"

	// MaxFileNameLen matches the file_name column; longer names are cut.
	MaxFileNameLen = 256
)

// AnalysisRecord is the audit row written for every analyze request.
type AnalysisRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Subject        string    `gorm:"size:128;not null;index" json:"subject"`
	Task           string    `gorm:"size:64;not null" json:"task"`
	FileName       string    `gorm:"size:256" json:"file_name"`
	SnippetName    string    `gorm:"size:300" json:"snippet_name,omitempty"`
	OutputLanguage string    `gorm:"size:64" json:"output_language"`
	Status         string    `gorm:"size:16;not null;index" json:"status"`
	Error          string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
