package model

import (
	"encoding/json"
	"time"
)

// Project is a saved project definition together with its last calculation
type Project struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	StartDate         string          `json:"project_start_date,omitempty"`
	Tasks             []ProjectTask   `json:"tasks"`
	FoundationResults json.RawMessage `json:"foundationResults,omitempty"`
	LastModified      time.Time       `json:"lastModified"`
}
