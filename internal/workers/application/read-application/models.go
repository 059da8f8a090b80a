package readapplication

import "soloparent-workers/internal/models"

type Input struct {
	ApplicationID  string `json:"applicationId"`
	IncludeHistory bool   `json:"includeHistory"`
}

type HistoryEntry struct {
	Action             string `json:"action"`
	Status             string `json:"status"`
	ErrorCode          string `json:"errorCode,omitempty"`
	RollbackIncomplete bool   `json:"rollbackIncomplete,omitempty"`
}

type Output struct {
	Application models.ApplicationView `json:"application"`
	Cached      bool                   `json:"cached"`
	History     []HistoryEntry         `json:"history,omitempty"`
}
