package searchapplications

import "soloparent-workers/internal/search"

type Input struct {
	Query       string `json:"query"`
	CivilStatus string `json:"civilStatus,omitempty"`
	From        int    `json:"from,omitempty"`
	Size        int    `json:"size,omitempty"`
}

type Output struct {
	Results []search.Hit `json:"results"`
	Total   int          `json:"total"`
}
