package createticket

import "soloparent-workers/internal/models"

type Input struct {
	models.Ticket
}

type Output struct {
	CaseID     string `json:"caseId"`
	CaseNumber string `json:"caseNumber,omitempty"`
}
