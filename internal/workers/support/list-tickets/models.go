package listtickets

import "soloparent-workers/internal/models"

type Input struct {
	AccountID string `json:"accountId"`
}

type Output struct {
	Tickets []models.TicketView `json:"tickets"`
	Count   int                 `json:"count"`
}
