package listapplications

import "soloparent-workers/internal/models"

type Input struct {
	Limit int `json:"limit"`
}

type Output struct {
	Applications []models.ApplicationView `json:"applications"`
	Count        int                      `json:"count"`
}
