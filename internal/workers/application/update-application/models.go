package updateapplication

import "soloparent-workers/internal/models"

type Input struct {
	ApplicationID string           `json:"applicationId"`
	PersonalInfo  models.Applicant `json:"personalInfo"`
}

type Output struct {
	ApplicationID string   `json:"applicationId"`
	UpdatedFields []string `json:"updatedFields"`
}
