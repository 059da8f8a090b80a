package submitapplication

import (
	"encoding/json"

	"soloparent-workers/internal/models"
)

type Input struct {
	PersonalInfo      models.Applicant           `json:"personalInfo"`
	FamilyComposition []models.FamilyMember      `json:"familyComposition"`
	Attachments       map[string]json.RawMessage `json:"attachments"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	SubmissionStatus  string `json:"submissionStatus"`
	FamilyMemberCount int    `json:"familyMemberCount"`
	AttachmentCount   int    `json:"attachmentCount"`
}
