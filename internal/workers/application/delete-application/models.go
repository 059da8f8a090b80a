package deleteapplication

type Input struct {
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	ApplicationID    string   `json:"applicationId"`
	Deleted          bool     `json:"deleted"`
	DocumentsDeleted int      `json:"documentsDeleted"`
	Warnings         []string `json:"warnings,omitempty"`
}
