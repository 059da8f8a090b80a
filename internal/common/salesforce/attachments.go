package salesforce

import (
	"context"
	"encoding/base64"
	"fmt"
)

// Upload is one file to store as a ContentVersion.
type Upload struct {
	Title   string
	Data    []byte
	OwnerID string
}

type contentVersion struct {
	Title        string `json:"Title"`
	PathOnClient string `json:"PathOnClient"`
	VersionData  string `json:"VersionData"`
	OwnerID      string `json:"OwnerId,omitempty"`
}

type contentDocumentLink struct {
	ContentDocumentID string `json:"ContentDocumentId"`
	LinkedEntityID    string `json:"LinkedEntityId"`
	ShareType         string `json:"ShareType"`
	Visibility        string `json:"Visibility"`
}

// PartialUploadError means the ContentVersion was created but its ContentDocumentId could not be
// read, so the caller cannot address the document for linking or deletion.
type PartialUploadError struct {
	VersionID string
	Err       error
}

func (e *PartialUploadError) Error() string {
	return fmt.Sprintf("content version %s created but document id unavailable: %v", e.VersionID, e.Err)
}

func (e *PartialUploadError) Unwrap() error { return e.Err }

// UploadAttachment stores the file and returns its ContentDocumentId.
func (c *Client) UploadAttachment(ctx context.Context, u Upload) (string, error) {
	versionID, err := c.Create(ctx, "ContentVersion", contentVersion{
		Title:        u.Title,
		PathOnClient: u.Title,
		VersionData:  base64.StdEncoding.EncodeToString(u.Data),
		OwnerID:      u.OwnerID,
	})
	if err != nil {
		return "", err
	}

	var version struct {
		ContentDocumentID string `json:"ContentDocumentId"`
	}
	if err := c.Retrieve(ctx, "ContentVersion", versionID, []string{"ContentDocumentId"}, &version); err != nil {
		return "", &PartialUploadError{VersionID: versionID, Err: err}
	}
	if version.ContentDocumentID == "" {
		return "", &PartialUploadError{VersionID: versionID, Err: fmt.Errorf("empty ContentDocumentId")}
	}
	return version.ContentDocumentID, nil
}

// LinkAttachment shares a document with a record and returns the ContentDocumentLink id.
func (c *Client) LinkAttachment(ctx context.Context, documentID, entityID string) (string, error) {
	return c.Create(ctx, "ContentDocumentLink", contentDocumentLink{
		ContentDocumentID: documentID,
		LinkedEntityID:    entityID,
		ShareType:         "V",
		Visibility:        "AllUsers",
	})
}

// DocumentLinks lists the ContentDocumentLink rows of a record.
func (c *Client) DocumentLinks(ctx context.Context, entityID string) ([]DocumentLink, error) {
	if !ValidID(entityID) {
		return nil, fmt.Errorf("invalid record id %q", entityID)
	}
	var links []DocumentLink
	soql := "SELECT Id, ContentDocumentId FROM ContentDocumentLink WHERE LinkedEntityId = " + QuoteString(entityID)
	if err := c.Query(ctx, soql, &links); err != nil {
		return nil, err
	}
	return links, nil
}

// DocumentLink is a row of DocumentLinks.
type DocumentLink struct {
	ID                string `json:"Id"`
	ContentDocumentID string `json:"ContentDocumentId"`
}
