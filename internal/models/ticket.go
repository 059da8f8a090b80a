package models

// Ticket is a support request raised by an applicant.
type Ticket struct {
	AccountID    string `json:"accountId"`
	OwnerID      string `json:"ownerId,omitempty"`
	Type         string `json:"ticketType,omitempty"`
	Status       string `json:"ticketStatus,omitempty"`
	Subject      string `json:"ticketSubject"`
	Notes        string `json:"notes,omitempty"`
	ContactID    string `json:"contactId,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`
}

// CaseRecord is the Case sObject, used for both create and read.
type CaseRecord struct {
	ID            string `json:"Id,omitempty"`
	AccountID     string `json:"AccountId,omitempty"`
	OwnerID       string `json:"OwnerId,omitempty"`
	Type          string `json:"Type,omitempty"`
	Status        string `json:"Status,omitempty"`
	Subject       string `json:"Subject,omitempty"`
	Description   string `json:"Description,omitempty"`
	ContactID     string `json:"ContactId,omitempty"`
	SuppliedEmail string `json:"SuppliedEmail,omitempty"`
	Origin        string `json:"Origin,omitempty"`
	CaseNumber    string `json:"CaseNumber,omitempty"`
	CreatedDate   string `json:"CreatedDate,omitempty"`
}

// Case builds a web-origin case for the ticket.
func (t Ticket) Case() CaseRecord {
	return CaseRecord{
		AccountID:     t.AccountID,
		OwnerID:       t.OwnerID,
		Type:          t.Type,
		Status:        t.Status,
		Subject:       t.Subject,
		Description:   t.Notes,
		ContactID:     t.ContactID,
		SuppliedEmail: t.ContactEmail,
		Origin:        "Web",
	}
}

// TicketView is a case as returned to the process.
type TicketView struct {
	TicketID     string `json:"ticketId"`
	CreatedDate  string `json:"createdDate,omitempty"`
	Type         string `json:"type,omitempty"`
	Status       string `json:"status,omitempty"`
	Description  string `json:"description,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`
}

func (c CaseRecord) View() TicketView {
	return TicketView{
		TicketID:     c.CaseNumber,
		CreatedDate:  c.CreatedDate,
		Type:         c.Type,
		Status:       c.Status,
		Description:  c.Description,
		ContactEmail: c.SuppliedEmail,
	}
}
