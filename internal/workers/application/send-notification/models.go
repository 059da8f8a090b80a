package sendnotification

import "soloparent-workers/internal/notify"

type Input struct {
	ApplicationID    string `json:"applicationId"`
	NotificationType string `json:"notificationType"`
}

type Output struct {
	NotificationID string            `json:"notificationId"`
	Status         string            `json:"status"` // "sent", "failed", "disabled"
	SentAt         string            `json:"sentAt"` // ISO 8601
	Deliveries     []notify.Delivery `json:"deliveries,omitempty"`
}

// contact is the part of the application form a notification needs.
type contact struct {
	GivenName    string `json:"Given_Name__c"`
	Email        string `json:"Email__c"`
	MobileNumber string `json:"Mobile_Number__c"`
}

var contactFields = []string{"Given_Name__c", "Email__c", "Mobile_Number__c"}
