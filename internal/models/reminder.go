package models

import "fmt"

// Reminder напоминание о продлении, которое планировщик передаёт в очередь,
// а сервис отправки превращает в письмо.
type Reminder struct {
	UserID         string `json:"user_id"`
	SubscriptionID string `json:"subscription_id"`
	Name           string `json:"name"`
	RenewalDate    Date   `json:"renewal_date"`
	Message        string `json:"message"`
}

// NewReminder формирует напоминание для подписки.
func NewReminder(sub *Subscription) Reminder {
	return Reminder{
		UserID:         sub.OwnerID,
		SubscriptionID: sub.ID,
		Name:           sub.Name,
		RenewalDate:    sub.RenewalDate,
		Message: fmt.Sprintf("Your subscription \"%s\" is about to renew on %s.",
			sub.Name, sub.RenewalDate.String()),
	}
}
