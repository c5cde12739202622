// Package models содержит доменные структуры, описывающие подписку,
// а также вспомогательные типы для работы с данными из внешних источников (например, JSON-запросы).
package models

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// BillingFrequency периодичность списания.
type BillingFrequency string

const (
	// Monthly ежемесячная оплата.
	Monthly BillingFrequency = "monthly"
	// Annually ежегодная оплата.
	Annually BillingFrequency = "annually"
)

// ParseBillingFrequency проверяет значение периодичности.
func ParseBillingFrequency(s string) (BillingFrequency, error) {
	switch f := BillingFrequency(strings.ToLower(strings.TrimSpace(s))); f {
	case Monthly, Annually:
		return f, nil
	}
	return "", fmt.Errorf("unknown billing frequency %q", s)
}

// Category категория подписки.
type Category string

// Допустимые категории подписок.
const (
	CategoryCloudServices  Category = "cloud_services"
	CategoryMusic          Category = "music"
	CategoryStreaming      Category = "streaming"
	CategoryMarketingTools Category = "marketing_tools"
	CategorySoftware       Category = "software"
	CategoryOtherBills     Category = "other_bills"
)

// Categories возвращает все категории в каноническом порядке.
func Categories() []Category {
	return []Category{
		CategoryCloudServices,
		CategoryMusic,
		CategoryStreaming,
		CategoryMarketingTools,
		CategorySoftware,
		CategoryOtherBills,
	}
}

// ParseCategory проверяет категорию. Старые написания через пробел
// ("cloud services") приводятся к форме с подчёркиванием.
func ParseCategory(s string) (Category, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	for _, c := range Categories() {
		if Category(normalized) == c {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Label возвращает человеко-читаемое название категории.
func (c Category) Label() string {
	return strings.ReplaceAll(string(c), "_", " ")
}

// PaymentStatus статус оплаты подписки (поле is_active).
// Неоплаченная подписка по-прежнему считается действующей.
type PaymentStatus string

const (
	// Paid подписка оплачена.
	Paid PaymentStatus = "paid"
	// Unpaid подписка не оплачена.
	Unpaid PaymentStatus = "unpaid"
)

// ParsePaymentStatus проверяет статус оплаты.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch p := PaymentStatus(strings.ToLower(strings.TrimSpace(s))); p {
	case Paid, Unpaid:
		return p, nil
	}
	return "", fmt.Errorf("unknown payment status %q", s)
}

// Toggle возвращает противоположный статус.
func (p PaymentStatus) Toggle() PaymentStatus {
	if p == Paid {
		return Unpaid
	}
	return Paid
}

// Subscription представляет собой основную модель подписки,
// используемую в бизнес-логике и хранилище.
type Subscription struct {
	ID               string           `json:"id"`
	OwnerID          string           `json:"owner_id"`
	Name             string           `json:"name"`
	Cost             decimal.Decimal  `json:"cost"`
	BillingFrequency BillingFrequency `json:"billing_frequency"`
	Category         Category         `json:"category"`
	StartDate        Date             `json:"start_date"`
	RenewalDate      Date             `json:"renewal_date"`
	IsActive         PaymentStatus    `json:"is_active"`
	InvoiceRef       *string          `json:"invoice_ref"`
}

// HasInvoice сообщает, прикреплён ли к подписке файл счёта.
func (s *Subscription) HasInvoice() bool {
	return s.InvoiceRef != nil && *s.InvoiceRef != ""
}

// NormalizeDates отбрасывает у дат время и часовой пояс.
func (s *Subscription) NormalizeDates() {
	s.StartDate = DateOf(s.StartDate.Time)
	s.RenewalDate = DateOf(s.RenewalDate.Time)
}

// SubscriptionInput используется для приёма данных новой подписки из запроса,
// прежде чем конвертировать их в Subscription. Перечисления и даты приходят строками,
// чтобы их можно было проверить на границе.
type SubscriptionInput struct {
	Name             string           `json:"name" validate:"required"`
	Cost             *decimal.Decimal `json:"cost" validate:"required"`
	BillingFrequency string           `json:"billing_frequency" validate:"required"`
	Category         string           `json:"category" validate:"required"`
	StartDate        string           `json:"start_date" validate:"required"`
	RenewalDate      string           `json:"renewal_date" validate:"required"`
	IsActive         string           `json:"is_active" validate:"required"`
}

// SubscriptionPatch описывает частичное обновление. Пустые и нулевые поля
// не меняют сохранённое значение.
type SubscriptionPatch struct {
	Name             string           `json:"name,omitempty"`
	Cost             *decimal.Decimal `json:"cost,omitempty"`
	BillingFrequency string           `json:"billing_frequency,omitempty"`
	Category         string           `json:"category,omitempty"`
	StartDate        string           `json:"start_date,omitempty"`
	RenewalDate      string           `json:"renewal_date,omitempty"`
	IsActive         string           `json:"is_active,omitempty"`
}

// Upload загруженный пользователем файл счёта.
type Upload struct {
	Filename string
	Content  io.Reader
}
