// Package query реализует фильтрацию, сортировку и агрегацию подписок пользователя.
//
// Все функции работают над срезом в памяти, не выполняют ввод-вывод и не изменяют
// входные данные. Момент времени "сейчас" передаётся явно.
package query

import (
	"strings"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// All значение фильтра, отключающее отбор по полю.
const All = "all"

// Criteria задаёт условия отбора. Пустые поля и значение All не участвуют в отборе.
type Criteria struct {
	Category           models.Category
	BillingFrequency   models.BillingFrequency
	IsActive           models.PaymentStatus
	SearchTerm         string
	StartDateFloor     *models.Date
	RenewalDateCeiling *models.Date
}

// RawCriteria условия отбора в том виде, в котором они приходят из запроса.
type RawCriteria struct {
	Category         string
	BillingFrequency string
	IsActive         string
	SearchTerm       string
	StartDateFloor   string
	RenewalDateCeil  string
}

func isAll(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, All)
}

// ParseCriteria проверяет сырые условия и приводит их к типизированному виду.
// Неизвестные значения перечислений отклоняются.
func ParseCriteria(raw RawCriteria) (Criteria, error) {
	var c Criteria
	verr := &apperr.ValidationError{}

	if !isAll(raw.Category) {
		cat, err := models.ParseCategory(raw.Category)
		if err != nil {
			verr.Add("category", err.Error())
		}
		c.Category = cat
	}
	if !isAll(raw.BillingFrequency) {
		f, err := models.ParseBillingFrequency(raw.BillingFrequency)
		if err != nil {
			verr.Add("billing_frequency", err.Error())
		}
		c.BillingFrequency = f
	}
	if !isAll(raw.IsActive) {
		p, err := models.ParsePaymentStatus(raw.IsActive)
		if err != nil {
			verr.Add("is_active", err.Error())
		}
		c.IsActive = p
	}
	if raw.StartDateFloor != "" {
		d, err := models.ParseDate(raw.StartDateFloor)
		if err != nil {
			verr.Add("start_from", err.Error())
		} else {
			c.StartDateFloor = &d
		}
	}
	if raw.RenewalDateCeil != "" {
		d, err := models.ParseDate(raw.RenewalDateCeil)
		if err != nil {
			verr.Add("renewal_to", err.Error())
		} else {
			c.RenewalDateCeiling = &d
		}
	}
	c.SearchTerm = strings.TrimSpace(raw.SearchTerm)

	if !verr.Empty() {
		return Criteria{}, verr
	}
	return c, nil
}

// Match сообщает, удовлетворяет ли подписка всем условиям.
func (c Criteria) Match(sub *models.Subscription) bool {
	if c.Category != "" && sub.Category != c.Category {
		return false
	}
	if c.BillingFrequency != "" && sub.BillingFrequency != c.BillingFrequency {
		return false
	}
	if c.IsActive != "" && sub.IsActive != c.IsActive {
		return false
	}
	if c.SearchTerm != "" && !strings.Contains(strings.ToLower(sub.Name), strings.ToLower(c.SearchTerm)) {
		return false
	}
	if c.StartDateFloor != nil && sub.StartDate.Before(*c.StartDateFloor) {
		return false
	}
	if c.RenewalDateCeiling != nil && sub.RenewalDate.After(*c.RenewalDateCeiling) {
		return false
	}
	return true
}

// Filter возвращает подписки, удовлетворяющие условиям, в исходном порядке.
func Filter(subs []*models.Subscription, c Criteria) []*models.Subscription {
	result := make([]*models.Subscription, 0, len(subs))
	for _, sub := range subs {
		if c.Match(sub) {
			result = append(result, sub)
		}
	}
	return result
}
