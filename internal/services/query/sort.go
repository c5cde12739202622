package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// SortKey поле, по которому упорядочивается список.
type SortKey string

// Допустимые ключи сортировки.
const (
	SortByName             SortKey = "name"
	SortByCost             SortKey = "cost"
	SortByStartDate        SortKey = "start_date"
	SortByRenewalDate      SortKey = "renewal_date"
	SortByCategory         SortKey = "category"
	SortByBillingFrequency SortKey = "billing_frequency"
	SortByIsActive         SortKey = "is_active"
)

// Direction направление сортировки.
type Direction string

const (
	// Asc по возрастанию.
	Asc Direction = "asc"
	// Desc по убыванию.
	Desc Direction = "desc"
)

// ParseSortKey проверяет ключ сортировки. Пустая строка означает сортировку по имени.
func ParseSortKey(s string) (SortKey, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SortByName, nil
	}
	switch k := SortKey(s); k {
	case SortByName, SortByCost, SortByStartDate, SortByRenewalDate,
		SortByCategory, SortByBillingFrequency, SortByIsActive:
		return k, nil
	}
	return "", apperr.NewValidationError("sort", fmt.Sprintf("unknown sort key %q", s))
}

// ParseDirection проверяет направление сортировки. Пустая строка означает Asc.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Asc, nil
	case "desc", "descending":
		return Desc, nil
	}
	return "", apperr.NewValidationError("order", fmt.Sprintf("unknown sort direction %q", s))
}

func compareBy(key SortKey) func(a, b *models.Subscription) int {
	switch key {
	case SortByCost:
		return func(a, b *models.Subscription) int { return a.Cost.Cmp(b.Cost) }
	case SortByStartDate:
		return func(a, b *models.Subscription) int { return a.StartDate.Compare(b.StartDate.Time) }
	case SortByRenewalDate:
		return func(a, b *models.Subscription) int { return a.RenewalDate.Compare(b.RenewalDate.Time) }
	case SortByCategory:
		return func(a, b *models.Subscription) int { return strings.Compare(string(a.Category), string(b.Category)) }
	case SortByBillingFrequency:
		return func(a, b *models.Subscription) int {
			return strings.Compare(string(a.BillingFrequency), string(b.BillingFrequency))
		}
	case SortByIsActive:
		return func(a, b *models.Subscription) int { return strings.Compare(string(a.IsActive), string(b.IsActive)) }
	default:
		return func(a, b *models.Subscription) int { return strings.Compare(a.Name, b.Name) }
	}
}

// Sort возвращает отсортированную копию списка. Сортировка устойчивая:
// равные по ключу элементы сохраняют исходный порядок в обоих направлениях.
func Sort(subs []*models.Subscription, key SortKey, dir Direction) []*models.Subscription {
	result := append(make([]*models.Subscription, 0, len(subs)), subs...)
	cmp := compareBy(key)
	if dir == Desc {
		slices.SortStableFunc(result, func(a, b *models.Subscription) int { return cmp(b, a) })
		return result
	}
	slices.SortStableFunc(result, cmp)
	return result
}
