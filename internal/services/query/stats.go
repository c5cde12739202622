package query

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/month"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// DefaultExpiringHorizon горизонт "скоро продление" в днях по умолчанию.
const DefaultExpiringHorizon = 30

// DueSoonDays окно "оплата в ближайшие дни", включая сегодняшний день.
const DueSoonDays = 3

// Bucket количество и суммарная стоимость группы подписок.
type Bucket struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

func (b *Bucket) add(sub *models.Subscription) {
	b.Count++
	b.Total = b.Total.Add(sub.Cost)
}

// FrequencyStats агрегаты по одной периодичности списания.
type FrequencyStats struct {
	Bucket
	Average decimal.Decimal `json:"average"`
}

// CategoryStats агрегаты по категории.
type CategoryStats struct {
	Category models.Category `json:"category"`
	Bucket
}

// Statistics сводка по набору подписок пользователя на момент вычисления.
type Statistics struct {
	TotalCount      int                    `json:"total_count"`
	TotalCost       decimal.Decimal        `json:"total_cost"`
	Monthly         FrequencyStats         `json:"monthly"`
	Annually        FrequencyStats         `json:"annually"`
	TotalPaid       decimal.Decimal        `json:"total_paid"`
	TotalUnpaid     decimal.Decimal        `json:"total_unpaid"`
	ExpiringSoon    []*models.Subscription `json:"expiring_soon"`
	UnpaidThisMonth Bucket                 `json:"unpaid_this_month"`
	DueSoon         Bucket                 `json:"due_soon"`
	Categories      []CategoryStats        `json:"categories"`
	HighestCost     *models.Subscription   `json:"highest_cost"`
	MostFrequent    models.Category        `json:"most_frequent_category"`
	LongestActive   *models.Subscription   `json:"longest_active"`
	// ActiveMonths полных месяцев с начала самой давней подписки.
	ActiveMonths    int                    `json:"longest_active_months"`
	ExpiringHorizon int                    `json:"expiring_horizon_days"`
	ReferenceDate   models.Date            `json:"reference_date"`
}

// Aggregate вычисляет сводку относительно момента now. Горизонт "скоро продление"
// задаётся в днях, неположительное значение заменяется DefaultExpiringHorizon.
// Просроченные продления попадают в ExpiringSoon.
func Aggregate(subs []*models.Subscription, now time.Time, horizonDays int) Statistics {
	if horizonDays <= 0 {
		horizonDays = DefaultExpiringHorizon
	}
	today := models.DateOf(now)
	horizon := today.AddDays(horizonDays)

	st := Statistics{
		TotalCost:       decimal.Zero,
		TotalPaid:       decimal.Zero,
		TotalUnpaid:     decimal.Zero,
		ExpiringSoon:    []*models.Subscription{},
		Categories:      []CategoryStats{},
		ExpiringHorizon: horizonDays,
		ReferenceDate:   today,
	}
	st.Monthly.Total = decimal.Zero
	st.Annually.Total = decimal.Zero
	st.UnpaidThisMonth.Total = decimal.Zero
	st.DueSoon.Total = decimal.Zero

	categoryIdx := make(map[models.Category]int)

	for _, sub := range subs {
		st.TotalCount++
		st.TotalCost = st.TotalCost.Add(sub.Cost)

		switch sub.BillingFrequency {
		case models.Monthly:
			st.Monthly.add(sub)
		case models.Annually:
			st.Annually.add(sub)
		}

		switch sub.IsActive {
		case models.Paid:
			st.TotalPaid = st.TotalPaid.Add(sub.Cost)
		case models.Unpaid:
			st.TotalUnpaid = st.TotalUnpaid.Add(sub.Cost)

			if month.Same(sub.StartDate.Time, today.Time) || month.Same(sub.RenewalDate.Time, today.Time) {
				st.UnpaidThisMonth.add(sub)
			}
			if days := today.DaysUntil(sub.RenewalDate); days >= 0 && days <= DueSoonDays {
				st.DueSoon.add(sub)
			}
		}

		if !sub.RenewalDate.After(horizon) {
			st.ExpiringSoon = append(st.ExpiringSoon, sub)
		}

		idx, ok := categoryIdx[sub.Category]
		if !ok {
			idx = len(st.Categories)
			categoryIdx[sub.Category] = idx
			st.Categories = append(st.Categories, CategoryStats{Category: sub.Category, Bucket: Bucket{Total: decimal.Zero}})
		}
		st.Categories[idx].add(sub)

		if st.HighestCost == nil || sub.Cost.GreaterThan(st.HighestCost.Cost) {
			st.HighestCost = sub
		}
		if st.LongestActive == nil || sub.StartDate.Before(st.LongestActive.StartDate) {
			st.LongestActive = sub
		}
	}

	if st.LongestActive != nil {
		st.ActiveMonths = month.Elapsed(st.LongestActive.StartDate.Time, today.Time)
	}
	st.Monthly.Average = average(st.Monthly.Bucket)
	st.Annually.Average = average(st.Annually.Bucket)

	best := 0
	for _, c := range st.Categories {
		if c.Count > best {
			best = c.Count
			st.MostFrequent = c.Category
		}
	}

	return st
}

func average(b Bucket) decimal.Decimal {
	if b.Count == 0 {
		return decimal.Zero
	}
	return b.Total.Div(decimal.NewFromInt(int64(b.Count))).Round(2)
}
