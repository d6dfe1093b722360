package analytics

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"shoppersense/internal/models"
)

var ErrInvalidFilter = errors.New("invalid filter")

// ParseCriteria reads filter query parameters. Dates are UTC; a date-only
// endDate covers the whole day.
func ParseCriteria(q url.Values) (models.FilterCriteria, error) {
	c := models.FilterCriteria{
		Category: strings.TrimSpace(q.Get("category")),
		Location: strings.TrimSpace(q.Get("location")),
		Gender:   strings.TrimSpace(q.Get("gender")),
	}

	if v := strings.TrimSpace(q.Get("startDate")); v != "" {
		start, _, err := parseDate(v)
		if err != nil {
			return c, fmt.Errorf("%w: startDate %q: %v", ErrInvalidFilter, v, err)
		}
		c.StartDate = &start
	}

	if v := strings.TrimSpace(q.Get("endDate")); v != "" {
		end, dateOnly, err := parseDate(v)
		if err != nil {
			return c, fmt.Errorf("%w: endDate %q: %v", ErrInvalidFilter, v, err)
		}
		if dateOnly {
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
		c.EndDate = &end
	}

	if c.StartDate != nil && c.EndDate != nil && c.EndDate.Before(*c.StartDate) {
		return c, fmt.Errorf("%w: endDate before startDate", ErrInvalidFilter)
	}

	if v := strings.TrimSpace(q.Get("ageGroup")); v != "" {
		r, err := ParseAgeRange(v)
		if err != nil {
			return c, err
		}
		c.Age = &r
	}

	return c, nil
}

func parseDate(v string) (time.Time, bool, error) {
	if t, err := time.Parse(dayLayout, v); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, errors.New("want YYYY-MM-DD or RFC 3339")
	}
	return t.UTC(), false, nil
}

// ParseAgeRange accepts "min-max" or "min". A missing, zero or non-numeric max
// leaves the range open-ended.
func ParseAgeRange(s string) (models.AgeRange, error) {
	minPart, maxPart, _ := strings.Cut(strings.TrimSpace(s), "-")

	lo, err := strconv.Atoi(strings.TrimSpace(minPart))
	if err != nil || lo < 0 {
		return models.AgeRange{}, fmt.Errorf("%w: ageGroup %q: minimum must be a non-negative integer", ErrInvalidFilter, s)
	}

	r := models.AgeRange{Min: lo}
	if hi, err := strconv.Atoi(strings.TrimSpace(maxPart)); err == nil && hi != 0 {
		if hi < lo {
			return models.AgeRange{}, fmt.Errorf("%w: ageGroup %q: maximum below minimum", ErrInvalidFilter, s)
		}
		r.Max = &hi
	}
	return r, nil
}

// Matches reports whether tx satisfies every present criterion.
func Matches(c models.FilterCriteria, tx models.Transaction) bool {
	if c.Category != "" && tx.ProductCategory != c.Category {
		return false
	}
	if c.Location != "" && tx.Location != c.Location {
		return false
	}
	if c.Gender != "" && tx.Gender != c.Gender {
		return false
	}
	if c.StartDate != nil && tx.PurchaseDate.Before(*c.StartDate) {
		return false
	}
	if c.EndDate != nil && tx.PurchaseDate.After(*c.EndDate) {
		return false
	}
	if c.Age != nil {
		if tx.Age < c.Age.Min {
			return false
		}
		if c.Age.Max != nil && tx.Age > *c.Age.Max {
			return false
		}
	}
	return true
}

// Filter returns the matching rows in their original relative order.
func Filter(txs []models.Transaction, c models.FilterCriteria) []models.Transaction {
	out := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if Matches(c, tx) {
			out = append(out, tx)
		}
	}
	return out
}

// SortByDate returns a stably sorted copy; the input is left untouched.
func SortByDate(txs []models.Transaction, order models.SortOrder) []models.Transaction {
	out := slices.Clone(txs)
	switch order {
	case models.OldestFirst:
		slices.SortStableFunc(out, func(a, b models.Transaction) int {
			return a.PurchaseDate.Compare(b.PurchaseDate)
		})
	case models.NewestFirst:
		slices.SortStableFunc(out, func(a, b models.Transaction) int {
			return b.PurchaseDate.Compare(a.PurchaseDate)
		})
	}
	return out
}
