package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"shoppersense/internal/models"
)

const (
	batchSize  = 10000
	maxWorkers = 10
)

var (
	ErrMissingColumns = errors.New("missing essential columns")
	ErrNoValidRows    = errors.New("no valid records found")
)

// Columns are the canonical transaction fields a CSV header can map to.
var Columns = []string{
	"customer_id", "age", "gender", "location", "product_category",
	"product_name", "purchase_amount", "quantity", "purchase_date", "payment_method",
}

var essential = []string{"customer_id", "product_name", "purchase_amount"}

var headerAliases = map[string]string{
	"customer id":           "customer_id",
	"customerid":            "customer_id",
	"cust id":               "customer_id",
	"sex":                   "gender",
	"city":                  "location",
	"address":               "location",
	"category":              "product_category",
	"product category":      "product_category",
	"item purchased":        "product_name",
	"product":               "product_name",
	"product name":          "product_name",
	"item":                  "product_name",
	"purchase amount (usd)": "purchase_amount",
	"purchase amount":       "purchase_amount",
	"amount":                "purchase_amount",
	"price":                 "purchase_amount",
	"payment method":        "payment_method",
	"payment":               "payment_method",
	"qty":                   "quantity",
	"purchase date":         "purchase_date",
	"date":                  "purchase_date",
	"timestamp":             "purchase_date",
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006",
}

// NormalizeHeader maps a raw CSV header onto a canonical column, or returns
// "" when the header is not a known transaction field. Headers are NFKC
// normalised and case folded, so "Purchase Amount (USD)" and
// "ＰＵＲＣＨＡＳＥ_ＡＭＯＵＮＴ" both resolve.
func NormalizeHeader(h string) string {
	s := cases.Fold().String(norm.NFKC.String(strings.TrimSpace(h)))
	s = strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-'
	}), " ")

	if col, ok := headerAliases[s]; ok {
		return col
	}
	if col := strings.ReplaceAll(s, " ", "_"); slices.Contains(Columns, col) {
		return col
	}
	return ""
}

// Result is the outcome of one CSV read. Columns maps each recognised raw
// header to its canonical name; Skipped counts rows that failed validation.
type Result struct {
	Transactions []models.Transaction
	Columns      map[string]string
	Skipped      int
}

type parsedRow struct {
	tx    models.Transaction
	valid bool
}

// ReadCSV parses transaction rows, fanning each batch out over a bounded
// worker group. Row order is preserved. Unrecognised columns land in the
// transaction's Metadata. Malformed lines are skipped; errors from r abort.
func ReadCSV(ctx context.Context, r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	mapping := make([]string, len(headers))
	res := &Result{Columns: make(map[string]string)}
	for i, h := range headers {
		if col := NormalizeHeader(h); col != "" {
			mapping[i] = col
			res.Columns[h] = col
		}
	}

	var missing []string
	for _, col := range essential {
		if !slices.Contains(mapping, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	batch := make([][]string, 0, batchSize)
	flush := func() error {
		parsed, err := parseBatch(ctx, batch, headers, mapping)
		if err != nil {
			return err
		}
		for _, p := range parsed {
			if p.valid {
				res.Transactions = append(res.Transactions, p.tx)
			} else {
				res.Skipped++
			}
		}
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			res.Skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if isBlank(record) {
			continue
		}

		batch = append(batch, record)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return nil, err
		}
	}

	if len(res.Transactions) == 0 {
		return nil, ErrNoValidRows
	}
	return res, nil
}

func parseBatch(ctx context.Context, batch [][]string, headers, mapping []string) ([]parsedRow, error) {
	out := make([]parsedRow, len(batch))

	var g errgroup.Group
	g.SetLimit(maxWorkers)
	for i, record := range batch {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tx, err := parseRecord(record, headers, mapping)
			out[i] = parsedRow{tx: tx, valid: err == nil}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseRecord(record, headers, mapping []string) (models.Transaction, error) {
	// casers are stateful; each worker needs its own
	titler := cases.Title(language.English)
	tx := models.Transaction{Quantity: 1}

	for i, raw := range record {
		value := strings.TrimSpace(raw)
		if i >= len(mapping) || mapping[i] == "" {
			if i < len(headers) && value != "" {
				if tx.Metadata == nil {
					tx.Metadata = make(map[string]any)
				}
				tx.Metadata[headers[i]] = value
			}
			continue
		}

		var err error
		switch mapping[i] {
		case "customer_id":
			tx.CustomerID = value
		case "age":
			tx.Age, err = parseAge(value)
		case "gender":
			tx.Gender = titler.String(value)
		case "location":
			tx.Location = value
		case "product_category":
			tx.ProductCategory = titler.String(value)
		case "product_name":
			tx.ProductName = value
		case "purchase_amount":
			tx.PurchaseAmount, err = parseAmount(value)
		case "quantity":
			tx.Quantity, err = parseQuantity(value)
		case "purchase_date":
			tx.PurchaseDate, err = parseDate(value)
		case "payment_method":
			tx.PaymentMethod = titler.String(value)
		}
		if err != nil {
			return models.Transaction{}, fmt.Errorf("column %s: %w", mapping[i], err)
		}
	}

	if tx.CustomerID == "" || tx.ProductName == "" {
		return models.Transaction{}, errors.New("customer_id and product_name are required")
	}
	if tx.PurchaseDate.IsZero() {
		return models.Transaction{}, errors.New("purchase_date is required")
	}
	return tx, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.NewReplacer("$", "", ",", "").Replace(s)
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("negative amount")
	}
	return d, nil
}

func parseAge(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid age %q", s)
	}
	return n, nil
}

func parseQuantity(s string) (int, error) {
	if s == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}
	return max(n, 1), nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
