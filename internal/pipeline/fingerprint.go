package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Fingerprint is the content address of a run: the same inputs under the
// same configuration always hash to the same value, whatever the row order.
func Fingerprint(in Inputs, cfg Config) string {
	h := sha256.New()

	skus := make(map[string]struct{})
	var first, last time.Time
	demand := make([]string, 0, len(in.Demand))
	for _, d := range in.Demand {
		skus[d.SKU] = struct{}{}
		if first.IsZero() || d.Date.Before(first) {
			first = d.Date
		}
		if d.Date.After(last) {
			last = d.Date
		}
		demand = append(demand, canonicalRow(d.SKU, day(d.Date), strconv.FormatFloat(d.RawQuantity, 'g', -1, 64)))
	}

	skuList := make([]string, 0, len(skus))
	for s := range skus {
		skuList = append(skuList, s)
	}
	sort.Strings(skuList)
	writeSection(h, "skus", skuList)
	writeSection(h, "range", []string{day(first), day(last)})
	writeSection(h, "demand", demand)

	stock := make([]string, 0, len(in.StockHistory))
	for _, s := range in.StockHistory {
		stock = append(stock, canonicalRow(s.SKU, day(s.Month), strconv.Itoa(s.Quantity)))
	}
	writeSection(h, "stock_history", stock)

	current := make([]string, 0, len(in.CurrentStock))
	for _, c := range in.CurrentStock {
		current = append(current, canonicalRow(c.SKU, day(c.Date), strconv.Itoa(c.Quantity), c.Description))
	}
	writeSection(h, "current_stock", current)

	repl := make([]string, 0, len(in.Replenishments))
	for _, r := range in.Replenishments {
		repl = append(repl, canonicalRow(r.SKU, day(r.Date), r.RawDate, strconv.Itoa(r.Quantity)))
	}
	writeSection(h, "replenishments", repl)

	products := make([]string, 0, len(in.Products))
	for _, p := range in.Products {
		products = append(products, canonicalRow(p.SKU, p.Description, p.ManufacturingCost.String(), p.SalePrice.String(),
			strconv.FormatBool(p.HasPrice), p.Category))
	}
	writeSection(h, "products", products)

	// worker count does not change the output
	cfg.WorkerCount = 0
	writeSection(h, "config", []string{configKey(cfg)})

	return hex.EncodeToString(h.Sum(nil))
}

// configKey renders cfg for hashing. json.Marshal refuses NaN and Inf
// floats, which the planning settings can carry; those configs fall back to
// the Go syntax representation so they still hash apart.
func configKey(cfg Config) string {
	b, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Sprintf("%#v", cfg)
	}
	return string(b)
}

func writeSection(h hash.Hash, name string, rows []string) {
	sort.Strings(rows)
	fmt.Fprintf(h, "[%s:%d]\n", name, len(rows))
	for _, r := range rows {
		fmt.Fprintln(h, r)
	}
}

func canonicalRow(fields ...string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = strconv.Quote(f)
	}
	return strings.Join(quoted, "\x1f")
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
