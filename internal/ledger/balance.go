package ledger

import "github.com/shopspring/decimal"

var (
	creditKinds = map[string]bool{KindEntrada: true, KindCash: true}
	debitKinds  = map[string]bool{KindSalida: true}
)

// Sign returns +1 for credit kinds, -1 for debit kinds and 0 otherwise.
func Sign(kind string) int {
	switch {
	case creditKinds[kind]:
		return 1
	case debitKinds[kind]:
		return -1
	default:
		return 0
	}
}

// Balance sums credits minus debits and rounds half away from zero to two
// decimals. The result depends only on the set of records, not their order.
func Balance(records []Record) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		switch Sign(r.Kind) {
		case 1:
			total = total.Add(r.Amount)
		case -1:
			total = total.Sub(r.Amount)
		}
	}
	return total.Round(2)
}
