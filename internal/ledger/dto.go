package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type createRequest struct {
	Kind         string           `json:"tipo"`
	Counterparty string           `json:"cliente"`
	Amount       *decimal.Decimal `json:"importe"`
	Currency     string           `json:"moneda"`
	Status       string           `json:"estado"`
}

type createResponse struct {
	OK        bool      `json:"ok"`
	Success   bool      `json:"success"`
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"fecha"`
}

type recordView struct {
	ID           int64     `json:"id"`
	Kind         string    `json:"tipo"`
	Counterparty string    `json:"cliente"`
	Amount       string    `json:"importe"`
	Currency     string    `json:"moneda"`
	Status       string    `json:"estado"`
	Actor        string    `json:"usuario"`
	Office       string    `json:"oficina"`
	CreatedAt    time.Time `json:"fecha"`
}

func newRecordView(r Record) recordView {
	return recordView{
		ID:           r.ID,
		Kind:         r.Kind,
		Counterparty: r.Counterparty,
		Amount:       r.Amount.StringFixed(2),
		Currency:     r.Currency,
		Status:       r.Status,
		Actor:        r.Actor,
		Office:       r.Office,
		CreatedAt:    r.CreatedAt,
	}
}

func newRecordViews(records []Record) []recordView {
	views := make([]recordView, 0, len(records))
	for _, r := range records {
		views = append(views, newRecordView(r))
	}
	return views
}

type listResponse struct {
	Records []recordView `json:"operaciones"`
}

type dailyResponse struct {
	Daily []recordView `json:"daily"`
}

type updateResponse struct {
	Success bool       `json:"success"`
	Record  recordView `json:"operacion"`
}

type balanceResponse struct {
	Office   string `json:"office"`
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type exportResponse struct {
	Office      string       `json:"oficina"`
	GeneratedAt time.Time    `json:"generated_at"`
	Total       string       `json:"total"`
	Records     []recordView `json:"operaciones"`
}

// ExportDocument is the JSON shape of an office snapshot, shared by the
// export endpoint and the backup job.
func ExportDocument(e Export) any {
	return exportResponse{
		Office:      e.Office,
		GeneratedAt: e.GeneratedAt,
		Total:       e.Balance.StringFixed(2),
		Records:     newRecordViews(e.Records),
	}
}
