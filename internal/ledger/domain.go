package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/eaxy/eaxy/internal/shared"
)

// Record kinds with a balance effect. Any other kind is informational.
const (
	KindEntrada = "entrada"
	KindCash    = "cash"
	KindSalida  = "salida"
)

// StatusPending is the workflow status of a new record.
const StatusPending = "pendiente"

// Record is one ledger entry. Office is the tenant partition key and never
// changes after creation.
type Record struct {
	ID           int64
	Kind         string
	Counterparty string
	Amount       decimal.Decimal
	Currency     string
	Status       string
	Office       string
	Actor        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateInput is the caller-controlled part of a new record. There is no
// office field: the office always comes from the caller's claims.
type CreateInput struct {
	Kind           string `validate:"required,max=32"`
	Counterparty   string `validate:"max=200"`
	Amount         *decimal.Decimal
	Currency       string `validate:"omitempty,len=3,alpha"`
	Status         string `validate:"omitempty,max=32"`
	IdempotencyKey string `validate:"omitempty,max=128"`
}

// Patch lists the fields an update may change. Nil means unchanged.
type Patch struct {
	Kind         *string
	Counterparty *string
	Amount       *decimal.Decimal
	Currency     *string
	Status       *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Kind == nil && p.Counterparty == nil && p.Amount == nil && p.Currency == nil && p.Status == nil
}

// Validate checks patched values against the CreateInput rules. Present
// currency and status values must also be non-empty.
func (p Patch) Validate() error {
	if p.Empty() {
		return fmt.Errorf("%w: no fields to update", shared.ErrValidation)
	}
	n := p.normalized()
	var (
		in     CreateInput
		fields []string
	)
	if n.Kind != nil {
		in.Kind = *n.Kind
		fields = append(fields, "Kind")
	}
	if n.Counterparty != nil {
		in.Counterparty = *n.Counterparty
		fields = append(fields, "Counterparty")
	}
	if n.Currency != nil {
		if *n.Currency == "" {
			return fmt.Errorf("%w: moneda cannot be empty", shared.ErrValidation)
		}
		in.Currency = *n.Currency
		fields = append(fields, "Currency")
	}
	if n.Status != nil {
		if *n.Status == "" {
			return fmt.Errorf("%w: estado cannot be empty", shared.ErrValidation)
		}
		in.Status = *n.Status
		fields = append(fields, "Status")
	}
	if len(fields) > 0 {
		if err := validate.StructPartial(in, fields...); err != nil {
			return validationError(err)
		}
	}
	if n.Amount != nil && n.Amount.IsNegative() {
		return fmt.Errorf("%w: importe cannot be negative", shared.ErrValidation)
	}
	return nil
}

// normalized returns a copy with trimmed and case-normalised values.
func (p Patch) normalized() Patch {
	if p.Kind != nil {
		k := NormalizeKind(*p.Kind)
		p.Kind = &k
	}
	if p.Counterparty != nil {
		c := strings.TrimSpace(*p.Counterparty)
		p.Counterparty = &c
	}
	if p.Currency != nil {
		c := strings.ToUpper(strings.TrimSpace(*p.Currency))
		p.Currency = &c
	}
	if p.Status != nil {
		s := strings.TrimSpace(*p.Status)
		p.Status = &s
	}
	return p
}

// Apply returns r with the patch applied. Office and ID are untouched.
func (p Patch) Apply(r Record) Record {
	if p.Kind != nil {
		r.Kind = *p.Kind
	}
	if p.Counterparty != nil {
		r.Counterparty = *p.Counterparty
	}
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	if p.Currency != nil {
		r.Currency = *p.Currency
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	return r
}

var protectedFields = map[string]bool{
	"id":      true,
	"oficina": true,
	"office":  true,
	"tienda":  true,
	"usuario": true,
	"actor":   true,
	"fecha":   true,
}

// ParsePatch decodes a JSON object into a Patch, accepting only the
// patchable wire fields (tipo, cliente, importe, moneda, estado).
func ParsePatch(raw map[string]json.RawMessage) (Patch, error) {
	var p Patch
	for field, value := range raw {
		if protectedFields[field] {
			return Patch{}, fmt.Errorf("%w: field %q cannot be changed", shared.ErrValidation, field)
		}
		var err error
		switch field {
		case "tipo":
			p.Kind, err = decodeString(value)
		case "cliente":
			p.Counterparty, err = decodeString(value)
		case "moneda":
			p.Currency, err = decodeString(value)
		case "estado":
			p.Status, err = decodeString(value)
		case "importe":
			var amount decimal.Decimal
			if err = json.Unmarshal(value, &amount); err == nil {
				p.Amount = &amount
			}
		default:
			return Patch{}, fmt.Errorf("%w: unknown field %q", shared.ErrValidation, field)
		}
		if err != nil {
			return Patch{}, fmt.Errorf("%w: field %q: %v", shared.ErrValidation, field, err)
		}
	}
	if err := p.Validate(); err != nil {
		return Patch{}, err
	}
	return p, nil
}

func decodeString(value json.RawMessage) (*string, error) {
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// NormalizeKind trims and lower-cases a record kind.
func NormalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

// validate holds the input rules shared by creation and patches.
var validate = validator.New()

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fmt.Errorf("%w: %s %s", shared.ErrValidation, wireName(fieldErrs[0].Field()), fieldErrs[0].Tag())
	}
	return fmt.Errorf("%w: %v", shared.ErrValidation, err)
}

func wireName(field string) string {
	switch field {
	case "Kind":
		return "tipo"
	case "Counterparty":
		return "cliente"
	case "Currency":
		return "moneda"
	case "Status":
		return "estado"
	case "IdempotencyKey":
		return "idempotency key"
	}
	return strings.ToLower(field)
}

// DateRange is a half-open interval [From, To).
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls in the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// DayRange returns the calendar day of t in loc.
func DayRange(t time.Time, loc *time.Location) DateRange {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return DateRange{From: start, To: start.AddDate(0, 0, 1)}
}

// Mode selects the records returned by Query.
type Mode int

const (
	ModeAll Mode = iota
	ModeToday
	ModeByDate
)

// Query describes a scoped listing. Date is YYYY-MM-DD and only used by ModeByDate.
type Query struct {
	Mode Mode
	Date string
}

// Export is a snapshot of one office's ledger.
type Export struct {
	Office      string
	GeneratedAt time.Time
	Balance     decimal.Decimal
	Records     []Record
}
