package ledger

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eaxy/eaxy/internal/shared"
)

func rawPatch(t *testing.T, body string) map[string]json.RawMessage {
	t.Helper()
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return raw
}

func TestParsePatchAllowList(t *testing.T) {
	p, err := ParsePatch(rawPatch(t, `{"tipo":"salida","cliente":"Lola","importe":"12.30","moneda":"usd","estado":"pagado"}`))
	require.NoError(t, err)
	require.Equal(t, "salida", *p.Kind)
	require.Equal(t, "Lola", *p.Counterparty)
	require.Equal(t, "12.3", p.Amount.String())
	require.Equal(t, "usd", *p.Currency)
	require.Equal(t, "pagado", *p.Status)

	p, err = ParsePatch(rawPatch(t, `{"importe": 7.5}`))
	require.NoError(t, err)
	require.Nil(t, p.Kind)
	require.Equal(t, "7.5", p.Amount.String())
}

func TestParsePatchRejectsProtectedAndUnknownFields(t *testing.T) {
	for _, body := range []string{
		`{"oficina":"Madrid"}`,
		`{"estado":"ok","office":"Madrid"}`,
		`{"id":5}`,
		`{"fecha":"2024-01-01"}`,
		`{"usuario":"Camilo"}`,
		`{"color":"red"}`,
		`{}`,
		`{"importe":-1}`,
		`{"tipo":"   "}`,
		`{"moneda":"€"}`,
		`{"importe":"abc"}`,
		`{"moneda":""}`,
		`{"moneda":"EU"}`,
		`{"estado":"  "}`,
		`{"tipo":"` + strings.Repeat("x", 33) + `"}`,
		`{"cliente":"` + strings.Repeat("c", 201) + `"}`,
	} {
		_, err := ParsePatch(rawPatch(t, body))
		require.ErrorIs(t, err, shared.ErrValidation, body)
	}
}

func TestPatchSharesCreateRules(t *testing.T) {
	kind := strings.Repeat("k", 32)
	currency := " gbp "
	require.NoError(t, Patch{Kind: &kind, Currency: &currency}.Validate())

	long := strings.Repeat("k", 33)
	err := Patch{Kind: &long}.Validate()
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "tipo max")
}

func TestPatchApplyKeepsOffice(t *testing.T) {
	status := "pagado"
	r := Record{ID: 3, Office: "Barcelona", Status: StatusPending}
	out := Patch{Status: &status}.Apply(r)
	require.Equal(t, "pagado", out.Status)
	require.Equal(t, "Barcelona", out.Office)
	require.EqualValues(t, 3, out.ID)
}

func TestDayRange(t *testing.T) {
	loc := time.FixedZone("CET", 60*60)
	day := DayRange(time.Date(2024, 1, 31, 23, 30, 0, 0, time.UTC), loc)
	require.True(t, day.From.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, loc)))
	require.True(t, day.To.Equal(time.Date(2024, 2, 2, 0, 0, 0, 0, loc)))
	require.True(t, day.Contains(day.From))
	require.False(t, day.Contains(day.To))
}
