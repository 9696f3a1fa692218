package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	require.Equal(t, "login:failures:dani", LoginFailuresKey("dani"))
	require.Equal(t, "ledger:Barcelona", LedgerScope("Barcelona"))
}
