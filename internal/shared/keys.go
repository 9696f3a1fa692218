package shared

import "fmt"

// LoginFailuresKey builds the redis key counting failed logins of a folded identity.
func LoginFailuresKey(foldedIdentity string) string {
	return fmt.Sprintf("login:failures:%s", foldedIdentity)
}

// LedgerScope builds the idempotency scope of an office's ledger writes.
func LedgerScope(office string) string {
	return "ledger:" + office
}
