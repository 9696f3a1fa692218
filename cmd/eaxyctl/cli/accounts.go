package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/eaxy/eaxy/internal/auth"
)

// Provisioner creates accounts.
type Provisioner interface {
	Provision(ctx context.Context, in auth.NewAccount) (*auth.Account, error)
}

// AccountAddOptions are the flags of "account add".
type AccountAddOptions struct {
	Identity string
	PIN      string
	Role     string
	Office   string
	Stdout   io.Writer
}

// AddAccount provisions one account and prints it without the secret.
func AddAccount(ctx context.Context, p Provisioner, opts AccountAddOptions) error {
	account, err := p.Provision(ctx, auth.NewAccount{
		Identity: opts.Identity,
		Secret:   opts.PIN,
		Role:     auth.Role(opts.Role),
		Office:   opts.Office,
	})
	if err != nil {
		return fmt.Errorf("provision account: %w", err)
	}
	if opts.Stdout != nil {
		fmt.Fprintf(opts.Stdout, "created account id=%d identity=%s role=%s office=%s\n", account.ID, account.Identity, account.Role, account.Office)
	}
	return nil
}
