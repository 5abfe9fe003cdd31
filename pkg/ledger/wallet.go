package ledger

import (
	"fmt"

	"github.com/nspcc-dev/flightsurety/pkg/config"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
)

// loadAccounts opens the wallet and decrypts its first n accounts.
func loadAccounts(cfg config.Wallet, n int) (*wallet.Wallet, []*wallet.Account, error) {
	w, err := wallet.NewWalletFromFile(cfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open wallet: %w", err)
	}
	if len(w.Accounts) < n {
		w.Close()
		return nil, nil, fmt.Errorf("wallet %s has %d accounts, %d needed", cfg.Path, len(w.Accounts), n)
	}
	accounts := w.Accounts[:n]
	for _, acc := range accounts {
		if err := acc.Decrypt(cfg.Password, w.Scrypt); err != nil {
			w.Close()
			return nil, nil, fmt.Errorf("failed to decrypt account %s: %w", acc.Address, err)
		}
	}
	return w, accounts, nil
}
