package core

// Deposit moves amount from the wallet into the vault. Both balances are
// checked before either is touched.
func (v *Vault) Deposit(from *Wallet, amount uint64) error {
	if from.Balance < amount {
		return ErrInsufficientFunds
	}
	balance, err := checkedAdd(v.Balance, amount)
	if err != nil {
		return err
	}
	from.Balance -= amount
	v.Balance = balance
	return nil
}

// TransferOut pays amount from the vault to the wallet. An under-funded
// vault rejects the transfer outright; it never pays out a partial amount.
func (v *Vault) TransferOut(to *Wallet, amount uint64) error {
	if v.Balance < amount {
		return ErrInsufficientVaultBalance
	}
	remaining, err := checkedSub(v.Balance, amount)
	if err != nil {
		return err
	}
	credited, err := checkedAdd(to.Balance, amount)
	if err != nil {
		return err
	}
	v.Balance = remaining
	to.Balance = credited
	return nil
}
