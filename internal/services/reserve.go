package services

// EligibleAmount computes the sweepable portion of a native balance: the
// balance minus the configured reserve minus the fee the source must still
// pay for the sweep transaction itself. All amounts are lamports; the math is
// pure integer arithmetic. A balance above the reserve but inside the fee
// margin is still insufficient.
func EligibleAmount(balance, reserve, fee uint64) (uint64, error) {
	keep := reserve + fee
	if keep < reserve {
		// overflow: nothing could ever be eligible
		return 0, ErrInsufficientFunds
	}
	if balance <= keep {
		return 0, ErrInsufficientFunds
	}
	return balance - keep, nil
}
