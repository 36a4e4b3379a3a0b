package domain

import "math/big"

type TxKind string

const (
	TxKindWrap   TxKind = "wrap"
	TxKindUnwrap TxKind = "unwrap"
)

// TxOutcome describes a confirmed wrap or unwrap transaction.
type TxOutcome struct {
	Kind              TxKind
	Round             int
	ChainID           uint64
	TxHash            string
	BlockNumber       uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	FeeWei            *big.Int
	Status            uint64
}

// Reverted reports whether the transaction was mined but failed.
func (o TxOutcome) Reverted() bool {
	return o.Status == 0
}

// RoundResult collects the outcomes of a single wrap/unwrap round.
// Unwrap is nil when the round skipped the unwrap leg.
type RoundResult struct {
	Round         int
	Wrap          TxOutcome
	Unwrap        *TxOutcome
	UnwrapSkipped bool
}
