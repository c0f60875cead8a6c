package cash

import (
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"golang.org/x/xerrors"
)

// Contract verifies the cash commands of a transaction: value is preserved
// per currency when spending, and only an issuance can create value.
//
// - implements validation.Contract
type Contract struct{}

// NewContract returns the cash contract.
func NewContract() Contract {
	return Contract{}
}

// Validate implements validation.Contract. It verifies the state transition of
// the cash states moved by the command.
func (c Contract) Validate(cmd ledger.Command, wire tx.WireTransaction, inputs []ledger.StateAndRef) error {
	switch cmd.Value.(type) {
	case Spend:
		return c.validateSpend(cmd, wire, inputs)
	case Issue:
		return c.validateIssue(cmd, inputs)
	default:
		return xerrors.Errorf("unknown command of type '%T'", cmd.Value)
	}
}

func (c Contract) validateSpend(cmd ledger.Command, wire tx.WireTransaction, inputs []ledger.StateAndRef) error {
	sums := make(map[string]int64)

	for _, input := range inputs {
		state, ok := input.State.(State)
		if !ok {
			continue
		}

		sums[state.amount.Currency] += int64(state.amount.Quantity)

		signed := false
		for _, signer := range cmd.Signers {
			if signer.Equal(state.owner) {
				signed = true
				break
			}
		}

		if !signed {
			return xerrors.Errorf("owner of input '%v' is not a signer", state.owner)
		}
	}

	if len(sums) == 0 {
		return xerrors.New("spend command without cash input")
	}

	for _, output := range wire.GetOutputs() {
		state, ok := output.State.(State)
		if !ok {
			continue
		}

		sums[state.amount.Currency] -= int64(state.amount.Quantity)
	}

	for currency, sum := range sums {
		if sum != 0 {
			return xerrors.Errorf("value of currency '%s' is not preserved", currency)
		}
	}

	return nil
}

func (c Contract) validateIssue(cmd ledger.Command, inputs []ledger.StateAndRef) error {
	for _, input := range inputs {
		if _, ok := input.State.(State); ok {
			return xerrors.New("issue command cannot consume cash")
		}
	}

	if len(cmd.Signers) == 0 {
		return xerrors.New("issue command requires an issuer signature")
	}

	return nil
}
