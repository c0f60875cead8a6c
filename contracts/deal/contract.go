package deal

import (
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"golang.org/x/xerrors"
)

// Contract verifies the deal commands of a transaction.
//
// - implements validation.Contract
type Contract struct{}

// NewContract returns the deal contract.
func NewContract() Contract {
	return Contract{}
}

// Validate implements validation.Contract. It verifies the state transitions
// of the deals touched by the command.
func (c Contract) Validate(cmd ledger.Command, wire tx.WireTransaction, inputs []ledger.StateAndRef) error {
	switch cmd.Value.(type) {
	case Agree:
		return c.validateAgree(cmd, wire, inputs)
	case Fixing:
		return c.validateFixing(cmd, wire, inputs)
	default:
		return xerrors.Errorf("unknown command of type '%T'", cmd.Value)
	}
}

func (c Contract) validateAgree(cmd ledger.Command, wire tx.WireTransaction, inputs []ledger.StateAndRef) error {
	for _, input := range inputs {
		if _, ok := input.State.(State); ok {
			return xerrors.New("agree command cannot consume a deal")
		}
	}

	for _, output := range wire.GetOutputs() {
		deal, ok := output.State.(State)
		if !ok {
			continue
		}

		err := requireParties(deal, cmd.Signers)
		if err != nil {
			return err
		}

		return nil
	}

	return xerrors.New("agree command without deal output")
}

func (c Contract) validateFixing(cmd ledger.Command, wire tx.WireTransaction, inputs []ledger.StateAndRef) error {
	var before *RateAgreement
	for _, input := range inputs {
		if deal, ok := input.State.(RateAgreement); ok {
			before = &deal
			break
		}
	}

	if before == nil {
		return xerrors.New("fixing command without deal input")
	}

	var after *RateAgreement
	for _, output := range wire.GetOutputs() {
		if deal, ok := output.State.(RateAgreement); ok {
			after = &deal
			break
		}
	}

	if after == nil {
		return xerrors.New("fixing command without deal output")
	}

	next := before.NextFixing()
	if next == nil {
		return xerrors.New("agreement is fully fixed")
	}

	if len(after.fixes) != len(before.fixes)+1 {
		return xerrors.Errorf("expected %d fixes, found %d",
			len(before.fixes)+1, len(after.fixes))
	}

	applied := after.fixes[len(after.fixes)-1]
	if !applied.Of.Equal(*next) {
		return xerrors.Errorf("unexpected fix of '%s' at %v",
			applied.Of.Name, applied.Of.Date)
	}

	return requireParties(*before, cmd.Signers)
}

func requireParties(deal State, signers []crypto.PublicKey) error {
	for _, party := range deal.GetParties() {
		signed := false
		for _, signer := range signers {
			if signer.Equal(party.GetPublicKey()) {
				signed = true
				break
			}
		}

		if !signed {
			return xerrors.Errorf("party '%s' is not a signer", party.GetName())
		}
	}

	return nil
}
