// Package validation defines the contract verification engine.
//
// The engine inspects a wire transaction together with its materialized
// inputs, and either accepts or rejects the state transition. The business
// rules themselves are provided by the contracts, registered per command
// type.
package validation

import (
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

// Engine is the interface of the contract verification engine. The protocol
// state machines call it as a black box after the dependency resolution.
type Engine interface {
	// Validate returns nil when the transaction is a valid state transition
	// with respect to its materialized inputs. The inputs are provided in the
	// order of the consumed references of the transaction.
	Validate(wire tx.WireTransaction, inputs []ledger.StateAndRef) error
}

// Contract is the interface to implement to verify the commands of a given
// type.
type Contract interface {
	// Validate returns nil when the command is a valid action with respect to
	// the transaction that carries it.
	Validate(cmd ledger.Command, wire tx.WireTransaction, inputs []ledger.StateAndRef) error
}

// TransactionEngine is an engine that dispatches the verification of each
// command to the contract registered for its type.
//
// - implements validation.Engine
type TransactionEngine struct {
	contracts map[string]Contract
}

// NewEngine creates a new engine without any contract.
func NewEngine() *TransactionEngine {
	return &TransactionEngine{
		contracts: make(map[string]Contract),
	}
}

// Register registers the contract for the command type of the sample.
func (e *TransactionEngine) Register(sample ledger.CommandData, c Contract) {
	e.contracts[serde.KeyOf(sample)] = c
}

// Validate implements validation.Engine. It verifies the structure of the
// transaction and runs the contract of every command.
func (e *TransactionEngine) Validate(wire tx.WireTransaction, inputs []ledger.StateAndRef) error {
	refs := wire.GetInputs()
	if len(refs) != len(inputs) {
		return xerrors.Errorf("mismatching inputs: %d references but %d states",
			len(refs), len(inputs))
	}

	for i, ref := range refs {
		if !ref.Equal(inputs[i].Ref) {
			return xerrors.Errorf("input %d does not match its reference", i)
		}
	}

	cmds := wire.GetCommands()
	if len(cmds) == 0 {
		return xerrors.New("transaction has no command")
	}

	for _, cmd := range cmds {
		key := serde.KeyOf(cmd.Value)

		contract := e.contracts[key]
		if contract == nil {
			return xerrors.Errorf("no contract for command <%s>", key)
		}

		err := contract.Validate(cmd, wire, inputs)
		if err != nil {
			return xerrors.Errorf("contract <%s> refused the transaction: %v", key, err)
		}
	}

	return nil
}
