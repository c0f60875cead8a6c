// Package resolver implements the dependency resolution of transactions.
//
// A proposal is only trusted once the full history of its inputs is known and
// verified. The resolver walks the references of a transaction, serves the
// ones already recorded locally and fetches the missing ones from the
// counterparty, until the whole backchain is covered. Every fetched
// transaction is verified and cached in the local store so that a reference
// is never fetched twice.
package resolver

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/store"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/mino"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

// RPCName is the name of the resolution endpoint.
const RPCName = "resolve"

// UnresolvableError is returned when a reference cannot be resolved, either
// because the transaction cannot be obtained or because the fetched copy
// fails verification.
type UnresolvableError struct {
	Hash  []byte
	Cause error
}

func (e UnresolvableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transaction %x cannot be resolved: %v", e.Hash, e.Cause)
	}

	return fmt.Sprintf("transaction %x cannot be resolved", e.Hash)
}

// Unwrap returns the cause of the failure, if any.
func (e UnresolvableError) Unwrap() error {
	return e.Cause
}

// Resolver resolves the dependencies of transactions against the local store
// and the store of a counterparty.
//
// - implements protocol.DependencyResolver
type Resolver struct {
	sync.Mutex

	store       store.Transactions
	rpc         mino.RPC
	hashFactory crypto.HashFactory
}

// NewResolver creates a resolver backed by the store. It registers the
// endpoint serving the distant resolutions of the counterparties.
func NewResolver(m mino.Mino, txs store.Transactions, f crypto.HashFactory) (*Resolver, error) {
	resolver := &Resolver{
		store:       txs,
		hashFactory: f,
	}

	rpc, err := m.CreateRPC(RPCName, handler{store: txs}, MessageFactory{})
	if err != nil {
		return nil, xerrors.Errorf("couldn't create rpc: %v", err)
	}

	resolver.rpc = rpc

	return resolver, nil
}

// Resolve implements protocol.DependencyResolver. It returns the states
// referenced by the refs, in order, after fetching and verifying the missing
// parts of their backchain from the peer.
func (r *Resolver) Resolve(ctx context.Context, refs []ledger.StateRef,
	peer mino.Address) ([]ledger.StateAndRef, error) {

	r.Lock()
	defer r.Unlock()

	visited := make(map[string]struct{})
	queue := make([][]byte, 0, len(refs))

	for _, ref := range refs {
		queue = append(queue, ref.GetTxHash())
	}

	for len(queue) > 0 {
		hash := queue[0]
		queue = queue[1:]

		if _, found := visited[string(hash)]; found {
			continue
		}

		visited[string(hash)] = struct{}{}

		stx, err := r.lookup(ctx, hash, peer)
		if err != nil {
			return nil, err
		}

		for _, input := range stx.GetWire().GetInputs() {
			queue = append(queue, input.GetTxHash())
		}
	}

	resolved := make([]ledger.StateAndRef, len(refs))
	for i, ref := range refs {
		stx, found, err := r.store.Get(ref.GetTxHash())
		if err != nil {
			return nil, xerrors.Errorf("couldn't read store: %v", err)
		}

		if !found {
			return nil, UnresolvableError{Hash: ref.GetTxHash()}
		}

		outputs := stx.GetWire().GetOutputs()
		if int(ref.GetIndex()) >= len(outputs) {
			return nil, xerrors.Errorf("reference %v points to a missing output", ref)
		}

		output := outputs[ref.GetIndex()]

		resolved[i] = ledger.StateAndRef{
			Ref:    ref,
			State:  output.State,
			Notary: output.Notary,
		}
	}

	return resolved, nil
}

// lookup returns the transaction with the hash, fetching it from the peer
// when the local store does not have it. A fetched transaction is verified
// and cached.
func (r *Resolver) lookup(ctx context.Context, hash []byte, peer mino.Address) (tx.SignedTransaction, error) {
	stx, found, err := r.store.Get(hash)
	if err != nil {
		return stx, xerrors.Errorf("couldn't read store: %v", err)
	}

	if found {
		return stx, nil
	}

	stx, err = r.fetch(ctx, hash, peer)
	if err != nil {
		return stx, err
	}

	digest, err := stx.Hash(r.hashFactory)
	if err != nil {
		return stx, xerrors.Errorf("couldn't hash transaction: %v", err)
	}

	if !bytes.Equal(digest, hash) {
		return stx, UnresolvableError{
			Hash:  hash,
			Cause: xerrors.Errorf("fetched transaction hashes to %x instead of %x", digest, hash),
		}
	}

	err = stx.VerifyFullySigned(r.hashFactory)
	if err != nil {
		return stx, UnresolvableError{
			Hash:  hash,
			Cause: xerrors.Errorf("fetched transaction is invalid: %v", err),
		}
	}

	err = r.store.Put(stx)
	if err != nil {
		return stx, xerrors.Errorf("couldn't write store: %v", err)
	}

	return stx, nil
}

func (r *Resolver) fetch(ctx context.Context, hash []byte, peer mino.Address) (tx.SignedTransaction, error) {
	var stx tx.SignedTransaction

	resps, err := r.rpc.Call(ctx, NewRequest(hash), mino.NewAddresses(peer))
	if err != nil {
		return stx, xerrors.Errorf("couldn't call peer: %v", err)
	}

	select {
	case resp, more := <-resps:
		if !more {
			return stx, UnresolvableError{Hash: hash}
		}

		msg, err := resp.GetMessageOrError()
		if err != nil {
			return stx, xerrors.Errorf("peer refused the request: %v", err)
		}

		switch answer := msg.(type) {
		case Found:
			return answer.GetTransaction(), nil
		case NotFound:
			return stx, UnresolvableError{Hash: hash}
		default:
			return stx, xerrors.Errorf("invalid answer of type '%T'", msg)
		}
	case <-ctx.Done():
		return stx, ctx.Err()
	}
}

// handler serves the resolution requests of the counterparties from the local
// store.
//
// - implements mino.Handler
type handler struct {
	mino.UnsupportedHandler

	store store.Transactions
}

// Process implements mino.Handler. It answers with the transaction when the
// store has it.
func (h handler) Process(req mino.Request) (serde.Message, error) {
	in, ok := req.Message.(Request)
	if !ok {
		return nil, xerrors.Errorf("invalid request of type '%T'", req.Message)
	}

	stx, found, err := h.store.Get(in.GetHash())
	if err != nil {
		return nil, xerrors.Errorf("couldn't read store: %v", err)
	}

	if !found {
		return NewNotFound(in.GetHash()), nil
	}

	return NewFound(stx), nil
}
