package trade

import (
	"context"

	"go.dedis.ch/dvp/contracts/cash"
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/mino"
	"go.dedis.ch/dvp/protocol"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

// Seller runs the primary side of trades. It offers assets and verifies that
// the proposals of the buyers settle the offered asset against the asked
// price.
type Seller struct {
	cfg        protocol.Config
	rpc        mino.RPC
	observeRPC mino.RPC
	wallet     *cash.Wallet
	observers  []mino.Address
}

// NewSeller creates a seller. The settled trades are copied to the observers
// on a best effort basis.
func NewSeller(m mino.Mino, cfg protocol.Config, wallet *cash.Wallet,
	observers ...mino.Address) (*Seller, error) {

	rpc, err := m.CreateRPC(RPCName, mino.UnsupportedHandler{}, protocol.MessageFactory{})
	if err != nil {
		return nil, xerrors.Errorf("couldn't create rpc: %v", err)
	}

	observeRPC, err := m.CreateRPC(ObserveRPCName, mino.UnsupportedHandler{}, MessageFactory{})
	if err != nil {
		return nil, xerrors.Errorf("couldn't create observe rpc: %v", err)
	}

	return &Seller{
		cfg:        cfg,
		rpc:        rpc,
		observeRPC: observeRPC,
		wallet:     wallet,
		observers:  observers,
	}, nil
}

// Sell offers the asset at the price to the buyer and runs the session until
// the settlement is recorded. It returns the fully signed transaction.
func (s *Seller) Sell(ctx context.Context, asset ledger.StateAndRef,
	price cash.Amount, buyer mino.Address) (tx.SignedTransaction, error) {

	payTo, err := s.cfg.Keys.FreshKey()
	if err != nil {
		return tx.SignedTransaction{}, xerrors.Errorf("couldn't make payment key: %v", err)
	}

	hooks := sellerHooks{
		seller: s,
		asset:  asset,
		price:  price,
		payTo:  payTo,
	}

	primary := protocol.NewPrimary(s.cfg, hooks)

	return primary.Run(ctx, s.rpc, buyer)
}

// sellerHooks verify the business terms of one trade.
//
// - implements protocol.PrimaryHooks
type sellerHooks struct {
	seller *Seller
	asset  ledger.StateAndRef
	price  cash.Amount
	payTo  crypto.PublicKey
}

// Terms implements protocol.PrimaryHooks.
func (h sellerHooks) Terms() (serde.Message, error) {
	return NewTerms(h.asset, h.price, h.payTo), nil
}

// CheckProposal implements protocol.PrimaryHooks. It verifies that the
// proposal consumes the offered asset and pays the asked price to the payment
// key.
func (h sellerHooks) CheckProposal(stx tx.SignedTransaction, inputs []ledger.StateAndRef) error {
	consumed := false
	for _, input := range inputs {
		if input.Ref.Equal(h.asset.Ref) {
			consumed = true
			break
		}
	}

	if !consumed {
		return AssetMismatchError{Expected: h.asset.Ref}
	}

	paid := cash.Amount{Currency: h.price.Currency}
	for _, output := range stx.GetWire().GetOutputs() {
		state, ok := output.State.(cash.State)
		if !ok || !state.GetOwner().Equal(h.payTo) {
			continue
		}

		sum, err := paid.Add(state.GetAmount())
		if err != nil {
			continue
		}

		paid = sum
	}

	if paid.Quantity < h.price.Quantity {
		return PriceMismatchError{Expected: h.price, Actual: paid}
	}

	return nil
}

// Finalize implements protocol.PrimaryHooks. It updates the wallet with the
// payment received and copies the settlement to the observers.
func (h sellerHooks) Finalize(ctx context.Context, stx tx.SignedTransaction) error {
	s := h.seller

	err := s.wallet.Update(stx, func(key crypto.PublicKey) bool {
		_, err := s.cfg.Keys.SignerFor(key)
		return err == nil
	})
	if err != nil {
		return xerrors.Errorf("couldn't update wallet: %v", err)
	}

	for _, observer := range s.observers {
		resps, err := s.observeRPC.Call(ctx, NewRecorded(stx), mino.NewAddresses(observer))
		if err != nil {
			s.cfg.Logger.Warn().Err(err).
				Str("observer", observer.String()).
				Msg("couldn't copy to observer")

			continue
		}

		resp, more := <-resps
		if more {
			_, err = resp.GetMessageOrError()
			if err != nil {
				s.cfg.Logger.Warn().Err(err).
					Str("observer", observer.String()).
					Msg("observer refused the copy")
			}
		}
	}

	return nil
}
