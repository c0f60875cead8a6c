package trade

import (
	"context"
	"fmt"
	"time"

	"go.dedis.ch/dvp/contracts/asset"
	"go.dedis.ch/dvp/contracts/cash"
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/mino"
	"go.dedis.ch/dvp/protocol"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

// proposalWindow is the validity window the buyer puts on its proposals.
const proposalWindow = 30 * time.Second

// Policy bounds what a buyer accepts without asking anyone.
type Policy struct {
	// MaxPrice is the highest price the buyer accepts. A zero quantity means
	// no limit.
	MaxPrice cash.Amount
}

// Buyer runs the secondary side of trades. It answers the offers of sellers
// by assembling the settlement transaction, paying with the cash of its
// wallet and taking ownership of the asset under a fresh key.
type Buyer struct {
	cfg       protocol.Config
	wallet    *cash.Wallet
	policy    Policy
	secondary *protocol.Secondary
}

// NewBuyer creates a buyer and registers it as the handler of the trade
// endpoint.
func NewBuyer(m mino.Mino, cfg protocol.Config, wallet *cash.Wallet, policy Policy) (*Buyer, error) {
	buyer := &Buyer{
		cfg:    cfg,
		wallet: wallet,
		policy: policy,
	}

	buyer.secondary = protocol.NewSecondary(cfg, buyerHooks{buyer: buyer})

	_, err := m.CreateRPC(RPCName, buyer.secondary, protocol.MessageFactory{})
	if err != nil {
		return nil, xerrors.Errorf("couldn't create rpc: %v", err)
	}

	return buyer, nil
}

// GetProgress returns the progress tracker of the sessions of the buyer.
func (b *Buyer) GetProgress() *protocol.Progress {
	return b.secondary.GetProgress()
}

// buyerHooks assemble the settlement of one trade.
//
// - implements protocol.SecondaryHooks
type buyerHooks struct {
	buyer *Buyer
}

// ValidateTerms implements protocol.SecondaryHooks. It refuses an offer over
// the price limit of the policy.
func (h buyerHooks) ValidateTerms(sender ledger.Party, payload serde.Message) error {
	terms, ok := payload.(Terms)
	if !ok {
		return xerrors.Errorf("invalid payload of type '%T'", payload)
	}

	limit := h.buyer.policy.MaxPrice
	if limit.Quantity == 0 {
		return nil
	}

	price := terms.GetPrice()
	if price.Currency != limit.Currency {
		return protocol.RejectedTermsError{
			Reason: fmt.Sprintf("cannot pay in %s", price.Currency),
		}
	}

	if price.Quantity > limit.Quantity {
		return protocol.RejectedTermsError{
			Reason: fmt.Sprintf("price %v exceeds the limit %v", price, limit),
		}
	}

	return nil
}

// Assemble implements protocol.SecondaryHooks. It resolves the offered asset
// from the seller, then builds and signs the transaction moving the asset to
// a fresh key against the payment.
func (h buyerHooks) Assemble(ctx context.Context, peer mino.Address,
	sender ledger.Party, payload serde.Message) (tx.SignedTransaction, error) {

	var stx tx.SignedTransaction

	terms, ok := payload.(Terms)
	if !ok {
		return stx, xerrors.Errorf("invalid payload of type '%T'", payload)
	}

	cfg := h.buyer.cfg

	resolved, err := cfg.Resolver.Resolve(ctx, []ledger.StateRef{terms.GetAsset().Ref}, peer)
	if err != nil {
		return stx, xerrors.Errorf("couldn't resolve the offered asset: %v", err)
	}

	offered := resolved[0]

	builder := tx.NewBuilder(cfg.HashFactory)

	err = builder.SetTimeWindow(time.Now(), proposalWindow)
	if err != nil {
		return stx, xerrors.Errorf("couldn't set window: %v", err)
	}

	newOwner, err := cfg.Keys.FreshKey()
	if err != nil {
		return stx, xerrors.Errorf("couldn't make owner key: %v", err)
	}

	_, err = asset.GenerateMove(builder, offered, newOwner)
	if err != nil {
		return stx, xerrors.Errorf("couldn't generate move: %v", err)
	}

	changeOwner, err := cfg.Keys.FreshKey()
	if err != nil {
		return stx, xerrors.Errorf("couldn't make change key: %v", err)
	}

	owners, err := cash.GenerateSpend(builder, terms.GetPrice(), terms.GetPayTo(),
		h.buyer.wallet.List(), changeOwner)
	if err != nil {
		return stx, xerrors.Errorf("couldn't generate payment: %v", err)
	}

	for _, owner := range owners {
		signer, err := cfg.Keys.SignerFor(owner)
		if err != nil {
			return stx, xerrors.Errorf("couldn't find signer: %v", err)
		}

		err = builder.SignWith(signer)
		if err != nil {
			return stx, xerrors.Errorf("couldn't sign: %v", err)
		}
	}

	stx, err = builder.ToSignedTransaction(false)
	if err != nil {
		return stx, xerrors.Errorf("couldn't build transaction: %v", err)
	}

	return stx, nil
}

// Finalize implements protocol.SecondaryHooks. It updates the wallet with the
// change received and the cash spent.
func (h buyerHooks) Finalize(ctx context.Context, stx tx.SignedTransaction) error {
	err := h.buyer.wallet.Update(stx, func(key crypto.PublicKey) bool {
		_, err := h.buyer.cfg.Keys.SignerFor(key)
		return err == nil
	})
	if err != nil {
		return xerrors.Errorf("couldn't update wallet: %v", err)
	}

	return nil
}
