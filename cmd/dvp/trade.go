package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"go.dedis.ch/dvp/contracts/asset"
	"go.dedis.ch/dvp/contracts/cash"
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/mino/minoch"
	"go.dedis.ch/dvp/protocol/trade"
	"golang.org/x/xerrors"
)

// tradeAction settles the sale of an asset against cash between a seller and
// a buyer sharing a notary, with a third participant observing the outcome.
func tradeAction(c *cli.Context) error {
	s, err := loadScenario(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mgr := minoch.NewManager()
	f := crypto.NewSha256Factory()

	notaryParty, clientFor, err := notaryNode(mgr, f)
	if err != nil {
		return xerrors.Errorf("couldn't create notary: %v", err)
	}

	sellerNode, err := newNode(mgr, "seller", f)
	if err != nil {
		return xerrors.Errorf("couldn't create seller: %v", err)
	}

	buyerNode, err := newNode(mgr, "buyer", f)
	if err != nil {
		return xerrors.Errorf("couldn't create buyer: %v", err)
	}

	observerNode, err := newNode(mgr, "observer", f)
	if err != nil {
		return xerrors.Errorf("couldn't create observer: %v", err)
	}

	sellerNotary, err := clientFor(sellerNode)
	if err != nil {
		return xerrors.Errorf("couldn't create notary client: %v", err)
	}

	sellerNode.cfg.Notary = sellerNotary

	buyerNotary, err := clientFor(buyerNode)
	if err != nil {
		return xerrors.Errorf("couldn't create notary client: %v", err)
	}

	buyerNode.cfg.Notary = buyerNotary

	_, err = trade.NewObserver(observerNode.mino, observerNode.store, f)
	if err != nil {
		return xerrors.Errorf("couldn't create observer endpoint: %v", err)
	}

	// Fund the buyer with cash and the seller with the asset.
	funding := cash.NewAmount(s.Funding.Quantity, s.Funding.Currency)

	buyerKey, err := buyerNode.keys.FreshKey()
	if err != nil {
		return xerrors.Errorf("couldn't make buyer key: %v", err)
	}

	fundingTx, err := issue(ctx, buyerNode, buyerNotary, notaryParty,
		func(b *tx.Builder, issuer crypto.PublicKey) error {
			return cash.GenerateIssue(b, funding, buyerKey, notaryParty, issuer)
		})
	if err != nil {
		return xerrors.Errorf("couldn't fund buyer: %v", err)
	}

	fundingRefs, err := refsOf(fundingTx, f)
	if err != nil {
		return err
	}

	err = buyerNode.wallet.Add(fundingRefs[0])
	if err != nil {
		return xerrors.Errorf("couldn't fill wallet: %v", err)
	}

	sellerKey, err := sellerNode.keys.FreshKey()
	if err != nil {
		return xerrors.Errorf("couldn't make seller key: %v", err)
	}

	assetTx, err := issue(ctx, sellerNode, sellerNotary, notaryParty,
		func(b *tx.Builder, issuer crypto.PublicKey) error {
			return asset.GenerateIssue(b, s.Asset, sellerKey, notaryParty, issuer)
		})
	if err != nil {
		return xerrors.Errorf("couldn't issue asset: %v", err)
	}

	assetRefs, err := refsOf(assetTx, f)
	if err != nil {
		return err
	}

	// Run the settlement.
	_, err = trade.NewBuyer(buyerNode.mino, buyerNode.cfg, buyerNode.wallet, trade.Policy{})
	if err != nil {
		return xerrors.Errorf("couldn't create buyer endpoint: %v", err)
	}

	seller, err := trade.NewSeller(sellerNode.mino, sellerNode.cfg, sellerNode.wallet,
		observerNode.mino.GetAddress())
	if err != nil {
		return xerrors.Errorf("couldn't create seller: %v", err)
	}

	price := cash.NewAmount(s.Price.Quantity, s.Price.Currency)

	stx, err := seller.Sell(ctx, assetRefs[0], price, buyerNode.mino.GetAddress())
	if err != nil {
		return xerrors.Errorf("settlement failed: %v", err)
	}

	hash, err := stx.Hash(f)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "settled %s for %v in transaction %x\n", s.Asset, price, hash)
	fmt.Fprintf(c.App.Writer, "seller balance: %v\n", sellerNode.wallet.Balance(price.Currency))
	fmt.Fprintf(c.App.Writer, "buyer balance: %v\n", buyerNode.wallet.Balance(price.Currency))

	return nil
}
