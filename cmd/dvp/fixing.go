package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"go.dedis.ch/dvp/contracts/cash"
	"go.dedis.ch/dvp/contracts/deal"
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/mino/minoch"
	"go.dedis.ch/dvp/oracle"
	"go.dedis.ch/dvp/protocol"
	"go.dedis.ch/dvp/protocol/dealflow"
	"golang.org/x/xerrors"
)

// fixingAction creates a rate agreement between two participants and applies
// its first fix with a rate observed from a shared oracle.
func fixingAction(c *cli.Context) error {
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

	alice, err := newNode(mgr, "alice", f)
	if err != nil {
		return xerrors.Errorf("couldn't create alice: %v", err)
	}

	bob, err := newNode(mgr, "bob", f)
	if err != nil {
		return xerrors.Errorf("couldn't create bob: %v", err)
	}

	for _, n := range []*node{alice, bob} {
		client, err := clientFor(n)
		if err != nil {
			return xerrors.Errorf("couldn't create notary client: %v", err)
		}

		n.cfg.Notary = client
	}

	// The oracle knows the rate of the first fixing date.
	fixingDate := time.Now().UTC().Truncate(24 * time.Hour)

	oracleMino, err := minoch.NewMinoch(mgr, "oracle")
	if err != nil {
		return xerrors.Errorf("couldn't create oracle overlay: %v", err)
	}

	oracleSrv := oracle.NewService()
	oracleSrv.Set(deal.Fix{
		Of:       deal.FixOf{Name: s.Deal.OracleName, Date: fixingDate},
		ValueBps: s.Deal.RateBps,
	})

	_, err = oracleMino.CreateRPC(oracle.RPCName, oracleSrv, oracle.MessageFactory{})
	if err != nil {
		return xerrors.Errorf("couldn't create oracle rpc: %v", err)
	}

	aliceRates, err := oracle.NewClient(alice.mino, oracleMino.GetAddress())
	if err != nil {
		return xerrors.Errorf("couldn't create oracle client: %v", err)
	}

	bobRates, err := oracle.NewClient(bob.mino, oracleMino.GetAddress())
	if err != nil {
		return xerrors.Errorf("couldn't create oracle client: %v", err)
	}

	// Create the agreement.
	aliceBook := dealflow.NewBook(f)
	bobBook := dealflow.NewBook(f)

	notional := cash.NewAmount(s.Deal.Notional, s.Deal.Currency)

	d := deal.NewRateAgreement(s.Deal.Name, alice.party, bob.party, notional,
		s.Deal.FixedRateBps, s.Deal.OracleName, []time.Time{fixingDate})

	acceptor, err := dealflow.NewAcceptor(bob.mino, bob.cfg, bobBook)
	if err != nil {
		return xerrors.Errorf("couldn't create acceptor: %v", err)
	}

	instigator, err := dealflow.NewInstigator(alice.mino, alice.cfg, aliceBook)
	if err != nil {
		return xerrors.Errorf("couldn't create instigator: %v", err)
	}

	steps := acceptor.GetProgress().Watch(ctx)

	agreeTx, err := instigator.Propose(ctx, d, notaryParty, bob.mino.GetAddress())
	if err != nil {
		return xerrors.Errorf("couldn't create deal: %v", err)
	}

	// Wait for the acceptor to record the agreement in its book.
	for step := range steps {
		if step == protocol.StepDone {
			break
		}
	}

	agreeHash, err := agreeTx.Hash(f)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "agreed %s in transaction %x\n", s.Deal.Name, agreeHash)

	// Apply the first fix, with the roles decided by the deal.
	fixerNode, fixerRates, fixerBook := alice, aliceRates, aliceBook
	floaterNode, floaterRates, floaterBook := bob, bobRates, bobBook

	if dealflow.Fixer(d).GetName() == bob.party.GetName() {
		fixerNode, fixerRates, fixerBook = bob, bobRates, bobBook
		floaterNode, floaterRates, floaterBook = alice, aliceRates, aliceBook
	}

	_, err = dealflow.NewDealFixer(fixerNode.mino, fixerNode.cfg, fixerRates, fixerBook)
	if err != nil {
		return xerrors.Errorf("couldn't create fixer: %v", err)
	}

	floater, err := dealflow.NewFloater(floaterNode.mino, floaterNode.cfg, floaterRates, floaterBook)
	if err != nil {
		return xerrors.Errorf("couldn't create floater: %v", err)
	}

	fixTx, err := floater.FixNext(ctx, s.Deal.Name, fixerNode.mino.GetAddress())
	if err != nil {
		return xerrors.Errorf("couldn't fix the deal: %v", err)
	}

	fixHash, err := fixTx.Hash(f)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "fixed %s at %d bps in transaction %x\n",
		s.Deal.Name, s.Deal.RateBps, fixHash)

	return nil
}
