// Package oracle implements a rate oracle and its client.
//
// The oracle answers queries for a rate observed at a given date. Both
// parties of a deal query the same oracle so that they apply the same fix.
package oracle

import (
	"sync"

	"go.dedis.ch/dvp/contracts/deal"
	"go.dedis.ch/dvp/mino"
	"go.dedis.ch/dvp/serde"
	"go.dedis.ch/dvp/serde/registry"
	"golang.org/x/xerrors"
)

var msgFormats = registry.NewSimpleRegistry()

// RegisterMessageFormat registers the engine for the provided format.
func RegisterMessageFormat(format serde.Format, engine serde.FormatEngine) {
	msgFormats.Register(format, engine)
}

// RPCName is the name of the oracle endpoint.
const RPCName = "oracle"

// Service answers rate queries from a table of observations.
//
// - implements mino.Handler
type Service struct {
	mino.UnsupportedHandler

	sync.Mutex
	rates map[string]map[int64]int64
}

// NewService creates an oracle with an empty rate table.
func NewService() *Service {
	return &Service{
		rates: make(map[string]map[int64]int64),
	}
}

// Set records the observation so that subsequent queries for it will be
// answered.
func (srv *Service) Set(fix deal.Fix) {
	srv.Lock()
	defer srv.Unlock()

	table, found := srv.rates[fix.Of.Name]
	if !found {
		table = make(map[int64]int64)
		srv.rates[fix.Of.Name] = table
	}

	table[fix.Of.Date.UnixNano()] = fix.ValueBps
}

// Process implements mino.Handler. It answers the query with the observation,
// or an error when the rate is unknown.
func (srv *Service) Process(req mino.Request) (serde.Message, error) {
	in, ok := req.Message.(Request)
	if !ok {
		return nil, xerrors.Errorf("invalid request of type '%T'", req.Message)
	}

	of := in.GetFixOf()

	srv.Lock()
	defer srv.Unlock()

	table, found := srv.rates[of.Name]
	if !found {
		return nil, xerrors.Errorf("unknown rate '%s'", of.Name)
	}

	value, found := table[of.Date.UnixNano()]
	if !found {
		return nil, xerrors.Errorf("no observation of '%s' at %v", of.Name, of.Date)
	}

	return NewAnswer(deal.Fix{Of: of, ValueBps: value}), nil
}

// Client queries a distant oracle.
type Client struct {
	rpc  mino.RPC
	addr mino.Address
}

// NewClient creates a client that will contact the oracle at the address
// through the overlay.
func NewClient(m mino.Mino, addr mino.Address) (Client, error) {
	rpc, err := m.CreateRPC(RPCName, mino.UnsupportedHandler{}, MessageFactory{})
	if err != nil {
		return Client{}, xerrors.Errorf("couldn't create rpc: %v", err)
	}

	return Client{rpc: rpc, addr: addr}, nil
}
