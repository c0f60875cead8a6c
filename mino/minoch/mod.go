// Package minoch is an implementation of mino that is using channels and a
// local manager to exchange messages.
//
// Because it is using only Go channels to communicate, this implementation can
// only be used by multiple instances in the same process. It implements the
// point-to-point delivery contract of the transport: a message is either
// delivered to the recipient, or an error is returned to the sender.
package minoch

import (
	"fmt"
	"sync"

	"go.dedis.ch/dvp"
	"go.dedis.ch/dvp/mino"
	"go.dedis.ch/dvp/serde"
	"go.dedis.ch/dvp/serde/json"
	"golang.org/x/xerrors"
)

// Minoch is an implementation of the Mino interface using channels. Each
// instance must have a unique string assigned to it.
//
// - implements mino.Mino
type Minoch struct {
	sync.Mutex

	manager    *Manager
	identifier string
	path       string
	rpcs       map[string]*RPC
	context    serde.Context
}

// NewMinoch creates a new instance of a local mino instance.
func NewMinoch(manager *Manager, identifier string) (*Minoch, error) {
	inst := &Minoch{
		manager:    manager,
		identifier: identifier,
		path:       "",
		rpcs:       make(map[string]*RPC),
		context:    json.NewContext(),
	}

	err := manager.insert(inst)
	if err != nil {
		return nil, xerrors.Errorf("manager refused: %v", err.Error())
	}

	dvp.Logger.Trace().Msgf("new instance with identifier %s", identifier)

	return inst, nil
}

// MustCreate creates a new minoch instance and panics if the identifier is
// refused by the manager.
func MustCreate(manager *Manager, identifier string) *Minoch {
	m, err := NewMinoch(manager, identifier)
	if err != nil {
		panic(err)
	}

	return m
}

// GetAddressFactory implements mino.Mino. It returns the address factory.
func (m *Minoch) GetAddressFactory() mino.AddressFactory {
	return AddressFactory{}
}

// GetAddress implements mino.Mino. It returns the address that other
// participants should use to contact this instance.
func (m *Minoch) GetAddress() mino.Address {
	return address{id: m.identifier}
}

// WithSegment implements mino.Mino. It returns a new instance that will have
// its URI path extended with the provided segment.
func (m *Minoch) WithSegment(segment string) mino.Mino {
	newMinoch := &Minoch{
		manager:    m.manager,
		identifier: m.identifier,
		path:       fmt.Sprintf("%s/%s", m.path, segment),
		rpcs:       m.rpcs,
		context:    m.context,
	}

	return newMinoch
}

// CreateRPC implements mino.Mino. It creates an RPC that can send to and
// receive from the unique path.
func (m *Minoch) CreateRPC(name string, h mino.Handler, f serde.Factory) (mino.RPC, error) {
	rpc := &RPC{
		manager: m.manager,
		addr:    address{id: m.identifier},
		path:    fmt.Sprintf("%s/%s", m.path, name),
		h:       h,
		context: m.context,
		factory: f,
	}

	m.Lock()
	defer m.Unlock()

	_, found := m.rpcs[rpc.path]
	if found {
		return nil, xerrors.Errorf("rpc '%s' already exists", rpc.path)
	}

	m.rpcs[rpc.path] = rpc

	return rpc, nil
}
