package minoch

import (
	"sync"

	"golang.org/x/xerrors"
)

// Manager is an orchestrator to manage the communication between the local
// instances of mino.
type Manager struct {
	sync.Mutex

	instances map[string]*Minoch
}

// NewManager creates a new empty manager.
func NewManager() *Manager {
	return &Manager{
		instances: make(map[string]*Minoch),
	}
}

func (m *Manager) get(addr address) (*Minoch, error) {
	m.Lock()
	defer m.Unlock()

	inst := m.instances[addr.id]
	if inst == nil {
		return nil, xerrors.Errorf("address <%s> not found", addr.id)
	}

	return inst, nil
}

func (m *Manager) insert(inst *Minoch) error {
	addr, ok := inst.GetAddress().(address)
	if !ok {
		return xerrors.Errorf("invalid address type '%T'", inst.GetAddress())
	}

	if addr.id == "" {
		return xerrors.New("identifier must not be empty")
	}

	m.Lock()
	defer m.Unlock()

	if _, found := m.instances[addr.id]; found {
		return xerrors.New("identifier already exists")
	}

	m.instances[addr.id] = inst

	return nil
}
