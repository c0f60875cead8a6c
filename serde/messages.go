package serde

import (
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/xerrors"
)

var defaultRegistry = NewMessageRegistry()

// RegisterMessage registers the message implementation and its factory in the
// default registry, so that a message nested in another one can be serialized
// alongside its type key and instantiated back.
func RegisterMessage(m Message, f Factory) {
	defaultRegistry.Register(m, f)
}

// KeyOf returns the unique key associated to the message type.
func KeyOf(m Message) string {
	return defaultRegistry.KeyOf(m)
}

// FactoryOf returns the factory associated to the key if the message has been
// registered beforehand, otherwise it returns an error.
func FactoryOf(key string) (Factory, error) {
	return defaultRegistry.FactoryOf(key)
}

// MessageRegistry is a registry of message types, so that a message can be
// serialized with its type key and instantiated from it.
type MessageRegistry struct {
	sync.Mutex

	factories map[string]Factory
}

// NewMessageRegistry creates a new empty registry.
func NewMessageRegistry() *MessageRegistry {
	return &MessageRegistry{
		factories: make(map[string]Factory),
	}
}

// Register registers the message type and its factory.
func (reg *MessageRegistry) Register(m Message, f Factory) {
	reg.Lock()
	reg.factories[reg.KeyOf(m)] = f
	reg.Unlock()
}

// KeyOf returns the unique key associated to the message type.
func (reg *MessageRegistry) KeyOf(m Message) string {
	typ := reflect.TypeOf(m)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}

	return fmt.Sprintf("%s.%s", typ.PkgPath(), typ.Name())
}

// FactoryOf returns the factory associated to the key, or an error if the
// message has not been registered.
func (reg *MessageRegistry) FactoryOf(key string) (Factory, error) {
	reg.Lock()
	defer reg.Unlock()

	f := reg.factories[key]
	if f == nil {
		return nil, xerrors.Errorf("message <%s> is not registered", key)
	}

	return f, nil
}
