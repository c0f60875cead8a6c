// Package json provides the JSON helpers for the common ledger types, so that
// the formats of the different wire messages share the same encoding of
// parties and state references.
package json

import (
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/crypto/schnorr"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

// Party is the JSON message of a ledger party.
type Party struct {
	Name      string
	PublicKey []byte
}

// StateRef is the JSON message of a state reference.
type StateRef struct {
	TxHash []byte
	Index  uint32
}

// EncodeParty returns the JSON message of the party.
func EncodeParty(p ledger.Party) (Party, error) {
	buffer, err := p.GetPublicKey().MarshalBinary()
	if err != nil {
		return Party{}, xerrors.Errorf("couldn't marshal public key: %v", err)
	}

	return Party{
		Name:      p.GetName(),
		PublicKey: buffer,
	}, nil
}

// DecodeParty returns the party of the JSON message.
func DecodeParty(m Party) (ledger.Party, error) {
	pubkey, err := schnorr.NewPublicKey(m.PublicKey)
	if err != nil {
		return ledger.Party{}, xerrors.Errorf("couldn't create public key: %v", err)
	}

	return ledger.NewParty(m.Name, pubkey), nil
}

// EncodeRef returns the JSON message of the state reference.
func EncodeRef(ref ledger.StateRef) StateRef {
	return StateRef{
		TxHash: ref.GetTxHash(),
		Index:  ref.GetIndex(),
	}
}

// DecodeRef returns the state reference of the JSON message.
func DecodeRef(m StateRef) ledger.StateRef {
	return ledger.NewStateRef(m.TxHash, m.Index)
}

// Message is the JSON envelope of a registered serde message, so that the
// concrete type can be instantiated back when decoding.
type Message struct {
	Key  string
	Data []byte
}

// EncodeMessage returns the JSON envelope of the message.
func EncodeMessage(ctx serde.Context, msg serde.Message) (Message, error) {
	data, err := msg.Serialize(ctx)
	if err != nil {
		return Message{}, xerrors.Errorf("couldn't serialize message: %v", err)
	}

	return Message{
		Key:  serde.KeyOf(msg),
		Data: data,
	}, nil
}

// DecodeMessage returns the message of the JSON envelope by looking up the
// factory registered for the key.
func DecodeMessage(ctx serde.Context, m Message) (serde.Message, error) {
	factory, err := serde.FactoryOf(m.Key)
	if err != nil {
		return nil, xerrors.Errorf("couldn't find factory: %v", err)
	}

	msg, err := factory.Deserialize(ctx, m.Data)
	if err != nil {
		return nil, xerrors.Errorf("couldn't deserialize message: %v", err)
	}

	return msg, nil
}

// EncodeKey returns the marshaled public key.
func EncodeKey(key crypto.PublicKey) ([]byte, error) {
	buffer, err := key.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal key: %v", err)
	}

	return buffer, nil
}

// DecodeKey returns the public key unmarshaled from the bytes.
func DecodeKey(data []byte) (crypto.PublicKey, error) {
	pubkey, err := schnorr.NewPublicKey(data)
	if err != nil {
		return nil, xerrors.Errorf("couldn't create public key: %v", err)
	}

	return pubkey, nil
}
