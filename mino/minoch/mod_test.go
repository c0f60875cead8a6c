package minoch

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/dvp/internal/testing/fake"
	"go.dedis.ch/dvp/mino"
	"go.dedis.ch/dvp/serde"
)

func TestAddress_Equal(t *testing.T) {
	addr := address{id: "A"}

	require.True(t, addr.Equal(address{id: "A"}))
	require.False(t, addr.Equal(address{id: "B"}))
	require.False(t, addr.Equal(fake.Address{}))
}

func TestAddress_MarshalText(t *testing.T) {
	addr := address{id: "A"}

	text, err := addr.MarshalText()
	require.NoError(t, err)
	require.Equal(t, []byte("A"), text)
}

func TestAddress_String(t *testing.T) {
	addr := address{id: "A"}

	require.Equal(t, "A", addr.String())
}

func TestAddressFactory_FromText(t *testing.T) {
	factory := AddressFactory{}

	addr := factory.FromText([]byte("A"))
	require.Equal(t, address{id: "A"}, addr)
}

func TestManager_Insert(t *testing.T) {
	manager := NewManager()

	_, err := NewMinoch(manager, "A")
	require.NoError(t, err)

	_, err = NewMinoch(manager, "A")
	require.EqualError(t, err, "manager refused: identifier already exists")

	_, err = NewMinoch(manager, "")
	require.EqualError(t, err, "manager refused: identifier must not be empty")
}

func TestManager_Get(t *testing.T) {
	manager := NewManager()

	inst, err := NewMinoch(manager, "A")
	require.NoError(t, err)

	found, err := manager.get(address{id: "A"})
	require.NoError(t, err)
	require.Equal(t, inst, found)

	_, err = manager.get(address{id: "B"})
	require.EqualError(t, err, "address <B> not found")
}

func TestMinoch_MustCreate(t *testing.T) {
	manager := NewManager()

	m := MustCreate(manager, "A")
	require.Equal(t, address{id: "A"}, m.GetAddress())

	require.Panics(t, func() { MustCreate(manager, "A") })
}

func TestMinoch_GetAddressFactory(t *testing.T) {
	m := MustCreate(NewManager(), "A")

	require.Equal(t, AddressFactory{}, m.GetAddressFactory())
}

func TestMinoch_WithSegment(t *testing.T) {
	m := MustCreate(NewManager(), "A")

	m2 := m.WithSegment("segment")
	require.Equal(t, m.GetAddress(), m2.GetAddress())

	rpc, err := m2.CreateRPC("test", mino.UnsupportedHandler{}, fake.MessageFactory{})
	require.NoError(t, err)
	require.Equal(t, "/segment/test", rpc.(*RPC).path)
}

func TestMinoch_CreateRPC(t *testing.T) {
	m := MustCreate(NewManager(), "A")

	_, err := m.CreateRPC("test", mino.UnsupportedHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	_, err = m.CreateRPC("test", mino.UnsupportedHandler{}, fake.MessageFactory{})
	require.EqualError(t, err, "rpc '/test' already exists")
}

func TestRPC_Call(t *testing.T) {
	manager := NewManager()

	m1 := MustCreate(manager, "A")
	m2 := MustCreate(manager, "B")

	rpc, err := m1.CreateRPC("test", echoHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	_, err = m2.CreateRPC("test", echoHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	ctx := context.Background()

	resps, err := rpc.(*RPC).Call(ctx, fake.Message{},
		mino.NewAddresses(m1.GetAddress(), m2.GetAddress()))
	require.NoError(t, err)

	count := 0
	for resp := range resps {
		msg, err := resp.GetMessageOrError()
		require.NoError(t, err)
		require.Equal(t, fake.Message{}, msg)
		count++
	}

	require.Equal(t, 2, count)
}

func TestRPC_Call_Failures(t *testing.T) {
	manager := NewManager()

	m1 := MustCreate(manager, "A")
	m2 := MustCreate(manager, "B")
	m3 := MustCreate(manager, "C")

	rpc, err := m1.CreateRPC("test", echoHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	_, err = m2.CreateRPC("test", mino.UnsupportedHandler{}, fake.NewBadMessageFactory())
	require.NoError(t, err)

	ctx := context.Background()

	resps, err := rpc.(*RPC).Call(ctx, fake.Message{},
		mino.NewAddresses(address{id: "unknown"}, m2.GetAddress(), m3.GetAddress()))
	require.NoError(t, err)

	errors := map[string]string{}
	for resp := range resps {
		_, err := resp.GetMessageOrError()
		require.Error(t, err)
		errors[resp.GetFrom().String()] = err.Error()
	}

	require.Equal(t, "couldn't find peer: address <unknown> not found", errors["unknown"])
	require.Equal(t, fake.Err("couldn't deserialize"), errors["B"])
	require.Equal(t, "unknown rpc '/test'", errors["C"])
}

func TestRPC_Stream(t *testing.T) {
	manager := NewManager()

	m1 := MustCreate(manager, "A")
	m2 := MustCreate(manager, "B")

	rpc, err := m1.CreateRPC("test", echoHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	_, err = m2.CreateRPC("test", echoHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	out, in, err := rpc.(*RPC).Stream(ctx, mino.NewAddresses(m2.GetAddress()))
	require.NoError(t, err)

	err = <-out.Send(fake.Message{}, m2.GetAddress())
	require.NoError(t, err)

	from, msg, err := in.Recv(ctx)
	require.NoError(t, err)
	require.True(t, from.Equal(m2.GetAddress()))
	require.Equal(t, fake.Message{}, msg)

	cancel()

	_, _, err = in.Recv(context.Background())
	require.Equal(t, io.EOF, err)
}

func TestRPC_Stream_Failures(t *testing.T) {
	manager := NewManager()

	m1 := MustCreate(manager, "A")
	m2 := MustCreate(manager, "B")

	rpc, err := m1.CreateRPC("test", echoHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _, err = rpc.(*RPC).Stream(ctx, mino.NewAddresses(address{id: "unknown"}))
	require.EqualError(t, err, "couldn't find peer: address <unknown> not found")

	_, _, err = rpc.(*RPC).Stream(ctx, mino.NewAddresses(m2.GetAddress()))
	require.EqualError(t, err, "unknown rpc '/test'")
}

// echoHandler replies to a request with the message it received, and echoes
// every stream message back to its sender.
type echoHandler struct {
	mino.UnsupportedHandler
}

func (h echoHandler) Process(req mino.Request) (serde.Message, error) {
	return req.Message, nil
}

func (h echoHandler) Stream(out mino.Sender, in mino.Receiver) error {
	for {
		from, msg, err := in.Recv(context.Background())
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		err = <-out.Send(msg, from)
		if err != nil {
			return err
		}
	}
}
