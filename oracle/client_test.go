package oracle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/dvp/contracts/deal"
	"go.dedis.ch/dvp/mino/minoch"
	"go.dedis.ch/dvp/oracle"
)

func TestClient_GetFix(t *testing.T) {
	mgr := minoch.NewManager()

	oracleMino := minoch.MustCreate(mgr, "oracle")

	of := deal.FixOf{
		Name: "LIBOR-3M",
		Date: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
	}

	srv := oracle.NewService()
	srv.Set(deal.Fix{Of: of, ValueBps: 140})

	_, err := oracleMino.CreateRPC(oracle.RPCName, srv, oracle.MessageFactory{})
	require.NoError(t, err)

	clientMino := minoch.MustCreate(mgr, "client")

	client, err := oracle.NewClient(clientMino, oracleMino.GetAddress())
	require.NoError(t, err)

	ctx := context.Background()

	fix, err := client.GetFix(ctx, of)
	require.NoError(t, err)
	require.Equal(t, int64(140), fix.ValueBps)
	require.True(t, fix.Of.Equal(of))

	_, err = client.GetFix(ctx, deal.FixOf{Name: "LIBOR-6M", Date: of.Date})
	require.EqualError(t, err,
		"oracle refused the query: couldn't process request: unknown rate 'LIBOR-6M'")
}
