package oracle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/dvp/contracts/deal"
	"go.dedis.ch/dvp/internal/testing/fake"
	"go.dedis.ch/dvp/mino"
)

var testDate = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

func TestService_Process(t *testing.T) {
	srv := NewService()

	of := deal.FixOf{Name: "LIBOR-3M", Date: testDate}

	srv.Set(deal.Fix{Of: of, ValueBps: 140})

	resp, err := srv.Process(mino.Request{Message: NewRequest(of)})
	require.NoError(t, err)

	answer, ok := resp.(Answer)
	require.True(t, ok)
	require.Equal(t, deal.Fix{Of: of, ValueBps: 140}, answer.GetFix())

	// A second observation of the same rate overwrites the first.
	srv.Set(deal.Fix{Of: of, ValueBps: 150})

	resp, err = srv.Process(mino.Request{Message: NewRequest(of)})
	require.NoError(t, err)
	require.Equal(t, int64(150), resp.(Answer).GetFix().ValueBps)
}

func TestService_Process_Failures(t *testing.T) {
	srv := NewService()

	_, err := srv.Process(mino.Request{Message: fake.Message{}})
	require.EqualError(t, err, "invalid request of type 'fake.Message'")

	of := deal.FixOf{Name: "LIBOR-3M", Date: testDate}

	_, err = srv.Process(mino.Request{Message: NewRequest(of)})
	require.EqualError(t, err, "unknown rate 'LIBOR-3M'")

	srv.Set(deal.Fix{Of: deal.FixOf{Name: "LIBOR-3M", Date: testDate.AddDate(0, 3, 0)}, ValueBps: 140})

	_, err = srv.Process(mino.Request{Message: NewRequest(of)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no observation of 'LIBOR-3M' at")
}

func TestRequest_GetFixOf(t *testing.T) {
	of := deal.FixOf{Name: "LIBOR-3M", Date: testDate}

	require.Equal(t, of, NewRequest(of).GetFixOf())
}

func TestAnswer_GetFix(t *testing.T) {
	fix := deal.Fix{Of: deal.FixOf{Name: "LIBOR-3M", Date: testDate}, ValueBps: 140}

	require.Equal(t, fix, NewAnswer(fix).GetFix())
}
