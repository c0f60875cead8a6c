package oracle

import (
	"context"

	"go.dedis.ch/dvp/contracts/deal"
	"go.dedis.ch/dvp/mino"
	"golang.org/x/xerrors"
)

// GetFix queries the oracle for the observation and returns it.
func (c Client) GetFix(ctx context.Context, of deal.FixOf) (deal.Fix, error) {
	resps, err := c.rpc.Call(ctx, NewRequest(of), mino.NewAddresses(c.addr))
	if err != nil {
		return deal.Fix{}, xerrors.Errorf("couldn't call oracle: %v", err)
	}

	select {
	case resp, more := <-resps:
		if !more {
			return deal.Fix{}, xerrors.New("oracle closed the connection")
		}

		msg, err := resp.GetMessageOrError()
		if err != nil {
			return deal.Fix{}, xerrors.Errorf("oracle refused the query: %v", err)
		}

		answer, ok := msg.(Answer)
		if !ok {
			return deal.Fix{}, xerrors.Errorf("invalid answer of type '%T'", msg)
		}

		return answer.GetFix(), nil
	case <-ctx.Done():
		return deal.Fix{}, ctx.Err()
	}
}
