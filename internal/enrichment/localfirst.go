package enrichment

import (
	"context"

	"github.com/vindiesel/vin-engine/pkg/vin"
)

// Update is one step of a local-first decode.
type Update struct {
	Result
	// Final is set on the last update the channel will carry.
	Final bool `json:"final"`
}

// DecodeLocalFirst validates raw and returns a channel that yields the local
// decode immediately, then at most one gateway-merged update, then closes.
// If ctx ends before the gateway answers, the remote result is dropped and the
// channel closes after the local update.
func (s *Service) DecodeLocalFirst(ctx context.Context, raw string, method vin.ScanMethod) (<-chan Update, error) {
	local, err := s.DecodeLocal(raw, method)
	if err != nil {
		return nil, err
	}

	updates := make(chan Update, 2)
	if s.gateway == nil {
		updates <- Update{Result: local, Final: true}
		close(updates)
		return updates, nil
	}

	updates <- Update{Result: local}

	go func() {
		defer close(updates)

		remote, cached, remoteErr := s.lookup(ctx, local.Local.VIN)
		if ctx.Err() != nil {
			s.logger.WithContext(ctx).Debug().Str("vin", local.Local.VIN).Msg("decode abandoned, discarding remote result")
			return
		}
		updates <- Update{Result: s.merge(ctx, local, remote, cached, remoteErr), Final: true}
	}()

	return updates, nil
}
