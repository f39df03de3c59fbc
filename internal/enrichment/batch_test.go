package enrichment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vindiesel/vin-engine/pkg/vin"
)

func TestDecodeBatch(t *testing.T) {
	gw := new(mockGateway)
	gw.On("DecodeRemote", mock.Anything, hondaVIN).Return(vin.RemoteInfo{Make: "HONDA"}, nil)
	gw.On("DecodeRemote", mock.Anything, "1M8GDM9AXKP042788").
		Return(vin.RemoteInfo{}, vin.NewGatewayError(vin.FailureUnknownVIN, "1M8GDM9AXKP042788", nil))

	svc, _ := newTestService(t, gw)
	inputs := []string{hondaVIN, "bad", "1M8GDM9AXKP042788"}

	var seen []int
	items, err := svc.DecodeBatch(context.Background(), inputs, vin.ScanManual, 2, func(i int, _ BatchItem) {
		seen = append(seen, i)
	})
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, hondaVIN, items[0].Input)
	assert.Equal(t, "HONDA", items[0].Result.Vehicle.Make)
	assert.NoError(t, items[0].Err)

	assert.ErrorIs(t, items[1].Err, ErrInvalidVIN)

	assert.True(t, items[2].Result.Degraded)
	assert.Equal(t, string(vin.FailureUnknownVIN), items[2].Result.DegradedReason)

	assert.ElementsMatch(t, []int{0, 1, 2}, seen)
}

func TestDecodeBatch_Cancelled(t *testing.T) {
	svc := NewService(Config{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.DecodeBatch(ctx, []string{hondaVIN}, vin.ScanManual, 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
