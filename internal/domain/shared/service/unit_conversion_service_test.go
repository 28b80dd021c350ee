package service

import (
	"errors"
	"math"
	"testing"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitConversionService_UnitsFromBoxes(t *testing.T) {
	svc := NewUnitConversionService()

	tests := []struct {
		name     string
		boxQty   int64
		packSize int64
		want     int64
		wantErr  bool
	}{
		{name: "ten boxes of 24", boxQty: 10, packSize: 24, want: 240},
		{name: "zero boxes", boxQty: 0, packSize: 12, want: 0},
		{name: "pack size one", boxQty: 7, packSize: 1, want: 7},
		{name: "negative boxes", boxQty: -1, packSize: 12, wantErr: true},
		{name: "zero pack size", boxQty: 3, packSize: 0, wantErr: true},
		{name: "negative pack size", boxQty: 3, packSize: -4, wantErr: true},
		{name: "overflow", boxQty: math.MaxInt64 / 2, packSize: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.UnitsFromBoxes(tt.boxQty, tt.packSize)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, shared.ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnitConversionService_BoxesFromUnits(t *testing.T) {
	svc := NewUnitConversionService()

	got, err := svc.BoxesFromUnits(50, 12)
	require.NoError(t, err)
	assert.Equal(t, BoxBreakdown{Boxes: 4, Remainder: 2}, got)

	got, err = svc.BoxesFromUnits(5, 12)
	require.NoError(t, err)
	assert.Equal(t, BoxBreakdown{Boxes: 0, Remainder: 5}, got)

	_, err = svc.BoxesFromUnits(-1, 12)
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.BoxesFromUnits(10, 0)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestUnitConversionService_RoundTrip(t *testing.T) {
	svc := NewUnitConversionService()

	for p := int64(1); p <= 50; p++ {
		for b := int64(0); b <= 200; b++ {
			units, err := svc.UnitsFromBoxes(b, p)
			require.NoError(t, err)
			back, err := svc.BoxesFromUnits(units, p)
			require.NoError(t, err)
			require.Equal(t, BoxBreakdown{Boxes: b, Remainder: 0}, back, "b=%d p=%d", b, p)
		}
	}
}

func TestUnitConversionService_CartonsFromBoxes(t *testing.T) {
	svc := NewUnitConversionService()

	tests := []struct {
		boxQty, perCarton, want int64
	}{
		{0, 6, 0},
		{1, 6, 1},
		{6, 6, 1},
		{7, 6, 2},
		{12, 6, 2},
		{13, 1, 13},
	}
	for _, tt := range tests {
		got, err := svc.CartonsFromBoxes(tt.boxQty, tt.perCarton)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "boxes=%d per=%d", tt.boxQty, tt.perCarton)
	}

	_, err := svc.CartonsFromBoxes(5, 0)
	assert.True(t, errors.Is(err, shared.ErrValidation))
	_, err = svc.CartonsFromBoxes(-5, 2)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestUnitConversionService_LineTotal(t *testing.T) {
	svc := NewUnitConversionService()

	total, err := svc.LineTotal(3, decimal.RequireFromString("120.50"), 4, decimal.RequireFromString("10.25"))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("402.50").Equal(total), total.String())

	_, err = svc.LineTotal(-1, decimal.NewFromInt(1), 0, decimal.Zero)
	assert.Error(t, err)
	_, err = svc.LineTotal(1, decimal.NewFromInt(-1), 0, decimal.Zero)
	assert.Error(t, err)
	_, err = svc.LineTotal(1, decimal.NewFromInt(1), -2, decimal.Zero)
	assert.Error(t, err)
}

func TestUnitConversionService_FormatQuantity(t *testing.T) {
	svc := NewUnitConversionService()

	tests := []struct {
		units, pack int64
		want        string
	}{
		{0, 10, "0 units"},
		{1, 10, "1 unit"},
		{5, 10, "5 units"},
		{10, 10, "1 box"},
		{30, 10, "3 boxes"},
		{32, 10, "3 boxes + 2 units"},
		{11, 10, "1 box + 1 unit"},
	}
	for _, tt := range tests {
		got, err := svc.FormatQuantity(tt.units, tt.pack)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	s, err := svc.FormatCartons(12, 6)
	require.NoError(t, err)
	assert.Equal(t, "2 cartons (12 boxes)", s)

	s, err = svc.FormatCartons(1, 6)
	require.NoError(t, err)
	assert.Equal(t, "1 carton (1 box)", s)
}
