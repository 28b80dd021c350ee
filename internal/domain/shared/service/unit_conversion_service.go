package service

import (
	"fmt"
	"math"
	"strconv"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// BoxBreakdown is a unit quantity split into whole boxes and loose units
type BoxBreakdown struct {
	Boxes     int64 `json:"boxes"`
	Remainder int64 `json:"remainder"`
}

// UnitConversionService converts between loose units, boxes and cartons.
// It holds no state and every method is deterministic.
type UnitConversionService struct{}

// NewUnitConversionService creates a new unit conversion service
func NewUnitConversionService() *UnitConversionService {
	return &UnitConversionService{}
}

// UnitsFromBoxes converts a box count into loose units (boxQty × packSize)
func (s *UnitConversionService) UnitsFromBoxes(boxQty, packSize int64) (int64, error) {
	if boxQty < 0 {
		return 0, negativeQuantity("box_qty", boxQty)
	}
	if err := validatePackSize(packSize); err != nil {
		return 0, err
	}
	if boxQty > math.MaxInt64/packSize {
		return 0, shared.NewValidationError("QUANTITY_OVERFLOW", "Unit quantity exceeds the supported range").
			WithDetail("box_qty", strconv.FormatInt(boxQty, 10)).
			WithDetail("pack_size", strconv.FormatInt(packSize, 10))
	}
	return boxQty * packSize, nil
}

// BoxesFromUnits splits loose units into whole boxes and a remainder
func (s *UnitConversionService) BoxesFromUnits(totalUnits, packSize int64) (BoxBreakdown, error) {
	if totalUnits < 0 {
		return BoxBreakdown{}, negativeQuantity("total_units", totalUnits)
	}
	if err := validatePackSize(packSize); err != nil {
		return BoxBreakdown{}, err
	}
	return BoxBreakdown{
		Boxes:     totalUnits / packSize,
		Remainder: totalUnits % packSize,
	}, nil
}

// CartonsFromBoxes returns the number of cartons needed to hold boxQty boxes
func (s *UnitConversionService) CartonsFromBoxes(boxQty, boxesPerCarton int64) (int64, error) {
	if boxQty < 0 {
		return 0, negativeQuantity("box_qty", boxQty)
	}
	if boxesPerCarton <= 0 {
		return 0, shared.NewValidationError("INVALID_BOXES_PER_CARTON", "Boxes per carton must be positive").
			WithDetail("boxes_per_carton", strconv.FormatInt(boxesPerCarton, 10))
	}
	cartons := boxQty / boxesPerCarton
	if boxQty%boxesPerCarton != 0 {
		cartons++
	}
	return cartons, nil
}

// LineTotal computes boxQty×boxRate + unitQty×unitRate
func (s *UnitConversionService) LineTotal(boxQty int64, boxRate decimal.Decimal, unitQty int64, unitRate decimal.Decimal) (decimal.Decimal, error) {
	if boxQty < 0 {
		return decimal.Zero, negativeQuantity("box_qty", boxQty)
	}
	if unitQty < 0 {
		return decimal.Zero, negativeQuantity("unit_qty", unitQty)
	}
	if boxRate.IsNegative() || unitRate.IsNegative() {
		return decimal.Zero, shared.NewValidationError("INVALID_RATE", "Rates cannot be negative")
	}
	boxes := decimal.NewFromInt(boxQty).Mul(boxRate)
	units := decimal.NewFromInt(unitQty).Mul(unitRate)
	return boxes.Add(units), nil
}

// FormatQuantity renders a unit quantity as a box/unit display string,
// e.g. "3 boxes + 2 units", "1 box" or "5 units".
func (s *UnitConversionService) FormatQuantity(totalUnits, packSize int64) (string, error) {
	b, err := s.BoxesFromUnits(totalUnits, packSize)
	if err != nil {
		return "", err
	}
	switch {
	case b.Boxes == 0:
		return plural(b.Remainder, "unit", "units"), nil
	case b.Remainder == 0:
		return plural(b.Boxes, "box", "boxes"), nil
	default:
		return plural(b.Boxes, "box", "boxes") + " + " + plural(b.Remainder, "unit", "units"), nil
	}
}

// FormatCartons renders a box quantity as cartons, e.g. "2 cartons (12 boxes)"
func (s *UnitConversionService) FormatCartons(boxQty, boxesPerCarton int64) (string, error) {
	cartons, err := s.CartonsFromBoxes(boxQty, boxesPerCarton)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (%s)", plural(cartons, "carton", "cartons"), plural(boxQty, "box", "boxes")), nil
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.FormatInt(n, 10) + " " + many
}

func validatePackSize(packSize int64) error {
	if packSize <= 0 {
		return shared.NewValidationError("INVALID_PACK_SIZE", "Pack size must be positive").
			WithDetail("pack_size", strconv.FormatInt(packSize, 10))
	}
	return nil
}

func negativeQuantity(field string, v int64) error {
	return shared.NewValidationError("INVALID_QUANTITY", "Quantity cannot be negative").
		WithDetail(field, strconv.FormatInt(v, 10))
}
