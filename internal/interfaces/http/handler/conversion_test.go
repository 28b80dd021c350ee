package handler

import (
	"net/http"
	"testing"

	"github.com/erp/stockledger/internal/domain/shared/service"
	"github.com/erp/stockledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConversionRouter() *gin.Engine {
	r := gin.New()
	h := NewConversionHandler(service.NewUnitConversionService())
	r.POST("/conversions/units", h.Units)
	r.POST("/conversions/boxes", h.Boxes)
	r.POST("/conversions/cartons", h.Cartons)
	r.POST("/conversions/line-total", h.LineTotal)
	r.POST("/conversions/format", h.Format)
	return r
}

func TestConversionHandler(t *testing.T) {
	r := newConversionRouter()

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		want   map[string]any
	}{
		{
			name:   "boxes to units",
			path:   "/conversions/units",
			body:   map[string]any{"box_qty": 3, "pack_size": 12},
			status: http.StatusOK,
			want:   map[string]any{"units": float64(36)},
		},
		{
			name:   "units to boxes with remainder",
			path:   "/conversions/boxes",
			body:   map[string]any{"total_units": 40, "pack_size": 12},
			status: http.StatusOK,
			want:   map[string]any{"boxes": float64(3), "remainder": float64(4)},
		},
		{
			name:   "cartons round up",
			path:   "/conversions/cartons",
			body:   map[string]any{"box_qty": 9, "boxes_per_carton": 4},
			status: http.StatusOK,
			want:   map[string]any{"cartons": float64(3)},
		},
		{
			name:   "line total",
			path:   "/conversions/line-total",
			body:   map[string]any{"box_qty": 2, "box_rate": "10.50", "unit_qty": 3, "unit_rate": "1.25"},
			status: http.StatusOK,
			want:   map[string]any{"total": "24.75"},
		},
		{
			name:   "zero pack size",
			path:   "/conversions/units",
			body:   map[string]any{"box_qty": 3, "pack_size": 0},
			status: http.StatusBadRequest,
		},
		{
			name:   "negative quantity",
			path:   "/conversions/boxes",
			body:   map[string]any{"total_units": -1, "pack_size": 12},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := doRequest(t, r, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status != http.StatusOK {
				require.NotNil(t, resp.Error)
				assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
				return
			}
			got := decodeData[map[string]any](t, resp)
			for k, v := range tt.want {
				assert.Equal(t, v, got[k], k)
			}
		})
	}
}

func TestConversionHandler_Format(t *testing.T) {
	r := newConversionRouter()

	w, resp := doRequest(t, r, http.MethodPost, "/conversions/format", map[string]any{
		"total_units": 40, "pack_size": 12,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3 boxes + 4 units", decodeData[FormatResponse](t, resp).Display)

	w, resp = doRequest(t, r, http.MethodPost, "/conversions/cartons", map[string]any{
		"box_qty": 8, "boxes_per_carton": 4,
	})
	require.Equal(t, http.StatusOK, w.Code)
	carton := decodeData[CartonsResponse](t, resp)
	assert.Equal(t, int64(2), carton.Cartons)
	assert.Equal(t, "2 cartons (8 boxes)", carton.Display)
}
