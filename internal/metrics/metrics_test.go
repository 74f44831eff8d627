package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/clpm/internal/types"
)

func TestCollectors_Observer(t *testing.T) {
	c := New("")

	c.OperationCompleted(types.OpRebalance, true, 2*time.Second)
	c.OperationCompleted(types.OpRebalance, false, time.Second)
	c.OperationCompleted(types.OpCompound, true, time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.OperationsTotal.WithLabelValues(string(types.OpRebalance), "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.OperationsTotal.WithLabelValues(string(types.OpRebalance), "failure")))

	c.FeesRealized(types.FeeSourceCompound, 1.25)
	c.FeesRealized(types.FeeSourceCompound, 0)
	c.FeesRealized(types.FeeSourceCompound, 0.75)
	assert.InDelta(t, 2.0, testutil.ToFloat64(c.FeesUSDTotal.WithLabelValues(string(types.FeeSourceCompound))), 1e-9)

	c.ReentrancyRejected()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ReentrancyRejections))

	c.PositionChanged(types.Position{ID: 3, TickLower: -540, TickUpper: 540, Liquidity: sdkmath.NewInt(123456)})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PositionActive))
	assert.Equal(t, -540.0, testutil.ToFloat64(c.PositionTickLower))
	assert.Equal(t, 123456.0, testutil.ToFloat64(c.PositionLiquidity))

	c.PositionChanged(types.Position{ID: types.NoPosition, Liquidity: sdkmath.ZeroInt()})
	assert.Equal(t, 0.0, testutil.ToFloat64(c.PositionActive))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.PositionLiquidity))
}

func TestCollectors_Handler(t *testing.T) {
	c := New("clpm_test")
	c.OperationCompleted(types.OpCollectFees, true, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `clpm_test_manager_operations_total{op="FEES_COLLECTED",result="success"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestCollectors_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New("dup")
		New("dup")
	})
}
