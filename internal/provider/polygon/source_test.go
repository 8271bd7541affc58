package polygon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/assert"

	xerrors "fx-data/internal/errors"
)

func TestAggToBar(t *testing.T) {
	ts := time.Date(2024, 5, 6, 13, 31, 0, 0, time.UTC)
	b := aggToBar(models.Agg{
		Timestamp: models.Millis(ts),
		Open:      1.0712, High: 1.0715, Low: 1.0710, Close: 1.0714,
		Volume: 152.7,
	})
	assert.Equal(t, ts.UnixMilli(), b.Timestamp)
	assert.Equal(t, 1.0715, b.High)
	assert.Equal(t, int64(152), b.Volume)
	assert.Nil(t, b.Spread)
	assert.Nil(t, b.RealVolume)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		transient bool
	}{
		{"network", errors.New("dial tcp: connection refused"), true},
		{"rate limit", &models.ErrorResponse{StatusCode: http.StatusTooManyRequests}, true},
		{"server", fmt.Errorf("wrapped: %w", &models.ErrorResponse{StatusCode: http.StatusBadGateway}), true},
		{"auth", &models.ErrorResponse{StatusCode: http.StatusForbidden}, false},
		{"cancelled", context.Canceled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.transient, xerrors.IsTransient(classify(tc.err)))
		})
	}
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New("", time.Second, 0, nil)
	assert.Error(t, err)
}
