package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/totegamma/greenledger"
)

func TestSinkCountsByRegistryAndType(t *testing.T) {
	sink := New(prometheus.NewRegistry())
	ctx := context.Background()

	sink.Emit(ctx, greenledger.Event{Type: greenledger.EventCreated, Registry: "certificates"})
	sink.Emit(ctx, greenledger.Event{Type: greenledger.EventCreated, Registry: "certificates"})
	sink.Emit(ctx, greenledger.Event{Type: greenledger.EventVerified, Registry: "artpieces"})

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.events.WithLabelValues("certificates", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.events.WithLabelValues("artpieces", "verified")))
	assert.Equal(t, 0.0, testutil.ToFloat64(sink.events.WithLabelValues("artpieces", "created")))
}
