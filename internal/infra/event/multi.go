package event

import (
	"context"

	"github.com/totegamma/greenledger"
	"github.com/totegamma/greenledger/internal/usecase"
)

// Multi forwards each event to every sink in order.
type Multi []usecase.EventSink

func (m Multi) Emit(ctx context.Context, event greenledger.Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Emit(ctx, event)
		}
	}
}
