package app

import (
	"context"
	"errors"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/service/dispatch"
	"mobile-home-delivery/internal/transport/kafka"
)

type dispatchProcessor interface {
	Handle(ctx context.Context, e dispatch.Event) error
}

// dispatchHandler marks domain rejections permanent so the consumer skips
// the message; everything else is left for redelivery.
func dispatchHandler(p dispatchProcessor) kafka.HandleFunc {
	return func(ctx context.Context, e dispatch.Event) error {
		err := p.Handle(ctx, e)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, apperr.ErrInvalid),
			errors.Is(err, apperr.ErrRejected),
			errors.Is(err, apperr.ErrForbidden),
			errors.Is(err, apperr.ErrNotFound):
			return kafka.Permanent(err)
		default:
			return err
		}
	}
}
