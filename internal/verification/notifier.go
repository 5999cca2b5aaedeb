package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/johkker/delice/internal/models"
)

// Delivery is one code on its way to a recipient.
type Delivery struct {
	Kind    Kind
	Channel Channel
	To      Recipient
	Code    string
	TTL     time.Duration
}

// Notifier delivers codes. Implementations route on Delivery.Channel.
type Notifier interface {
	SendCode(ctx context.Context, d Delivery) error
}

// DeliveryError reports channels whose code was stored but not delivered.
// The session stays valid; callers decide whether that is fatal.
type DeliveryError struct {
	Token    string
	Channels []Channel
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver code over %v: %v", e.Channels, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func (e *DeliveryError) Is(target error) bool {
	return target == models.ErrDeliveryFailed
}
