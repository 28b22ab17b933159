package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"

	"shop-service/apperrors"
)

// EventTypePaymentSucceeded is the processor event type that marks a
// payment-intent as settled.
const EventTypePaymentSucceeded = "payment_intent.succeeded"

// ConfirmResult reports the outcome of a payment-intent confirmation.
type ConfirmResult struct {
	Succeeded bool
	Status    string
}

// WebhookEvent is the domain view of a verified processor event.
type WebhookEvent struct {
	ID       string
	Type     string
	IntentID string
}

// PaymentGateway isolates all interaction with the payment processor.
// No processor-specific types leak past this boundary.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string) (string, error)
	ConfirmIntent(ctx context.Context, intentID, paymentMethodID string) (ConfirmResult, error)
	VerifyEvent(payload []byte, sigHeader string) (*WebhookEvent, error)
}

// StripeGateway implements PaymentGateway against Stripe. The client is
// constructed explicitly and injected; no package-level API key.
type StripeGateway struct {
	client     *client.API
	webhookKey string
}

func NewStripeGateway(secretKey, webhookKey string, timeout time.Duration) *StripeGateway {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient: &http.Client{Timeout: timeout},
	})
	sc := client.New(secretKey, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})
	return &StripeGateway{client: sc, webhookKey: webhookKey}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amountMinor int64, currency string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	pi, err := g.client.PaymentIntents.New(params)
	if err != nil {
		return "", classifyStripeError(err)
	}
	return pi.ID, nil
}

func (g *StripeGateway) ConfirmIntent(ctx context.Context, intentID, paymentMethodID string) (ConfirmResult, error) {
	params := &stripe.PaymentIntentConfirmParams{
		Params:        stripe.Params{Context: ctx},
		PaymentMethod: stripe.String(paymentMethodID),
	}
	pi, err := g.client.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		return ConfirmResult{}, classifyStripeError(err)
	}
	return ConfirmResult{
		Succeeded: pi.Status == stripe.PaymentIntentStatusSucceeded,
		Status:    string(pi.Status),
	}, nil
}

func (g *StripeGateway) VerifyEvent(payload []byte, sigHeader string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, g.webhookKey)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrWebhookVerification, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if out.Type == EventTypePaymentSucceeded {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrWebhookVerification, err)
		}
		out.IntentID = pi.ID
	}
	return out, nil
}

// classifyStripeError maps processor errors into the domain taxonomy.
// Card errors are user-actionable declines; everything else (5xx,
// timeouts, transport failures) is a recoverable gateway outage.
func classifyStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Type == stripe.ErrorTypeCard {
			return apperrors.Wrap(apperrors.ErrPaymentDeclined, err)
		}
		if stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 {
			return apperrors.Wrap(apperrors.ErrBadRequest, err)
		}
	}
	return apperrors.Wrap(apperrors.ErrGatewayUnavailable, err)
}
