package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// Stripe creates and reads Checkout Sessions.
type Stripe struct {
	api *client.API
}

func NewStripe(secretKey string) *Stripe {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &Stripe{api: sc}
}

// NewStripeWithURL points the client at another API host, e.g. stripe-mock.
func NewStripeWithURL(secretKey, baseURL string) *Stripe {
	if baseURL == "" {
		return NewStripe(secretKey)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(baseURL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	sc := &client.API{}
	sc.Init(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &Stripe{api: sc}
}

func (s *Stripe) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if len(req.LineItems) == 0 {
		return Session{}, errors.New("stripe: session without line items")
	}
	currency := strings.ToLower(req.Currency)
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata(MetadataOrderID, req.OrderID)
	for _, li := range req.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(li.Name),
		}
		if li.Description != "" {
			product.Description = stripe.String(li.Description)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(li.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(li.UnitAmount),
				ProductData: product,
			},
		})
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, err
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}

func (s *Stripe) RetrieveSession(ctx context.Context, id string) (SessionStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return SessionStatus{}, err
	}
	out := SessionStatus{
		ID:            sess.ID,
		PaymentStatus: string(sess.PaymentStatus),
		Metadata:      sess.Metadata,
	}
	if sess.PaymentIntent != nil {
		out.PaymentReference = sess.PaymentIntent.ID
	}
	return out, nil
}
