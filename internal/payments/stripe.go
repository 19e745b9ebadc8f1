package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"vocalizz/internal/domain"
	"vocalizz/internal/infra"
)

// ErrMissingSecret is returned by Verify when no signing secret is configured.
var ErrMissingSecret = errors.New("payments: webhook secret not configured")

// Verifier checks the Stripe-Signature header of webhook deliveries.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret, tolerance: webhook.DefaultTolerance}
}

// Verify authenticates payload and decodes the event envelope.
func (v *Verifier) Verify(payload []byte, header string) (stripe.Event, error) {
	if v == nil || v.secret == "" {
		return stripe.Event{}, ErrMissingSecret
	}
	return webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
}

// Outcomes reported by Processor.Handle.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
)

// Result describes what a payment event did.
type Result struct {
	Outcome   string `json:"outcome"`
	EventType string `json:"event"`
	AccountID string `json:"account_id,omitempty"`
}

// Processor turns verified payment events into ledger grants. Every grant
// carries the event id as its reference, so redelivery is a no-op.
type Processor struct {
	catalog *Catalog
	ledger  domain.LedgerRepository
	logger  infra.Logger
}

func NewProcessor(catalog *Catalog, ledger domain.LedgerRepository, logger infra.Logger) *Processor {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Processor{catalog: catalog, ledger: ledger, logger: logger}
}

// Handle applies one event. Unknown customers wrap domain.ErrNotFound and a
// checkout without an account reference wraps domain.ErrInvalidInput.
func (p *Processor) Handle(ctx context.Context, event stripe.Event) (Result, error) {
	typ := string(event.Type)
	res := Result{Outcome: OutcomeIgnored, EventType: typ}
	if event.Data == nil {
		return res, nil
	}

	var (
		grant domain.PaymentGrant
		ok    bool
		err   error
	)
	switch typ {
	case "checkout.session.completed":
		grant, ok, err = p.checkoutGrant(event.Data.Raw)
	case "invoice.payment_succeeded":
		grant, ok, err = p.renewalGrant(ctx, event.Data.Raw)
	case "customer.subscription.deleted":
		grant, ok, err = p.downgradeGrant(ctx, event.Data.Raw)
	default:
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("%s %s: %w", typ, event.ID, err)
	}
	if !ok {
		p.logger.Info().Ctx(ctx).Str("event_id", event.ID).Str("event", typ).Msg("payment event ignored")
		return res, nil
	}

	grant.Reference = "stripe:" + event.ID
	applied, err := p.ledger.ApplyGrant(ctx, grant)
	if err != nil {
		return res, fmt.Errorf("apply %s %s: %w", typ, event.ID, err)
	}
	res.AccountID = grant.AccountID
	if !applied {
		res.Outcome = OutcomeDuplicate
		return res, nil
	}
	res.Outcome = OutcomeApplied
	p.logger.Info().Ctx(ctx).
		Str("event_id", event.ID).
		Str("event", typ).
		Str("account_id", grant.AccountID).
		Str("tier", string(grant.Tier)).
		Int("credits", grant.Credits).
		Msg("payment grant applied")
	return res, nil
}

func (p *Processor) checkoutGrant(raw json.RawMessage) (domain.PaymentGrant, bool, error) {
	var s stripe.CheckoutSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.PaymentGrant{}, false, fmt.Errorf("decode checkout session: %w", err)
	}
	accountID := s.Metadata["user_id"]
	if accountID == "" {
		accountID = s.ClientReferenceID
	}
	if accountID == "" {
		return domain.PaymentGrant{}, false, fmt.Errorf("checkout session %s has no user_id: %w", s.ID, domain.ErrInvalidInput)
	}
	priceID := s.Metadata["price_id"]
	if s.LineItems != nil && len(s.LineItems.Data) > 0 && s.LineItems.Data[0].Price != nil {
		priceID = s.LineItems.Data[0].Price.ID
	}

	if plan, ok := p.catalog.Plan(priceID); ok {
		return domain.PaymentGrant{
			AccountID:        accountID,
			StripeCustomerID: customerID(s.Customer),
			Tier:             plan.TierOf(),
			Credits:          plan.Credits,
			Kind:             "subscription",
		}, true, nil
	}
	if pack, ok := p.catalog.Pack(priceID); ok {
		return domain.PaymentGrant{
			AccountID:        accountID,
			StripeCustomerID: customerID(s.Customer),
			Credits:          pack.Credits,
			Kind:             "pack",
		}, true, nil
	}
	return domain.PaymentGrant{}, false, nil
}

func (p *Processor) renewalGrant(ctx context.Context, raw json.RawMessage) (domain.PaymentGrant, bool, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return domain.PaymentGrant{}, false, fmt.Errorf("decode invoice: %w", err)
	}
	// The first invoice of a subscription is credited by the checkout event.
	if inv.BillingReason == stripe.InvoiceBillingReasonSubscriptionCreate {
		return domain.PaymentGrant{}, false, nil
	}
	if inv.Lines == nil || len(inv.Lines.Data) == 0 || inv.Lines.Data[0].Price == nil {
		return domain.PaymentGrant{}, false, nil
	}
	plan, ok := p.catalog.Plan(inv.Lines.Data[0].Price.ID)
	if !ok {
		return domain.PaymentGrant{}, false, nil
	}
	acct, err := p.accountFor(ctx, customerID(inv.Customer))
	if err != nil {
		return domain.PaymentGrant{}, false, err
	}
	return domain.PaymentGrant{AccountID: acct.ID, Credits: plan.Credits, Kind: "renewal"}, true, nil
}

func (p *Processor) downgradeGrant(ctx context.Context, raw json.RawMessage) (domain.PaymentGrant, bool, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return domain.PaymentGrant{}, false, fmt.Errorf("decode subscription: %w", err)
	}
	acct, err := p.accountFor(ctx, customerID(sub.Customer))
	if err != nil {
		return domain.PaymentGrant{}, false, err
	}
	return domain.PaymentGrant{AccountID: acct.ID, Tier: domain.TierBasic, Kind: "downgrade"}, true, nil
}

func (p *Processor) accountFor(ctx context.Context, customer string) (*domain.Account, error) {
	if customer == "" {
		return nil, fmt.Errorf("event has no customer: %w", domain.ErrInvalidInput)
	}
	acct, err := p.ledger.FindAccountByCustomer(ctx, customer)
	if err != nil {
		return nil, fmt.Errorf("customer %s: %w", customer, err)
	}
	return acct, nil
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
