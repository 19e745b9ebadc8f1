package payments

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"vocalizz/internal/adapter/memory"
	"vocalizz/internal/domain"
)

func signedHeader(payload []byte, secret string, at time.Time) string {
	sig := webhook.ComputeSignature(at, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(sig))
}

func TestVerifierAcceptsSignedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)
	v := NewVerifier("whsec_test")

	event, err := v.Verify(payload, signedHeader(payload, "whsec_test", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "checkout.session.completed", string(event.Type))

	_, err = v.Verify(payload, signedHeader(payload, "other", time.Now()))
	assert.Error(t, err)

	_, err = v.Verify(payload, signedHeader(payload, "whsec_test", time.Now().Add(-time.Hour)))
	assert.Error(t, err, "stale timestamps are rejected")

	_, err = NewVerifier("").Verify(payload, "")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func newProcessor(t *testing.T) (*Processor, *memory.Store) {
	t.Helper()
	store := memory.New()
	store.PutAccount(domain.Account{ID: "user-1", Tier: domain.TierBasic, CreditBalance: 5})
	return NewProcessor(DefaultCatalog(), store, zerolog.New(io.Discard)), store
}

func event(id, typ string, object any) stripe.Event {
	raw, err := json.Marshal(object)
	if err != nil {
		panic(err)
	}
	return stripe.Event{ID: id, Type: stripe.EventType(typ), Data: &stripe.EventData{Raw: raw}}
}

func checkoutObject(priceID string) map[string]any {
	return map[string]any{
		"id":       "cs_1",
		"customer": "cus_1",
		"metadata": map[string]string{"user_id": "user-1"},
		"line_items": map[string]any{
			"data": []any{map[string]any{"price": map[string]any{"id": priceID}}},
		},
	}
}

func TestSubscriptionCheckoutUpgradesAndCredits(t *testing.T) {
	p, store := newProcessor(t)
	ctx := context.Background()
	ev := event("evt_sub", "checkout.session.completed", checkoutObject("prod_TRHOTQn3cmA3BQ"))

	res, err := p.Handle(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, "user-1", res.AccountID)

	acct := store.Account("user-1")
	assert.Equal(t, domain.TierPremium, acct.Tier)
	assert.Equal(t, 105, acct.CreditBalance)
	assert.Equal(t, "cus_1", acct.StripeCustomerID)

	res, err = p.Handle(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Equal(t, 105, store.Account("user-1").CreditBalance)
}

func TestPackCheckoutKeepsTier(t *testing.T) {
	p, store := newProcessor(t)
	res, err := p.Handle(context.Background(), event("evt_pack", "checkout.session.completed", checkoutObject("prod_TRHQ9KiesC5ZEl")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	acct := store.Account("user-1")
	assert.Equal(t, domain.TierBasic, acct.Tier)
	assert.Equal(t, 15, acct.CreditBalance)
}

func TestCheckoutEdgeCases(t *testing.T) {
	p, store := newProcessor(t)
	ctx := context.Background()

	res, err := p.Handle(ctx, event("evt_unknown", "checkout.session.completed", checkoutObject("price_other")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)

	obj := checkoutObject("prod_TRHQ9KiesC5ZEl")
	delete(obj, "metadata")
	_, err = p.Handle(ctx, event("evt_anon", "checkout.session.completed", obj))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	res, err = p.Handle(ctx, event("evt_other", "charge.refunded", map[string]any{"id": "ch_1"}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Equal(t, 5, store.Account("user-1").CreditBalance)
}

func TestRenewalAndCancellation(t *testing.T) {
	p, store := newProcessor(t)
	ctx := context.Background()
	_, err := p.Handle(ctx, event("evt_sub", "checkout.session.completed", checkoutObject("prod_TRHMJTr0niy6sB")))
	require.NoError(t, err)
	assert.Equal(t, 25, store.Account("user-1").CreditBalance)

	invoice := func(reason string) map[string]any {
		return map[string]any{
			"id":             "in_1",
			"customer":       "cus_1",
			"billing_reason": reason,
			"lines": map[string]any{
				"data": []any{map[string]any{"price": map[string]any{"id": "prod_TRHMJTr0niy6sB"}}},
			},
		}
	}
	res, err := p.Handle(ctx, event("evt_first_invoice", "invoice.payment_succeeded", invoice("subscription_create")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)

	res, err = p.Handle(ctx, event("evt_renewal", "invoice.payment_succeeded", invoice("subscription_cycle")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, 45, store.Account("user-1").CreditBalance)

	res, err = p.Handle(ctx, event("evt_deleted", "customer.subscription.deleted", map[string]any{"id": "sub_1", "customer": "cus_1"}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	acct := store.Account("user-1")
	assert.Equal(t, domain.TierBasic, acct.Tier)
	assert.Equal(t, 45, acct.CreditBalance, "downgrade keeps purchased credits")

	_, err = p.Handle(ctx, event("evt_stranger", "customer.subscription.deleted", map[string]any{"id": "sub_2", "customer": "cus_unknown"}))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDowngradeWithJobsInFlight(t *testing.T) {
	p, store := newProcessor(t)
	ctx := context.Background()
	store.PutAccount(domain.Account{ID: "user-1", Tier: domain.TierPremium, CreditBalance: 10, ActiveJobCount: 3, StripeCustomerID: "cus_1"})

	_, err := p.Handle(ctx, event("evt_deleted", "customer.subscription.deleted", map[string]any{"id": "sub_1", "customer": "cus_1"}))
	require.NoError(t, err)
	acct := store.Account("user-1")
	assert.Equal(t, domain.TierBasic, acct.Tier)
	assert.Equal(t, 3, acct.ActiveJobCount, "running jobs are not cut short")

	// Over the basic limit the account can only drain.
	_, err = store.Reserve(ctx, domain.ReserveParams{
		AccountID:   "user-1",
		Kind:        domain.JobKindTraining,
		QualityTier: domain.QualityStandard,
		Cost:        1,
		Policy:      domain.DefaultPricingPolicy(),
	})
	var quota *domain.QuotaExceededError
	require.ErrorAs(t, err, &quota)
	assert.Equal(t, 3, quota.Active)
	assert.Equal(t, 1, quota.Max)
	assert.Equal(t, 10, store.Account("user-1").CreditBalance)
}
