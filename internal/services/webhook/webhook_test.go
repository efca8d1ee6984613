package webhook_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/marketplace-payments/internal/models"
	"github.com/magabrotheeeer/marketplace-payments/internal/services/webhook"
	"github.com/magabrotheeeer/marketplace-payments/internal/stripeapi"
)

type mockRepo struct {
	UpdateTransactionStatusFunc                  func(ctx context.Context, intentID, status string) (int, error)
	UpdatePlanPurchaseStatusFunc                 func(ctx context.Context, id int, status string) (int, error)
	UpdatePlanPurchaseStatusBySubscriptionIDFunc func(ctx context.Context, subscriptionID, status string) (int, error)
}

func (m *mockRepo) UpdateTransactionStatus(ctx context.Context, intentID, status string) (int, error) {
	if m.UpdateTransactionStatusFunc != nil {
		return m.UpdateTransactionStatusFunc(ctx, intentID, status)
	}
	return 1, nil
}

func (m *mockRepo) UpdatePlanPurchaseStatus(ctx context.Context, id int, status string) (int, error) {
	if m.UpdatePlanPurchaseStatusFunc != nil {
		return m.UpdatePlanPurchaseStatusFunc(ctx, id, status)
	}
	return 1, nil
}

func (m *mockRepo) UpdatePlanPurchaseStatusBySubscriptionID(ctx context.Context, subscriptionID, status string) (int, error) {
	if m.UpdatePlanPurchaseStatusBySubscriptionIDFunc != nil {
		return m.UpdatePlanPurchaseStatusBySubscriptionIDFunc(ctx, subscriptionID, status)
	}
	return 1, nil
}

type mockMethods struct {
	saved []string
}

func (m *mockMethods) SavePaymentMethod(ctx context.Context, userUID, stripeMethodID string) (int, error) {
	m.saved = append(m.saved, userUID+"/"+stripeMethodID)
	return len(m.saved), nil
}

type mockAccounts struct {
	mirrored []*stripeapi.Account
}

func (m *mockAccounts) MirrorAccountFlags(ctx context.Context, account *stripeapi.Account) error {
	m.mirrored = append(m.mirrored, account)
	return nil
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }

const webhookSecret = "whsec_test"

func newService(repo *mockRepo, methods *mockMethods, accounts *mockAccounts) *webhook.Service {
	return webhook.New(repo, methods, accounts, webhookSecret, slog.New(discardHandler{}))
}

func makeEvent(t *testing.T, eventType string, object any) *stripeapi.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	event := &stripeapi.Event{ID: "evt_1", Type: eventType, Created: time.Now().Unix()}
	event.Data.Object = raw
	return event
}

func TestVerifyAndParse(t *testing.T) {
	svc := newService(&mockRepo{}, &mockMethods{}, &mockAccounts{})
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)

	t.Run("valid", func(t *testing.T) {
		header := stripeapi.SignPayload(payload, webhookSecret, time.Now())
		event, err := svc.VerifyAndParse(payload, header)
		require.NoError(t, err)
		assert.Equal(t, "evt_1", event.ID)
		assert.Equal(t, "payment_intent.succeeded", event.Type)
	})

	t.Run("bad signature", func(t *testing.T) {
		header := stripeapi.SignPayload(payload, "whsec_wrong", time.Now())
		_, err := svc.VerifyAndParse(payload, header)
		require.ErrorIs(t, err, stripeapi.ErrInvalidSignature)
	})
}

func TestHandleEvent_IntentSucceeded(t *testing.T) {
	gotIntent, gotStatus := "", ""
	repo := &mockRepo{
		UpdateTransactionStatusFunc: func(ctx context.Context, intentID, status string) (int, error) {
			gotIntent, gotStatus = intentID, status
			return 1, nil
		},
	}
	methods := &mockMethods{}
	svc := newService(repo, methods, &mockAccounts{})

	event := makeEvent(t, stripeapi.EventPaymentIntentSucceeded, stripeapi.PaymentIntent{
		ID: "pi_1", Status: stripeapi.IntentStatusSucceeded,
	})
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	assert.Equal(t, "pi_1", gotIntent)
	assert.Equal(t, models.TransactionStatusSucceeded, gotStatus)
	assert.Empty(t, methods.saved, "no setup_future_usage, card must not be saved")
}

func TestHandleEvent_RepositoryErrorPropagates(t *testing.T) {
	repoErr := errors.New("db down")
	repo := &mockRepo{
		UpdateTransactionStatusFunc: func(ctx context.Context, intentID, status string) (int, error) {
			return 0, repoErr
		},
	}
	svc := newService(repo, &mockMethods{}, &mockAccounts{})

	event := makeEvent(t, stripeapi.EventPaymentIntentSucceeded, stripeapi.PaymentIntent{
		ID: "pi_1", Status: stripeapi.IntentStatusSucceeded,
	})
	err := svc.HandleEvent(context.Background(), event)
	require.ErrorIs(t, err, repoErr)
}

func TestHandleEvent_IntentSucceededSavesCard(t *testing.T) {
	methods := &mockMethods{}
	svc := newService(&mockRepo{}, methods, &mockAccounts{})

	event := makeEvent(t, stripeapi.EventPaymentIntentSucceeded, stripeapi.PaymentIntent{
		ID:               "pi_1",
		PaymentMethod:    "pm_new",
		SetupFutureUsage: "off_session",
		Metadata:         map[string]string{"buyer_uid": "buyer-1", "checkout_type": models.CheckoutTypeExpress},
	})
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Equal(t, []string{"buyer-1/pm_new"}, methods.saved)
}

func TestHandleEvent_IntentFailedNeverSavesCard(t *testing.T) {
	methods := &mockMethods{}
	svc := newService(&mockRepo{}, methods, &mockAccounts{})

	event := makeEvent(t, stripeapi.EventPaymentIntentFailed, stripeapi.PaymentIntent{
		ID:               "pi_1",
		PaymentMethod:    "pm_new",
		SetupFutureUsage: "off_session",
		Metadata:         map[string]string{"buyer_uid": "buyer-1"},
	})
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Empty(t, methods.saved)
}

func TestHandleEvent_IntentSucceededActivatesPlanPurchase(t *testing.T) {
	activatedID, activatedStatus := 0, ""
	repo := &mockRepo{
		UpdatePlanPurchaseStatusFunc: func(ctx context.Context, id int, status string) (int, error) {
			activatedID, activatedStatus = id, status
			return 1, nil
		},
	}
	svc := newService(repo, &mockMethods{}, &mockAccounts{})

	event := makeEvent(t, stripeapi.EventPaymentIntentSucceeded, stripeapi.PaymentIntent{
		ID:       "pi_1",
		Metadata: map[string]string{"user_uid": "user-1", "purchase_id": "42"},
	})
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	assert.Equal(t, 42, activatedID)
	assert.Equal(t, models.PlanStatusActive, activatedStatus)
}

func TestHandleEvent_SetupIntentSucceeded(t *testing.T) {
	methods := &mockMethods{}
	svc := newService(&mockRepo{}, methods, &mockAccounts{})

	event := makeEvent(t, stripeapi.EventSetupIntentSucceeded, stripeapi.SetupIntent{
		ID:            "seti_1",
		PaymentMethod: "pm_attached",
		Metadata:      map[string]string{"user_uid": "user-1"},
	})
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Equal(t, []string{"user-1/pm_attached"}, methods.saved)
}

func TestHandleEvent_SubscriptionStatuses(t *testing.T) {
	tests := []struct {
		name               string
		eventType          string
		subscriptionStatus string
		wantStatus         string
	}{
		{name: "active", eventType: stripeapi.EventSubscriptionUpdated, subscriptionStatus: "active", wantStatus: models.PlanStatusActive},
		{name: "past due", eventType: stripeapi.EventSubscriptionUpdated, subscriptionStatus: "past_due", wantStatus: models.PlanStatusPastDue},
		{name: "incomplete", eventType: stripeapi.EventSubscriptionUpdated, subscriptionStatus: "incomplete", wantStatus: models.PlanStatusPending},
		{name: "deleted", eventType: stripeapi.EventSubscriptionDeleted, subscriptionStatus: "canceled", wantStatus: models.PlanStatusCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotStatus := ""
			repo := &mockRepo{
				UpdatePlanPurchaseStatusBySubscriptionIDFunc: func(ctx context.Context, subscriptionID, status string) (int, error) {
					require.Equal(t, "sub_1", subscriptionID)
					gotStatus = status
					return 1, nil
				},
			}
			svc := newService(repo, &mockMethods{}, &mockAccounts{})

			event := makeEvent(t, tt.eventType, stripeapi.Subscription{ID: "sub_1", Status: tt.subscriptionStatus})
			require.NoError(t, svc.HandleEvent(context.Background(), event))
			assert.Equal(t, tt.wantStatus, gotStatus)
		})
	}
}

func TestHandleEvent_AccountUpdated(t *testing.T) {
	accounts := &mockAccounts{}
	svc := newService(&mockRepo{}, &mockMethods{}, accounts)

	event := makeEvent(t, stripeapi.EventAccountUpdated, stripeapi.Account{
		ID: "acct_1", ChargesEnabled: true,
	})
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	require.Len(t, accounts.mirrored, 1)
	assert.True(t, accounts.mirrored[0].ChargesEnabled)
}

func TestHandleEvent_UnknownTypeIgnored(t *testing.T) {
	svc := newService(&mockRepo{}, &mockMethods{}, &mockAccounts{})

	event := makeEvent(t, "charge.refunded", map[string]string{"id": "ch_1"})
	require.NoError(t, svc.HandleEvent(context.Background(), event))
}
