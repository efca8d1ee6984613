package payment_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/marketplace-payments/internal/models"
	"github.com/magabrotheeeer/marketplace-payments/internal/services/payment"
	"github.com/magabrotheeeer/marketplace-payments/internal/stripeapi"
)

type mockRepo struct {
	GetUserFunc                    func(ctx context.Context, userUID string) (*models.User, error)
	GetProfileFunc                 func(ctx context.Context, userUID string) (*models.Profile, error)
	CreateProfileFunc              func(ctx context.Context, userUID string) error
	SetStripeCustomerIDFunc        func(ctx context.Context, userUID, customerID string) error
	GetPaymentMethodFunc           func(ctx context.Context, userUID string, id int) (*models.PaymentMethod, error)
	GetDefaultPaymentMethodFunc    func(ctx context.Context, userUID string) (*models.PaymentMethod, error)
	PromoteOldestPaymentMethodFunc func(ctx context.Context, userUID string) (*models.PaymentMethod, error)
	CreatePaymentMethodFunc        func(ctx context.Context, method models.PaymentMethod, makeDefault bool) (int, error)
	ListPaymentMethodsFunc         func(ctx context.Context, userUID string) ([]*models.PaymentMethod, error)
	SetDefaultPaymentMethodFunc    func(ctx context.Context, userUID string, id int) error
	RemovePaymentMethodFunc        func(ctx context.Context, userUID string, id int) (int, error)
	CountPaymentMethodsFunc        func(ctx context.Context, userUID string) (int, error)
	GetConnectAccountFunc          func(ctx context.Context, userUID string) (*models.ConnectAccount, error)
	CreateTransactionFunc          func(ctx context.Context, tr models.Transaction) (int, error)
	ListTransactionsFunc           func(ctx context.Context, userUID string, limit, offset int) ([]*models.Transaction, error)

	promoteCalls int
}

func (m *mockRepo) GetUser(ctx context.Context, uid string) (*models.User, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, uid)
	}
	return &models.User{UUID: uid, Email: "buyer@example.com"}, nil
}

func (m *mockRepo) GetProfile(ctx context.Context, uid string) (*models.Profile, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, uid)
	}
	return &models.Profile{UserUID: uid, StripeCustomerID: "cus_1"}, nil
}

func (m *mockRepo) CreateProfile(ctx context.Context, uid string) error {
	if m.CreateProfileFunc != nil {
		return m.CreateProfileFunc(ctx, uid)
	}
	return nil
}

func (m *mockRepo) SetStripeCustomerID(ctx context.Context, uid, customerID string) error {
	if m.SetStripeCustomerIDFunc != nil {
		return m.SetStripeCustomerIDFunc(ctx, uid, customerID)
	}
	return nil
}

func (m *mockRepo) GetPaymentMethod(ctx context.Context, uid string, id int) (*models.PaymentMethod, error) {
	if m.GetPaymentMethodFunc != nil {
		return m.GetPaymentMethodFunc(ctx, uid, id)
	}
	return nil, nil
}

func (m *mockRepo) GetDefaultPaymentMethod(ctx context.Context, uid string) (*models.PaymentMethod, error) {
	if m.GetDefaultPaymentMethodFunc != nil {
		return m.GetDefaultPaymentMethodFunc(ctx, uid)
	}
	return nil, nil
}

func (m *mockRepo) PromoteOldestPaymentMethod(ctx context.Context, uid string) (*models.PaymentMethod, error) {
	m.promoteCalls++
	if m.PromoteOldestPaymentMethodFunc != nil {
		return m.PromoteOldestPaymentMethodFunc(ctx, uid)
	}
	return nil, nil
}

func (m *mockRepo) CreatePaymentMethod(ctx context.Context, method models.PaymentMethod, makeDefault bool) (int, error) {
	if m.CreatePaymentMethodFunc != nil {
		return m.CreatePaymentMethodFunc(ctx, method, makeDefault)
	}
	return 1, nil
}

func (m *mockRepo) ListPaymentMethods(ctx context.Context, uid string) ([]*models.PaymentMethod, error) {
	if m.ListPaymentMethodsFunc != nil {
		return m.ListPaymentMethodsFunc(ctx, uid)
	}
	return nil, nil
}

func (m *mockRepo) SetDefaultPaymentMethod(ctx context.Context, uid string, id int) error {
	if m.SetDefaultPaymentMethodFunc != nil {
		return m.SetDefaultPaymentMethodFunc(ctx, uid, id)
	}
	return nil
}

func (m *mockRepo) RemovePaymentMethod(ctx context.Context, uid string, id int) (int, error) {
	if m.RemovePaymentMethodFunc != nil {
		return m.RemovePaymentMethodFunc(ctx, uid, id)
	}
	return 1, nil
}

func (m *mockRepo) CountPaymentMethods(ctx context.Context, uid string) (int, error) {
	if m.CountPaymentMethodsFunc != nil {
		return m.CountPaymentMethodsFunc(ctx, uid)
	}
	return 0, nil
}

func (m *mockRepo) GetConnectAccount(ctx context.Context, uid string) (*models.ConnectAccount, error) {
	if m.GetConnectAccountFunc != nil {
		return m.GetConnectAccountFunc(ctx, uid)
	}
	return &models.ConnectAccount{UserUID: uid, StripeAccountID: "acct_seller", ChargesEnabled: true}, nil
}

func (m *mockRepo) CreateTransaction(ctx context.Context, tr models.Transaction) (int, error) {
	if m.CreateTransactionFunc != nil {
		return m.CreateTransactionFunc(ctx, tr)
	}
	return 7, nil
}

func (m *mockRepo) ListTransactions(ctx context.Context, uid string, limit, offset int) ([]*models.Transaction, error) {
	if m.ListTransactionsFunc != nil {
		return m.ListTransactionsFunc(ctx, uid, limit, offset)
	}
	return nil, nil
}

type mockProvider struct {
	CreateCustomerFunc      func(ctx context.Context, req stripeapi.CreateCustomerRequest) (*stripeapi.Customer, error)
	CreatePaymentIntentFunc func(ctx context.Context, req stripeapi.CreatePaymentIntentRequest) (*stripeapi.PaymentIntent, error)
	CreateSetupIntentFunc   func(ctx context.Context, customer string, metadata map[string]string) (*stripeapi.SetupIntent, error)
	GetPaymentMethodFunc    func(ctx context.Context, id string) (*stripeapi.PaymentMethod, error)
	DetachPaymentMethodFunc func(ctx context.Context, id string) (*stripeapi.PaymentMethod, error)

	intentCalls int
}

func (m *mockProvider) CreateCustomer(ctx context.Context, req stripeapi.CreateCustomerRequest) (*stripeapi.Customer, error) {
	if m.CreateCustomerFunc != nil {
		return m.CreateCustomerFunc(ctx, req)
	}
	return &stripeapi.Customer{ID: "cus_new"}, nil
}

func (m *mockProvider) CreatePaymentIntent(ctx context.Context, req stripeapi.CreatePaymentIntentRequest) (*stripeapi.PaymentIntent, error) {
	m.intentCalls++
	if m.CreatePaymentIntentFunc != nil {
		return m.CreatePaymentIntentFunc(ctx, req)
	}
	return &stripeapi.PaymentIntent{ID: "pi_1", Status: stripeapi.IntentStatusSucceeded, ClientSecret: "pi_1_secret"}, nil
}

func (m *mockProvider) CreateSetupIntent(ctx context.Context, customer string, metadata map[string]string) (*stripeapi.SetupIntent, error) {
	if m.CreateSetupIntentFunc != nil {
		return m.CreateSetupIntentFunc(ctx, customer, metadata)
	}
	return &stripeapi.SetupIntent{ID: "seti_1", ClientSecret: "seti_1_secret"}, nil
}

func (m *mockProvider) GetPaymentMethod(ctx context.Context, id string) (*stripeapi.PaymentMethod, error) {
	if m.GetPaymentMethodFunc != nil {
		return m.GetPaymentMethodFunc(ctx, id)
	}
	return &stripeapi.PaymentMethod{ID: id, Card: stripeapi.PaymentMethodCard{Brand: "visa", Last4: "4242"}}, nil
}

func (m *mockProvider) DetachPaymentMethod(ctx context.Context, id string) (*stripeapi.PaymentMethod, error) {
	if m.DetachPaymentMethodFunc != nil {
		return m.DetachPaymentMethodFunc(ctx, id)
	}
	return &stripeapi.PaymentMethod{ID: id}, nil
}

type mockCache struct {
	data map[string][]*models.Transaction
	sets int
	gets int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]*models.Transaction)}
}

func (m *mockCache) Get(key string, result any) (bool, error) {
	m.gets++
	transactions, ok := m.data[key]
	if !ok {
		return false, nil
	}
	*result.(*[]*models.Transaction) = transactions
	return true, nil
}

func (m *mockCache) Set(key string, value any, _ time.Duration) error {
	m.sets++
	m.data[key] = value.([]*models.Transaction)
	return nil
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }

func makeLogger() *slog.Logger {
	return slog.New(discardHandler{})
}

const feeBps = 1000 // 10%

func savedMethod(id int, uid, stripeID string, isDefault bool) *models.PaymentMethod {
	return &models.PaymentMethod{
		ID:                    id,
		UserUID:               uid,
		StripePaymentMethodID: stripeID,
		Brand:                 "visa",
		Last4:                 "4242",
		IsDefault:             isDefault,
		CreatedAt:             time.Now(),
	}
}

func TestCreatePaymentIntent_SelfPurchaseRejectedBeforeProviderCall(t *testing.T) {
	repo := &mockRepo{}
	provider := &mockProvider{}
	svc := payment.New(repo, provider, newMockCache(), feeBps, makeLogger())

	_, err := svc.CreatePaymentIntent(context.Background(), "user-1", payment.CreateIntentRequest{
		SellerUID:    "user-1",
		Amount:       1000,
		Currency:     "usd",
		CheckoutType: models.CheckoutTypeExpress,
	})

	require.ErrorIs(t, err, payment.ErrSelfPurchase)
	assert.Zero(t, provider.intentCalls, "provider must not be called on self purchase")
}

func TestCreatePaymentIntent_SellerNotOnboarded(t *testing.T) {
	repo := &mockRepo{
		GetConnectAccountFunc: func(ctx context.Context, uid string) (*models.ConnectAccount, error) {
			return nil, nil
		},
	}
	provider := &mockProvider{}
	svc := payment.New(repo, provider, newMockCache(), feeBps, makeLogger())

	_, err := svc.CreatePaymentIntent(context.Background(), "buyer", payment.CreateIntentRequest{
		SellerUID:    "seller",
		Amount:       1000,
		Currency:     "usd",
		CheckoutType: models.CheckoutTypeExpress,
	})

	require.ErrorIs(t, err, payment.ErrSellerNotOnboarded)
	assert.Zero(t, provider.intentCalls)
}

func TestCreatePaymentIntent_ChargesDisabled(t *testing.T) {
	repo := &mockRepo{
		GetConnectAccountFunc: func(ctx context.Context, uid string) (*models.ConnectAccount, error) {
			return &models.ConnectAccount{UserUID: uid, StripeAccountID: "acct_s", ChargesEnabled: false}, nil
		},
	}
	provider := &mockProvider{}
	svc := payment.New(repo, provider, newMockCache(), feeBps, makeLogger())

	_, err := svc.CreatePaymentIntent(context.Background(), "buyer", payment.CreateIntentRequest{
		SellerUID:    "seller",
		Amount:       1000,
		Currency:     "usd",
		CheckoutType: models.CheckoutTypeExpress,
	})

	require.ErrorIs(t, err, payment.ErrChargesDisabled)
}

func TestCreatePaymentIntent_ExpressWithDefaultMethod(t *testing.T) {
	repo := &mockRepo{
		GetDefaultPaymentMethodFunc: func(ctx context.Context, uid string) (*models.PaymentMethod, error) {
			return savedMethod(3, uid, "pm_default", true), nil
		},
	}
	var gotReq stripeapi.CreatePaymentIntentRequest
	provider := &mockProvider{
		CreatePaymentIntentFunc: func(ctx context.Context, req stripeapi.CreatePaymentIntentRequest) (*stripeapi.PaymentIntent, error) {
			gotReq = req
			return &stripeapi.PaymentIntent{ID: "pi_1", Status: stripeapi.IntentStatusSucceeded, ClientSecret: "sec"}, nil
		},
	}
	svc := payment.New(repo, provider, newMockCache(), feeBps, makeLogger())

	res, err := svc.CreatePaymentIntent(context.Background(), "buyer", payment.CreateIntentRequest{
		SellerUID:    "seller",
		Amount:       10000,
		Currency:     "usd",
		CheckoutType: models.CheckoutTypeExpress,
	})
	require.NoError(t, err)

	assert.Equal(t, "pm_default", gotReq.PaymentMethod)
	assert.True(t, gotReq.Confirm)
	assert.Equal(t, "acct_seller", gotReq.Destination)
	assert.Equal(t, int64(1000), gotReq.ApplicationFeeAmount)
	assert.Zero(t, repo.promoteCalls, "default exists, promotion must not happen")
	assert.Equal(t, models.TransactionStatusSucceeded, res.Status)
}

func TestCreatePaymentIntent_ExpressPromotesOldestOnce(t *testing.T) {
	repo := &mockRepo{
		GetDefaultPaymentMethodFunc: func(ctx context.Context, uid string) (*models.PaymentMethod, error) {
			return nil, nil
		},
		PromoteOldestPaymentMethodFunc: func(ctx context.Context, uid string) (*models.PaymentMethod, error) {
			return savedMethod(1, uid, "pm_oldest", true), nil
		},
	}
	var gotReq stripeapi.CreatePaymentIntentRequest
	provider := &mockProvider{
		CreatePaymentIntentFunc: func(ctx context.Context, req stripeapi.CreatePaymentIntentRequest) (*stripeapi.PaymentIntent, error) {
			gotReq = req
			return &stripeapi.PaymentIntent{ID: "pi_1", Status: stripeapi.IntentStatusProcessing, ClientSecret: "sec"}, nil
		},
	}
	svc := payment.New(repo, provider, newMockCache(), feeBps, makeLogger())

	_, err := svc.CreatePaymentIntent(context.Background(), "buyer", payment.CreateIntentRequest{
		SellerUID:    "seller",
		Amount:       500,
		Currency:     "usd",
		CheckoutType: models.CheckoutTypeExpress,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.promoteCalls)
	assert.Equal(t, "pm_oldest", gotReq.PaymentMethod)
	assert.True(t, gotReq.Confirm)
}

func TestCreatePaymentIntent_ExpressWithoutMethodsCollectsNewCard(t *testing.T) {
	repo := &mockRepo{}
	var gotReq stripeapi.CreatePaymentIntentRequest
	provider := &mockProvider{
		CreatePaymentIntentFunc: func(ctx context.Context, req stripeapi.CreatePaymentIntentRequest) (*stripeapi.PaymentIntent, error) {
			gotReq = req
			return &stripeapi.PaymentIntent{ID: "pi_1", Status: stripeapi.IntentStatusRequiresPaymentMethod, ClientSecret: "pi_1_secret"}, nil
		},
	}
	svc := payment.New(repo, provider, newMockCache(), feeBps, makeLogger())

	res, err := svc.CreatePaymentIntent(context.Background(), "buyer", payment.CreateIntentRequest{
		SellerUID:    "seller",
		Amount:       500,
		Currency:     "usd",
		CheckoutType: models.CheckoutTypeExpress,
	})
	require.NoError(t, err)

	assert.Empty(t, gotReq.PaymentMethod, "no charge attempt without saved methods")
	assert.False(t, gotReq.Confirm)
	assert.Equal(t, "off_session", gotReq.SetupFutureUsage)
	assert.Equal(t, "pi_1_secret", res.ClientSecret)
	assert.Equal(t, models.TransactionStatusPending, res.Status)
}

func TestCreatePaymentIntent_OnetimeNeverAttachesMethod(t *testing.T) {
	repo := &mockRepo{
		// Даже при наличии метода по умолчанию onetime его не использует.
		GetDefaultPaymentMethodFunc: func(ctx context.Context, uid string) (*models.PaymentMethod, error) {
			return savedMethod(3, uid, "pm_default", true), nil
		},
	}
	var gotReq stripeapi.CreatePaymentIntentRequest
	provider := &mockProvider{
		CreatePaymentIntentFunc: func(ctx context.Context, req stripeapi.CreatePaymentIntentRequest) (*stripeapi.PaymentIntent, error) {
			gotReq = req
			return &stripeapi.PaymentIntent{ID: "pi_1", Status: stripeapi.IntentStatusRequiresPaymentMethod, ClientSecret: "sec"}, nil
		},
	}
	svc := payment.New(repo, provider, newMockCache(), feeBps, makeLogger())

	_, err := svc.CreatePaymentIntent(context.Background(), "buyer", payment.CreateIntentRequest{
		SellerUID:    "seller",
		Amount:       500,
		Currency:     "usd",
		CheckoutType: models.CheckoutTypeOnetime,
	})
	require.NoError(t, err)

	assert.Empty(t, gotReq.PaymentMethod)
	assert.False(t, gotReq.Confirm)
	assert.Empty(t, gotReq.SetupFutureUsage, "onetime must not save the card")
}

func TestCreatePaymentIntent_ExplicitMethod(t *testing.T) {
	repo := &mockRepo{
		GetPaymentMethodFunc: func(ctx context.Context, uid string, id int) (*models.PaymentMethod, error) {
			require.Equal(t, 5, id)
			return savedMethod(5, uid, "pm_explicit", false), nil
		},
	}
	var gotReq stripeapi.CreatePaymentIntentRequest
	provider := &mockProvider{
		CreatePaymentIntentFunc: func(ctx context.Context, req stripeapi.CreatePaymentIntentRequest) (*stripeapi.PaymentIntent, error) {
			gotReq = req
			return &stripeapi.PaymentIntent{ID: "pi_1", Status: stripeapi.IntentStatusSucceeded, ClientSecret: "sec"}, nil
		},
	}
	svc := payment.New(repo, provider, newMockCache(), feeBps, makeLogger())

	_, err := svc.CreatePaymentIntent(context.Background(), "buyer", payment.CreateIntentRequest{
		SellerUID:       "seller",
		Amount:          500,
		Currency:        "usd",
		CheckoutType:    models.CheckoutTypeExpress,
		PaymentMethodID: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "pm_explicit", gotReq.PaymentMethod)
	assert.True(t, gotReq.Confirm)
}

func TestCreatePaymentIntent_ExplicitMethodNotFound(t *testing.T) {
	repo := &mockRepo{
		GetPaymentMethodFunc: func(ctx context.Context, uid string, id int) (*models.PaymentMethod, error) {
			return nil, nil
		},
	}
	provider := &mockProvider{}
	svc := payment.New(repo, provider, newMockCache(), feeBps, makeLogger())

	_, err := svc.CreatePaymentIntent(context.Background(), "buyer", payment.CreateIntentRequest{
		SellerUID:       "seller",
		Amount:          500,
		Currency:        "usd",
		CheckoutType:    models.CheckoutTypeExpress,
		PaymentMethodID: 99,
	})
	require.ErrorIs(t, err, payment.ErrPaymentMethodNotFound)
	assert.Zero(t, provider.intentCalls)
}

func TestCreatePaymentIntent_UnknownCheckoutType(t *testing.T) {
	svc := payment.New(&mockRepo{}, &mockProvider{}, newMockCache(), feeBps, makeLogger())

	_, err := svc.CreatePaymentIntent(context.Background(), "buyer", payment.CreateIntentRequest{
		SellerUID:    "seller",
		Amount:       500,
		Currency:     "usd",
		CheckoutType: "subscription",
	})
	require.ErrorIs(t, err, payment.ErrUnknownCheckoutType)
}

func TestCreatePaymentIntent_FeeRecordedInTransaction(t *testing.T) {
	var gotTr models.Transaction
	repo := &mockRepo{
		CreateTransactionFunc: func(ctx context.Context, tr models.Transaction) (int, error) {
			gotTr = tr
			return 11, nil
		},
	}
	svc := payment.New(repo, &mockProvider{}, newMockCache(), feeBps, makeLogger())

	res, err := svc.CreatePaymentIntent(context.Background(), "buyer", payment.CreateIntentRequest{
		SellerUID:    "seller",
		Amount:       105,
		Currency:     "eur",
		CheckoutType: models.CheckoutTypeOnetime,
	})
	require.NoError(t, err)

	assert.Equal(t, 11, res.TransactionID)
	assert.Equal(t, int64(105), gotTr.Amount)
	assert.Equal(t, int64(11), gotTr.ApplicationFee, "105 * 10% rounds half up to 11")
	assert.Equal(t, "eur", gotTr.Currency)
	assert.Equal(t, models.CheckoutTypeOnetime, gotTr.CheckoutType)
}

func TestCreatePaymentIntent_LazyCustomerCreation(t *testing.T) {
	profileCreated := false
	customerSaved := ""
	repo := &mockRepo{
		GetProfileFunc: func(ctx context.Context, uid string) (*models.Profile, error) {
			return nil, nil
		},
		CreateProfileFunc: func(ctx context.Context, uid string) error {
			profileCreated = true
			return nil
		},
		SetStripeCustomerIDFunc: func(ctx context.Context, uid, customerID string) error {
			customerSaved = customerID
			return nil
		},
	}
	provider := &mockProvider{
		CreateCustomerFunc: func(ctx context.Context, req stripeapi.CreateCustomerRequest) (*stripeapi.Customer, error) {
			require.Equal(t, "buyer@example.com", req.Email)
			return &stripeapi.Customer{ID: "cus_fresh"}, nil
		},
	}
	svc := payment.New(repo, provider, newMockCache(), feeBps, makeLogger())

	_, err := svc.CreatePaymentIntent(context.Background(), "buyer", payment.CreateIntentRequest{
		SellerUID:    "seller",
		Amount:       500,
		Currency:     "usd",
		CheckoutType: models.CheckoutTypeOnetime,
	})
	require.NoError(t, err)
	assert.True(t, profileCreated)
	assert.Equal(t, "cus_fresh", customerSaved)
}

func TestSavePaymentMethod_FirstBecomesDefault(t *testing.T) {
	tests := []struct {
		name        string
		count       int
		wantDefault bool
	}{
		{name: "first method", count: 0, wantDefault: true},
		{name: "second method", count: 1, wantDefault: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotDefault bool
			repo := &mockRepo{
				CountPaymentMethodsFunc: func(ctx context.Context, uid string) (int, error) {
					return tt.count, nil
				},
				CreatePaymentMethodFunc: func(ctx context.Context, method models.PaymentMethod, makeDefault bool) (int, error) {
					gotDefault = makeDefault
					require.Equal(t, "visa", method.Brand)
					require.Equal(t, "4242", method.Last4)
					return 1, nil
				},
			}
			svc := payment.New(repo, &mockProvider{}, newMockCache(), feeBps, makeLogger())

			_, err := svc.SavePaymentMethod(context.Background(), "buyer", "pm_new")
			require.NoError(t, err)
			assert.Equal(t, tt.wantDefault, gotDefault)
		})
	}
}

func TestRemovePaymentMethod_DetachesAtProvider(t *testing.T) {
	detached := ""
	repo := &mockRepo{
		GetPaymentMethodFunc: func(ctx context.Context, uid string, id int) (*models.PaymentMethod, error) {
			return savedMethod(4, uid, "pm_gone", false), nil
		},
	}
	provider := &mockProvider{
		DetachPaymentMethodFunc: func(ctx context.Context, id string) (*stripeapi.PaymentMethod, error) {
			detached = id
			return &stripeapi.PaymentMethod{ID: id}, nil
		},
	}
	svc := payment.New(repo, provider, newMockCache(), feeBps, makeLogger())

	require.NoError(t, svc.RemovePaymentMethod(context.Background(), "buyer", 4))
	assert.Equal(t, "pm_gone", detached)
}

func TestListTransactions_SecondReadServedFromCache(t *testing.T) {
	repoCalls := 0
	repo := &mockRepo{
		ListTransactionsFunc: func(ctx context.Context, uid string, limit, offset int) ([]*models.Transaction, error) {
			repoCalls++
			return []*models.Transaction{{ID: 1, IntentID: "pi_1", BuyerUID: uid}}, nil
		},
	}
	cache := newMockCache()
	svc := payment.New(repo, &mockProvider{}, cache, feeBps, makeLogger())

	first, err := svc.ListTransactions(context.Background(), "buyer", 10, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.ListTransactions(context.Background(), "buyer", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repoCalls)
	assert.Equal(t, 1, cache.sets)

	// Другая страница не попадает под уже закэшированный ключ.
	_, err = svc.ListTransactions(context.Background(), "buyer", 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, repoCalls)
}
