package stripeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client клиент REST API Stripe. Запросы кодируются формой
// application/x-www-form-urlencoded, авторизация — Bearer по секретному ключу.
type Client struct {
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент Stripe.
func NewClient(secretKey string) *Client {
	return &Client{
		secretKey:  secretKey,
		apiURL:     "https://api.stripe.com/v1",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// APIError ошибка, возвращенная Stripe API.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe: %s (type=%s, code=%s, status=%d)", e.Message, e.Type, e.Code, e.StatusCode)
}

func (c *Client) newRequest(ctx context.Context, method, path string, form url.Values) (*http.Request, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e apiError
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
			return fmt.Errorf("stripe: unexpected status %s", resp.Status)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Type:       e.Error.Type,
			Code:       e.Error.Code,
			Message:    e.Error.Message,
		}
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

func addMetadata(form url.Values, metadata map[string]string) {
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}
}

// CreateCustomer создает покупателя у провайдера.
func (c *Client) CreateCustomer(ctx context.Context, reqParams CreateCustomerRequest) (*Customer, error) {
	form := url.Values{}
	form.Set("email", reqParams.Email)
	addMetadata(form, reqParams.Metadata)

	req, err := c.newRequest(ctx, http.MethodPost, "/customers", form)
	if err != nil {
		return nil, err
	}
	var customer Customer
	if err := c.do(req, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CreatePaymentIntent создает платеж. Если заполнен Destination,
// платеж оформляется как destination charge с комиссией площадки.
func (c *Client) CreatePaymentIntent(ctx context.Context, reqParams CreatePaymentIntentRequest) (*PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(reqParams.Amount, 10))
	form.Set("currency", reqParams.Currency)
	form.Set("customer", reqParams.Customer)
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("automatic_payment_methods[allow_redirects]", "never")
	if reqParams.PaymentMethod != "" {
		form.Set("payment_method", reqParams.PaymentMethod)
	}
	if reqParams.Confirm {
		form.Set("confirm", "true")
	}
	if reqParams.OffSession {
		form.Set("off_session", "true")
	}
	if reqParams.SetupFutureUsage != "" {
		form.Set("setup_future_usage", reqParams.SetupFutureUsage)
	}
	if reqParams.Destination != "" {
		form.Set("transfer_data[destination]", reqParams.Destination)
		form.Set("application_fee_amount", strconv.FormatInt(reqParams.ApplicationFeeAmount, 10))
	}
	addMetadata(form, reqParams.Metadata)

	req, err := c.newRequest(ctx, http.MethodPost, "/payment_intents", form)
	if err != nil {
		return nil, err
	}
	var intent PaymentIntent
	if err := c.do(req, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// GetPaymentIntent возвращает платеж по его ID.
func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/payment_intents/"+id, nil)
	if err != nil {
		return nil, err
	}
	var intent PaymentIntent
	if err := c.do(req, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// CreateSetupIntent создает intent для привязки платежного метода без списания.
func (c *Client) CreateSetupIntent(ctx context.Context, customer string, metadata map[string]string) (*SetupIntent, error) {
	form := url.Values{}
	form.Set("customer", customer)
	form.Set("usage", "off_session")
	addMetadata(form, metadata)

	req, err := c.newRequest(ctx, http.MethodPost, "/setup_intents", form)
	if err != nil {
		return nil, err
	}
	var intent SetupIntent
	if err := c.do(req, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// GetPaymentMethod возвращает платежный метод по его ID.
func (c *Client) GetPaymentMethod(ctx context.Context, id string) (*PaymentMethod, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/payment_methods/"+id, nil)
	if err != nil {
		return nil, err
	}
	var method PaymentMethod
	if err := c.do(req, &method); err != nil {
		return nil, err
	}
	return &method, nil
}

// DetachPaymentMethod отвязывает платежный метод от покупателя.
func (c *Client) DetachPaymentMethod(ctx context.Context, id string) (*PaymentMethod, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/payment_methods/"+id+"/detach", url.Values{})
	if err != nil {
		return nil, err
	}
	var method PaymentMethod
	if err := c.do(req, &method); err != nil {
		return nil, err
	}
	return &method, nil
}

// CreateSubscription создает регулярную подписку, платеж первого счета
// приходит развернутым для получения client_secret.
func (c *Client) CreateSubscription(ctx context.Context, reqParams CreateSubscriptionRequest) (*Subscription, error) {
	form := url.Values{}
	form.Set("customer", reqParams.Customer)
	form.Set("items[0][price]", reqParams.PriceID)
	form.Set("payment_behavior", "default_incomplete")
	form.Add("expand[]", "latest_invoice.payment_intent")
	addMetadata(form, reqParams.Metadata)

	req, err := c.newRequest(ctx, http.MethodPost, "/subscriptions", form)
	if err != nil {
		return nil, err
	}
	var sub Subscription
	if err := c.do(req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CancelSubscription отменяет подписку немедленно.
func (c *Client) CancelSubscription(ctx context.Context, id string) (*Subscription, error) {
	req, err := c.newRequest(ctx, http.MethodDelete, "/subscriptions/"+id, nil)
	if err != nil {
		return nil, err
	}
	var sub Subscription
	if err := c.do(req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateAccount создает Express Connect-аккаунт продавца.
func (c *Client) CreateAccount(ctx context.Context, email string, metadata map[string]string) (*Account, error) {
	form := url.Values{}
	form.Set("type", "express")
	form.Set("email", email)
	form.Set("capabilities[card_payments][requested]", "true")
	form.Set("capabilities[transfers][requested]", "true")
	addMetadata(form, metadata)

	req, err := c.newRequest(ctx, http.MethodPost, "/accounts", form)
	if err != nil {
		return nil, err
	}
	var account Account
	if err := c.do(req, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccount возвращает Connect-аккаунт по его ID.
func (c *Client) GetAccount(ctx context.Context, id string) (*Account, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/accounts/"+id, nil)
	if err != nil {
		return nil, err
	}
	var account Account
	if err := c.do(req, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// CreateAccountLink создает одноразовую ссылку онбординга для аккаунта продавца.
func (c *Client) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (*AccountLink, error) {
	form := url.Values{}
	form.Set("account", accountID)
	form.Set("refresh_url", refreshURL)
	form.Set("return_url", returnURL)
	form.Set("type", "account_onboarding")

	req, err := c.newRequest(ctx, http.MethodPost, "/account_links", form)
	if err != nil {
		return nil, err
	}
	var link AccountLink
	if err := c.do(req, &link); err != nil {
		return nil, err
	}
	return &link, nil
}
