// Package mercadopago adapts the Mercado Pago SDK to the subset of the API this
// service uses: preapprovals (recurring subscriptions), payments and payment
// methods.
//
// Calls are bounded by the configured timeout and never retried: the
// processor redelivers webhooks on its own.
package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/mperror"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/paymentmethod"
	"github.com/mercadopago/sdk-go/pkg/preapproval"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/clinicbilling/pkg/config"
	"github.com/fatflowers/clinicbilling/pkg/logctx"
	"github.com/fatflowers/clinicbilling/pkg/metrics"
)

const (
	defaultBaseURL    = "https://api.mercadopago.com"
	headerIdempotency = "X-Idempotency-Key"
)

var ErrNotFound = errors.New("mercadopago: not found")

// APIError is a non-2xx answer from the API. Body is passed through to callers
// for diagnostics.
type APIError struct {
	StatusCode int
	Message    string
	Body       json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercadopago: status=%d message=%s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// API is the subset of Mercado Pago used by this service.
type API interface {
	CreatePreapproval(ctx context.Context, req *PreapprovalRequest) (*Preapproval, error)
	GetPreapproval(ctx context.Context, id string) (*Preapproval, error)
	UpdatePreapprovalStatus(ctx context.Context, id, status string) (*Preapproval, error)
	GetPayment(ctx context.Context, id string) (*Payment, error)
	ListPaymentMethods(ctx context.Context) ([]*PaymentMethod, error)
}

type Client struct {
	preapprovals   preapproval.Client
	payments       payment.Client
	paymentMethods paymentmethod.Client
	log            *zap.SugaredLogger
}

var _ API = (*Client)(nil)

type ClientOptions struct {
	AccessToken string
	// BaseURL replaces the SDK's fixed API host, for sandboxes and tests.
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewClient(opts ClientOptions, l *zap.SugaredLogger) (*Client, error) {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	r := &requester{client: hc}
	if base := strings.TrimRight(opts.BaseURL, "/"); base != "" && base != defaultBaseURL {
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("mercadopago: invalid base url %q: %w", opts.BaseURL, err)
		}
		r.base = u
	}
	cfg, err := mpconfig.New(opts.AccessToken, mpconfig.WithHTTPClient(r))
	if err != nil {
		return nil, fmt.Errorf("mercadopago: %w", err)
	}
	return &Client{
		preapprovals:   preapproval.NewClient(cfg),
		payments:       payment.NewClient(cfg),
		paymentMethods: paymentmethod.NewClient(cfg),
		log:            l,
	}, nil
}

// NewFromConfig builds the client from the mercadopago config section.
func NewFromConfig(cfg *config.Config, l *zap.SugaredLogger) (API, error) {
	if cfg.MercadoPago.AccessToken == "" {
		l.Warnw("mercadopago access token is empty; processor calls will be rejected")
	}
	return NewClient(ClientOptions{
		AccessToken: cfg.MercadoPago.AccessToken,
		BaseURL:     cfg.MercadoPago.BaseURL,
		Timeout:     cfg.MercadoPago.Timeout,
	}, l)
}

var Module = fx.Options(
	fx.Provide(NewFromConfig),
)

func (c *Client) CreatePreapproval(ctx context.Context, req *PreapprovalRequest) (out *Preapproval, err error) {
	defer c.observe(ctx, "create_preapproval", time.Now(), &err)

	ar := req.AutoRecurring
	res, err := c.preapprovals.Create(ctx, preapproval.Request{
		Reason:            req.Reason,
		ExternalReference: req.ExternalReference,
		PayerEmail:        req.PayerEmail,
		BackURL:           req.BackURL,
		Status:            req.Status,
		AutoRecurring: &preapproval.AutoRecurringRequest{
			Frequency:         ar.Frequency,
			FrequencyType:     ar.FrequencyType,
			TransactionAmount: ar.TransactionAmount,
			CurrencyID:        ar.CurrencyID,
			StartDate:         ar.StartDate,
			EndDate:           ar.EndDate,
		},
	})
	if err != nil {
		return nil, mapError(err)
	}
	return toPreapproval(res), nil
}

func (c *Client) GetPreapproval(ctx context.Context, id string) (out *Preapproval, err error) {
	defer c.observe(ctx, "get_preapproval", time.Now(), &err)

	if !validPathID(id) {
		return nil, fmt.Errorf("preapproval id %q: %w", id, ErrNotFound)
	}
	res, err := c.preapprovals.Get(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return toPreapproval(res), nil
}

func (c *Client) UpdatePreapprovalStatus(ctx context.Context, id, status string) (out *Preapproval, err error) {
	defer c.observe(ctx, "update_preapproval", time.Now(), &err)

	if !validPathID(id) {
		return nil, fmt.Errorf("preapproval id %q: %w", id, ErrNotFound)
	}
	res, err := c.preapprovals.Update(ctx, id, preapproval.UpdateRequest{Status: status})
	if err != nil {
		return nil, mapError(err)
	}
	return toPreapproval(res), nil
}

func (c *Client) GetPayment(ctx context.Context, id string) (out *Payment, err error) {
	defer c.observe(ctx, "get_payment", time.Now(), &err)

	// payment ids are numeric; anything else cannot exist on the processor
	n, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("payment id %q: %w", id, ErrNotFound)
	}
	res, err := c.payments.Get(ctx, n)
	if err != nil {
		return nil, mapError(err)
	}
	if res == nil {
		return nil, fmt.Errorf("payment %s: empty response", id)
	}
	return toPayment(res), nil
}

func (c *Client) ListPaymentMethods(ctx context.Context) (out []*PaymentMethod, err error) {
	defer c.observe(ctx, "list_payment_methods", time.Now(), &err)

	res, err := c.paymentMethods.List(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	out = make([]*PaymentMethod, 0, len(res))
	for _, m := range res {
		out = append(out, &PaymentMethod{
			ID:              m.ID,
			Name:            m.Name,
			PaymentTypeID:   m.PaymentTypeID,
			Status:          m.Status,
			SecureThumbnail: m.SecureThumbnail,
			Thumbnail:       m.Thumbnail,
		})
	}
	return out, nil
}

func (c *Client) observe(ctx context.Context, op string, start time.Time, errp *error) {
	metrics.ObserveProcess("mercadopago", op, start, *errp)
	logctx.FromCtx(ctx, c.log).Debugw("mercadopago_call",
		"op", op,
		"elapsed_ms", time.Since(start).Milliseconds(),
		"err", *errp,
	)
}

func toPreapproval(r *preapproval.Response) *Preapproval {
	if r == nil {
		return &Preapproval{}
	}
	ar := r.AutoRecurring
	return &Preapproval{
		ID:                r.ID,
		Status:            r.Status,
		Reason:            r.Reason,
		ExternalReference: r.ExternalReference,
		PayerEmail:        r.PayerEmail,
		InitPoint:         r.InitPoint,
		SandboxInitPoint:  r.SandboxInitPoint,
		NextPaymentDate:   optionalTime(r.NextPaymentDate),
		AutoRecurring: AutoRecurring{
			Frequency:         ar.Frequency,
			FrequencyType:     ar.FrequencyType,
			TransactionAmount: ar.TransactionAmount,
			CurrencyID:        ar.CurrencyID,
			StartDate:         optionalTime(ar.StartDate),
			EndDate:           optionalTime(ar.EndDate),
		},
	}
}

func toPayment(r *payment.Response) *Payment {
	p := &Payment{
		ID:                strconv.Itoa(r.ID),
		Status:            r.Status,
		StatusDetail:      r.StatusDetail,
		TransactionAmount: r.TransactionAmount,
		CurrencyID:        r.CurrencyID,
		PaymentMethodID:   r.PaymentMethodID,
		PaymentTypeID:     r.PaymentTypeID,
		ExternalReference: r.ExternalReference,
		Payer:             Payer{Email: r.Payer.Email},
		SubscriptionID:    r.PointOfInteraction.TransactionData.SubscriptionID,
		Metadata:          r.Metadata,
	}
	if raw, err := json.Marshal(r); err == nil {
		p.Raw = raw
	}
	return p
}

// validPathID rejects ids that would change the request path.
func validPathID(id string) bool {
	return id != "" && !strings.ContainsAny(id, "/?#%")
}

// mapError turns SDK response errors into *APIError.
func mapError(err error) error {
	var re *mperror.ResponseError
	if errors.As(err, &re) {
		return newAPIError(re.StatusCode, []byte(re.Message))
	}
	return fmt.Errorf("mercadopago: %w", err)
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Message: http.StatusText(status)}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			e.Message = payload.Message
		} else if payload.Error != "" {
			e.Message = payload.Error
		}
		e.Body = json.RawMessage(body)
	} else if len(body) > 0 {
		// not JSON: keep it as a JSON string so it can still be embedded in responses
		quoted, _ := json.Marshal(string(body))
		e.Body = quoted
	}
	return e
}

// requester sends SDK requests through the service's http.Client. It points
// them at base when set and reuses the trace id as idempotency key.
type requester struct {
	client *http.Client
	base   *url.URL
}

func (r *requester) Do(req *http.Request) (*http.Response, error) {
	if r.base != nil {
		req.URL.Scheme = r.base.Scheme
		req.URL.Host = r.base.Host
		req.URL.Path = strings.TrimRight(r.base.Path, "/") + req.URL.Path
		req.Host = ""
	}
	if tid := logctx.TraceID(req.Context()); tid != "" && req.Header.Get(headerIdempotency) != "" {
		req.Header.Set(headerIdempotency, tid)
	}
	return r.client.Do(req)
}
