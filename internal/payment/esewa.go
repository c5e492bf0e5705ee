package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

const (
	EsewaVerifyURLProduction = "https://epay.esewa.com.np/epay/transrec"
	EsewaVerifyURLSandbox    = "https://uat.esewa.com.np/epay/transrec"

	EsewaSignedFieldNames = "total_amount,transaction_uuid,product_code"
)

// EsewaForm is the signed field set posted by the buyer's browser to eSewa.
type EsewaForm struct {
	Amount                int64  `json:"amount"`
	TaxAmount             int64  `json:"tax_amount"`
	TotalAmount           int64  `json:"total_amount"`
	TransactionUUID       string `json:"transaction_uuid"`
	ProductCode           string `json:"product_code"`
	ProductServiceCharge  int64  `json:"product_service_charge"`
	ProductDeliveryCharge int64  `json:"product_delivery_charge"`
	SuccessURL            string `json:"success_url"`
	FailureURL            string `json:"failure_url"`
	SignedFieldNames      string `json:"signed_field_names"`
	Signature             string `json:"signature"`
}

// formPoster is satisfied by *httpclient.Client.
type formPoster interface {
	PostForm(ctx context.Context, url, body string) ([]byte, error)
}

type EsewaConfig struct {
	MerchantCode string
	SecretKey    string
	BaseURL      string
	FormURL      string
	// VerifyURL is derived from Production when empty.
	VerifyURL  string
	Production bool
	Timeout    time.Duration
}

type Esewa struct {
	cfg    EsewaConfig
	client formPoster
	logger *slog.Logger
	now    func() time.Time
	token  func() string
}

func NewEsewa(cfg EsewaConfig, client formPoster, logger *slog.Logger) *Esewa {
	if cfg.VerifyURL == "" {
		cfg.VerifyURL = EsewaVerifyURLSandbox
		if cfg.Production {
			cfg.VerifyURL = EsewaVerifyURLProduction
		}
	}
	return &Esewa{
		cfg:    cfg,
		client: client,
		logger: logging.OrDiscard(logger),
		now:    time.Now,
		token:  uuid.NewString,
	}
}

func (e *Esewa) Method() domain.PaymentMethod { return domain.PaymentEsewa }

// Initiate builds the signed form for the order. The total signed is the
// amount persisted on the order.
func (e *Esewa) Initiate(ctx context.Context, req InitiateRequest) (Initiation, error) {
	if e.cfg.SecretKey == "" || e.cfg.MerchantCode == "" {
		return Initiation{}, gatewayErr(domain.PaymentEsewa, "initiate", errors.New("merchant code or secret key not configured"))
	}
	base := strings.TrimRight(e.cfg.BaseURL, "/")
	form := EsewaForm{
		Amount:           req.Summary.Subtotal,
		TaxAmount:        req.Summary.TaxAmount,
		TotalAmount:      req.Order.Amount,
		TransactionUUID:  fmt.Sprintf("%d-%s", e.now().UnixMilli(), e.token()),
		ProductCode:      e.cfg.MerchantCode,
		SuccessURL:       base + "/order-placed?orderId=" + url.QueryEscape(req.Order.ID),
		FailureURL:       base + "/cart",
		SignedFieldNames: EsewaSignedFieldNames,
	}
	form.Signature = Sign(e.cfg.SecretKey, SignatureMessage(form.TotalAmount, form.TransactionUUID, form.ProductCode))

	e.logger.InfoContext(ctx, "esewa payment initiated",
		slog.String("order_id", req.Order.ID),
		slog.String("transaction_uuid", form.TransactionUUID),
		slog.Int64("total_amount", form.TotalAmount),
	)
	// RedirectURL is the form action the browser posts the signed fields to.
	return Initiation{Method: domain.PaymentEsewa, Esewa: &form, RedirectURL: e.cfg.FormURL}, nil
}

// Verify asks eSewa whether the reference settled the amount.
func (e *Esewa) Verify(ctx context.Context, params CallbackParams) (Verification, error) {
	if e.client == nil {
		return Verification{}, gatewayErr(domain.PaymentEsewa, "verify", errors.New("http client not configured"))
	}
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	form := url.Values{}
	form.Set("amt", params.Amount)
	form.Set("rid", params.Reference)
	form.Set("pid", params.ProductCode)
	form.Set("scd", e.cfg.MerchantCode)

	body, err := e.client.PostForm(ctx, e.cfg.VerifyURL, form.Encode())
	if err != nil {
		return Verification{}, gatewayErr(domain.PaymentEsewa, "verify", err)
	}
	raw := string(body)
	if !strings.EqualFold(strings.TrimSpace(raw), "success") {
		e.logger.WarnContext(ctx, "esewa verification rejected",
			slog.String("order_id", params.OrderID),
			slog.String("reference", params.Reference),
			slog.String("body", raw),
		)
		return Verification{Reason: raw}, nil
	}
	return Verification{Verified: true, ProviderReference: params.Reference}, nil
}

// SignatureMessage is the exact string eSewa signs, in its fixed field order.
func SignatureMessage(totalAmount int64, transactionUUID, productCode string) string {
	return "total_amount=" + strconv.FormatInt(totalAmount, 10) +
		",transaction_uuid=" + transactionUUID +
		",product_code=" + productCode
}

// Sign returns Base64(HMAC-SHA256(secret, message)).
func Sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
