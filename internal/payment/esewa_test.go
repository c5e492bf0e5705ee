package payment

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

type stubPoster struct {
	body     string
	err      error
	calls    int
	lastURL  string
	lastForm url.Values
}

func (s *stubPoster) PostForm(_ context.Context, u, body string) ([]byte, error) {
	s.calls++
	s.lastURL = u
	s.lastForm, _ = url.ParseQuery(body)
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.body), nil
}

const testSecret = "8gBm/:&EnhH.1/q"

func TestSign_ReferenceVector(t *testing.T) {
	msg := SignatureMessage(100, "abc-123", "EPAYTEST")
	require.Equal(t, "total_amount=100,transaction_uuid=abc-123,product_code=EPAYTEST", msg)

	first := Sign(testSecret, msg)
	assert.Equal(t, "he9XDW0cedutyT/W1uVuIjJTZ55XfVDlZ7qpM8RVjyA=", first)
	assert.Equal(t, first, Sign(testSecret, msg))
}

func newTestEsewa(poster *stubPoster, production bool) *Esewa {
	e := NewEsewa(EsewaConfig{
		MerchantCode: "EPAYTEST",
		SecretKey:    testSecret,
		BaseURL:      "https://shop.example.com/",
		FormURL:      "https://rc-epay.esewa.com.np/api/epay/main/v2/form",
		Production:   production,
	}, poster, nil)
	e.now = func() time.Time { return time.UnixMilli(1700000000000) }
	e.token = func() string { return "11111111-2222-4333-8444-555555555555" }
	return e
}

func TestEsewaInitiate_SignedForm(t *testing.T) {
	e := newTestEsewa(&stubPoster{}, false)

	initiation, err := e.Initiate(context.Background(), InitiateRequest{
		Order:   domain.Order{ID: "order-1", Amount: 1020},
		Summary: domain.PriceSummary{Subtotal: 1000, TaxAmount: 20, Total: 1020},
	})
	require.NoError(t, err)
	require.NotNil(t, initiation.Esewa)

	f := initiation.Esewa
	assert.Equal(t, int64(1000), f.Amount)
	assert.Equal(t, int64(20), f.TaxAmount)
	assert.Equal(t, int64(1020), f.TotalAmount)
	assert.Equal(t, "1700000000000-11111111-2222-4333-8444-555555555555", f.TransactionUUID)
	assert.Equal(t, "EPAYTEST", f.ProductCode)
	assert.Zero(t, f.ProductServiceCharge)
	assert.Zero(t, f.ProductDeliveryCharge)
	assert.Equal(t, "https://shop.example.com/order-placed?orderId=order-1", f.SuccessURL)
	assert.Equal(t, "https://shop.example.com/cart", f.FailureURL)
	assert.Equal(t, "total_amount,transaction_uuid,product_code", f.SignedFieldNames)
	assert.Equal(t, "UQXzuspqicsILICkskPVlO6Z5P+6XlTMhIZoXDkKCmI=", f.Signature)
	assert.Equal(t, "https://rc-epay.esewa.com.np/api/epay/main/v2/form", initiation.RedirectURL)
}

func TestEsewaInitiate_TransactionIDsAreUnique(t *testing.T) {
	e := NewEsewa(EsewaConfig{MerchantCode: "EPAYTEST", SecretKey: testSecret}, nil, nil)
	req := InitiateRequest{Order: domain.Order{ID: "o", Amount: 102}, Summary: domain.PriceSummary{Subtotal: 100, TaxAmount: 2, Total: 102}}

	a, err := e.Initiate(context.Background(), req)
	require.NoError(t, err)
	b, err := e.Initiate(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, a.Esewa.TransactionUUID, b.Esewa.TransactionUUID)
}

func TestEsewaInitiate_MissingConfig(t *testing.T) {
	e := NewEsewa(EsewaConfig{MerchantCode: "EPAYTEST"}, nil, nil)

	_, err := e.Initiate(context.Background(), InitiateRequest{Order: domain.Order{ID: "o"}})
	var gwErr *domain.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, domain.PaymentEsewa, gwErr.Provider)
}

func params() CallbackParams {
	return CallbackParams{OrderID: "order-1", TransactionID: "oid-1", Amount: "1020", Reference: "REF-1", ProductCode: "EPAYTEST"}
}

func TestEsewaVerify_SuccessIsCaseInsensitiveAndTrimmed(t *testing.T) {
	poster := &stubPoster{body: "Success\n"}
	e := newTestEsewa(poster, false)

	v, err := e.Verify(context.Background(), params())
	require.NoError(t, err)
	assert.True(t, v.Verified)
	assert.Equal(t, "REF-1", v.ProviderReference)

	assert.Equal(t, EsewaVerifyURLSandbox, poster.lastURL)
	assert.Equal(t, "1020", poster.lastForm.Get("amt"))
	assert.Equal(t, "REF-1", poster.lastForm.Get("rid"))
	assert.Equal(t, "EPAYTEST", poster.lastForm.Get("pid"))
	assert.Equal(t, "EPAYTEST", poster.lastForm.Get("scd"))
}

func TestEsewaVerify_ProductionEndpoint(t *testing.T) {
	poster := &stubPoster{body: "success"}
	e := newTestEsewa(poster, true)

	_, err := e.Verify(context.Background(), params())
	require.NoError(t, err)
	assert.Equal(t, EsewaVerifyURLProduction, poster.lastURL)
}

func TestEsewaVerify_RejectionKeepsRawBody(t *testing.T) {
	poster := &stubPoster{body: "<response>failure</response>"}
	e := newTestEsewa(poster, false)

	v, err := e.Verify(context.Background(), params())
	require.NoError(t, err)
	assert.False(t, v.Verified)
	assert.Equal(t, "<response>failure</response>", v.Reason)
}

func TestEsewaVerify_NetworkErrorIsGatewayError(t *testing.T) {
	poster := &stubPoster{err: errors.New("dial tcp: i/o timeout")}
	e := newTestEsewa(poster, false)

	_, err := e.Verify(context.Background(), params())
	var gwErr *domain.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "verify", gwErr.Op)
}

func TestCallbackParams_Validate(t *testing.T) {
	require.NoError(t, params().Validate())

	p := params()
	p.Reference = " "
	assert.ErrorIs(t, p.Validate(), domain.ErrMissingParams)
}
