package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jafarshop/checkoutapi/internal/cart"
	"github.com/jafarshop/checkoutapi/internal/config"
	"github.com/jafarshop/checkoutapi/internal/domain"
	"github.com/jafarshop/checkoutapi/internal/provider"
	"github.com/jafarshop/checkoutapi/internal/repository"
	"github.com/jafarshop/checkoutapi/pkg/errors"
)

var minimumPayPalAmount = decimal.New(1, -2)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// maxPhoneDigits is the E.164 limit
const maxPhoneDigits = 15

type CheckoutService struct {
	repos          *repository.Repositories
	providers      provider.Registry
	validator      *cart.Validator
	reconciler     *Reconciler
	rate           decimal.Decimal
	payPalCurrency string
	currencies     map[domain.Provider]string
	pendingTTL     time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

// NewCheckoutService creates the payment flow service
func NewCheckoutService(cfg *config.Config, repos *repository.Repositories, providers provider.Registry, logger *zap.Logger) *CheckoutService {
	currencies := map[domain.Provider]string{
		domain.ProviderMTNMomo:     cfg.MTNMomo.Currency,
		domain.ProviderOrangeMoney: cfg.OrangeMoney.Currency,
	}

	return &CheckoutService{
		repos:          repos,
		providers:      providers,
		validator:      cart.NewValidator(cfg.Checkout.MaxCartItems),
		reconciler:     NewReconciler(repos, logger),
		rate:           cfg.Checkout.CFAPerEUR,
		payPalCurrency: cfg.PayPal.Currency,
		currencies:     currencies,
		pendingTTL:     cfg.Checkout.PendingOrderTTL,
		logger:         logger,
		now:            time.Now,
	}
}

// ConvertCFA converts a XAF total into the PayPal currency, rounded half away from zero to cents
func ConvertCFA(totalCFA int64, cfaPerUnit decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(totalCFA).DivRound(cfaPerUnit, 2)
}

// CreatePayPalOrder validates the cart, creates the PayPal order and records the intent
func (s *CheckoutService) CreatePayPalOrder(ctx context.Context, req CreatePayPalOrderRequest) (*PayPalOrderResult, error) {
	snapshot, total, err := s.validator.ValidateCart(req.Cart)
	if err != nil {
		return nil, err
	}
	billing := cart.ExtractBilling(req.Billing)
	if err := cart.RequireEmail(billing); err != nil {
		return nil, err
	}

	amount := ConvertCFA(total, s.rate)
	if amount.LessThan(minimumPayPalAmount) {
		return nil, &errors.ErrValidation{Field: "cart", Message: "total is below the minimum PayPal amount"}
	}

	client, err := s.providers.Get(domain.ProviderPayPal)
	if err != nil {
		return nil, err
	}

	result, err := client.Initiate(ctx, provider.InitiateRequest{
		Amount:    amount,
		Currency:  s.payPalCurrency,
		ReturnURL: req.returnURL(),
		CancelURL: req.cancelURL(),
	})
	if err != nil {
		return nil, err
	}

	pending := &domain.PendingOrder{
		Provider:         domain.ProviderPayPal,
		TransactionID:    result.TransactionID,
		CartSnapshot:     snapshot,
		BillingSnapshot:  billing,
		TotalCFA:         total,
		AmountValue:      decimal.NewNullDecimal(amount),
		Currency:         s.payPalCurrency,
		Status:           domain.PendingStatusPending,
		ProviderResponse: result.Raw,
	}
	if err := s.repos.PendingOrder.Create(ctx, pending); err != nil {
		s.logger.Error("PayPal order created but intent not recorded",
			zap.String("order_id", result.TransactionID),
			zap.Error(err),
		)
		return nil, err
	}

	return &PayPalOrderResult{
		OrderID:    result.TransactionID,
		Status:     result.ProviderStatus,
		ApproveURL: result.ApproveURL,
	}, nil
}

// CapturePayPalOrder captures an approved PayPal order. Capturing an order that was
// already closed returns the stored outcome without calling PayPal.
func (s *CheckoutService) CapturePayPalOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, &errors.ErrValidation{Field: "orderId", Message: "is required"}
	}

	pending, err := s.repos.PendingOrder.GetByTransaction(ctx, domain.ProviderPayPal, orderID)
	if err != nil {
		return nil, err
	}

	if pending.Status.IsTerminal() {
		current, err := s.reconciler.Current(ctx, domain.ProviderPayPal, orderID)
		if err != nil {
			return nil, err
		}
		return captureResult(current), nil
	}

	client, err := s.providers.Get(domain.ProviderPayPal)
	if err != nil {
		return nil, err
	}

	captured, err := client.Capture(ctx, orderID)
	if err != nil {
		s.logger.Warn("PayPal capture failed",
			zap.String("order_id", orderID),
			zap.Bool("retryable", errors.IsRetryable(err)),
			zap.Error(err),
		)
		var rejected *errors.ErrProviderRejected
		if !stderrors.As(err, &rejected) {
			return nil, err
		}
		captured, err = s.confirmCapture(ctx, client, orderID, err)
		if err != nil {
			return nil, err
		}
	}

	reconciliation, err := s.reconciler.Apply(ctx, pending, captured)
	if err != nil {
		return nil, err
	}
	return captureResult(reconciliation), nil
}

// confirmCapture reads the order back after PayPal refused a capture. A capture whose
// answer was lost is refused on retry (ORDER_ALREADY_CAPTURED), so a completed order
// means the money moved. Any other state keeps the original refusal.
func (s *CheckoutService) confirmCapture(ctx context.Context, client provider.PaymentProvider, orderID string, refusal error) (*provider.StatusResult, error) {
	status, err := client.PollStatus(ctx, orderID)
	if err != nil {
		s.logger.Warn("PayPal order lookup after refused capture failed",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return nil, err
	}
	if status.Outcome != domain.OutcomeSuccessful {
		return nil, refusal
	}

	s.logger.Info("PayPal order already captured",
		zap.String("order_id", orderID),
		zap.String("provider_status", status.ProviderStatus),
	)
	return status, nil
}

func captureResult(r *Reconciliation) *CaptureResult {
	result := &CaptureResult{
		Success: r.Status.IsPaid(),
		Status:  r.Status,
	}
	if r.Order != nil {
		result.OrderID = &r.Order.ID
	}

	switch {
	case r.Status.IsPaid():
		result.Detail = "payment captured"
	case r.Status == domain.PendingStatusPending:
		result.Detail = "capture is pending at PayPal"
	default:
		result.Detail = fmt.Sprintf("payment %s", r.Status)
	}
	return result
}

// RequestMobilePayment starts a push payment on the payer's handset (MTN) or a
// webpay session (Orange) and records the intent
func (s *CheckoutService) RequestMobilePayment(ctx context.Context, p domain.Provider, req MobilePaymentRequest) (*MobilePaymentResult, error) {
	if p.RequiresCapture() || !p.IsValid() {
		return nil, &errors.ErrValidation{Field: "provider", Message: fmt.Sprintf("%s is not a mobile money provider", p)}
	}

	snapshot, total, err := s.validator.ValidateCart(req.Cart)
	if err != nil {
		return nil, err
	}
	billing := cart.ExtractBilling(req.Billing)
	if err := cart.RequireEmail(billing); err != nil {
		return nil, err
	}

	if req.Amount != nil {
		declared, err := parseAmount(req.Amount)
		if err != nil {
			return nil, err
		}
		if !declared.Equal(decimal.NewFromInt(total)) {
			return nil, &errors.ErrValidation{
				Field:   "amount",
				Message: fmt.Sprintf("does not match cart total %d", total),
			}
		}
	}

	phone := NormalizePhone(req.PhoneNumber)
	if phone == "" {
		phone = NormalizePhone(billing.Phone)
	}
	if phone == "" && p == domain.ProviderMTNMomo {
		return nil, &errors.ErrValidation{Field: "phoneNumber", Message: "is required"}
	}
	if len(phone) > maxPhoneDigits {
		return nil, &errors.ErrValidation{
			Field:   "phoneNumber",
			Message: fmt.Sprintf("must have at most %d digits", maxPhoneDigits),
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.currencies[p]
	}
	if !currencyCode.MatchString(currency) {
		return nil, &errors.ErrValidation{Field: "currency", Message: "must be a three letter ISO 4217 code"}
	}

	client, err := s.providers.Get(p)
	if err != nil {
		return nil, err
	}

	result, err := client.Initiate(ctx, provider.InitiateRequest{
		Amount:     decimal.NewFromInt(total),
		Currency:   currency,
		PayerPhone: phone,
		ReturnURL:  req.ReturnURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		return nil, err
	}

	pending := &domain.PendingOrder{
		Provider:         p,
		TransactionID:    result.TransactionID,
		CartSnapshot:     snapshot,
		BillingSnapshot:  billing,
		TotalCFA:         total,
		Currency:         currency,
		PayerPhone:       phone,
		Status:           domain.PendingStatusPending,
		ProviderResponse: result.Raw,
	}
	if err := s.repos.PendingOrder.Create(ctx, pending); err != nil {
		s.logger.Error("Mobile payment requested but intent not recorded",
			zap.String("provider", string(p)),
			zap.String("transaction_id", result.TransactionID),
			zap.Error(err),
		)
		return nil, err
	}

	message := "Payment request sent. Confirm the payment on your phone."
	if result.PaymentURL != "" {
		message = "Payment session created. Complete the payment on the Orange Money page."
	}

	return &MobilePaymentResult{
		Success:       true,
		TransactionID: result.TransactionID,
		Message:       message,
		PaymentURL:    result.PaymentURL,
	}, nil
}

// PaymentStatus polls the provider for a pending payment and reconciles the result.
// Closed payments are answered from the store.
func (s *CheckoutService) PaymentStatus(ctx context.Context, p domain.Provider, transactionID string) (*PaymentStatusResult, error) {
	pending, err := s.repos.PendingOrder.GetByTransaction(ctx, p, transactionID)
	if err != nil {
		return nil, err
	}

	if pending.Status.IsTerminal() {
		current, err := s.reconciler.Current(ctx, p, transactionID)
		if err != nil {
			return nil, err
		}
		return statusResult(transactionID, current), nil
	}

	client, err := s.providers.Get(p)
	if err != nil {
		return nil, err
	}

	polled, err := client.PollStatus(ctx, transactionID)
	if err != nil {
		s.logger.Warn("Payment status poll failed",
			zap.String("provider", string(p)),
			zap.String("transaction_id", transactionID),
			zap.Error(err),
		)
		return nil, err
	}

	reconciliation, err := s.reconciler.Apply(ctx, pending, polled)
	if err != nil {
		return nil, err
	}
	return statusResult(transactionID, reconciliation), nil
}

// CancelPayment closes a pending push payment. The provider is asked first so a
// payment that already went through is recorded instead of cancelled.
func (s *CheckoutService) CancelPayment(ctx context.Context, p domain.Provider, transactionID string) (*PaymentStatusResult, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, &errors.ErrValidation{Field: "transactionId", Message: "is required"}
	}

	pending, err := s.repos.PendingOrder.GetByTransaction(ctx, p, transactionID)
	if err != nil {
		return nil, err
	}
	if pending.Status.IsTerminal() {
		current, err := s.reconciler.Current(ctx, p, transactionID)
		if err != nil {
			return nil, err
		}
		return statusResult(transactionID, current), nil
	}

	client, err := s.providers.Get(p)
	if err != nil {
		return nil, err
	}

	polled, err := client.PollStatus(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if polled.Outcome == domain.OutcomePending {
		polled = &provider.StatusResult{
			Outcome:        domain.OutcomeCancelled,
			ProviderStatus: polled.ProviderStatus,
			Raw:            polled.Raw,
		}
	}

	reconciliation, err := s.reconciler.Apply(ctx, pending, polled)
	if err != nil {
		return nil, err
	}
	return statusResult(transactionID, reconciliation), nil
}

func statusResult(transactionID string, r *Reconciliation) *PaymentStatusResult {
	result := &PaymentStatusResult{TransactionID: transactionID}
	if r.Order != nil {
		result.OrderID = &r.Order.ID
	}

	switch r.Status {
	case domain.PendingStatusCaptured, domain.PendingStatusSuccessful:
		result.Status = APIStatusSuccess
		result.Message = "Payment confirmed."
	case domain.PendingStatusFailed:
		result.Status = APIStatusFailed
		result.Message = "Payment failed."
	case domain.PendingStatusExpired:
		result.Status = APIStatusFailed
		result.Message = "Payment request expired."
	case domain.PendingStatusCancelled:
		result.Status = APIStatusCancelled
		result.Message = "Payment cancelled."
	default:
		result.Status = APIStatusPending
		result.Message = "Waiting for payment confirmation."
	}
	return result
}

// ExpireStale closes intents still pending after the configured TTL
func (s *CheckoutService) ExpireStale(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.pendingTTL)

	expired, err := s.repos.PendingOrder.ExpireStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.logger.Info("Expired stale payment intents",
			zap.Int64("count", expired),
			zap.Time("cutoff", cutoff),
		)
	}
	return expired, nil
}

// ListOrders returns ledger entries, newest first
func (s *CheckoutService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, error) {
	return s.repos.Order.List(ctx, filter)
}

func (s *CheckoutService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.repos.Order.GetByID(ctx, id)
}

// ListPendingOrders returns intents, newest first
func (s *CheckoutService) ListPendingOrders(ctx context.Context, filter repository.PendingOrderFilter) ([]*domain.PendingOrder, error) {
	if filter.Provider != "" && !filter.Provider.IsValid() {
		return nil, &errors.ErrValidation{Field: "provider", Message: "unknown provider"}
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, &errors.ErrValidation{Field: "status", Message: "unknown status"}
	}
	return s.repos.PendingOrder.List(ctx, filter)
}

func parseAmount(v any) (decimal.Decimal, error) {
	var amount decimal.Decimal
	var err error
	switch a := v.(type) {
	case float64:
		amount = decimal.NewFromFloat(a)
	case int:
		amount = decimal.NewFromInt(int64(a))
	case string:
		amount, err = decimal.NewFromString(strings.TrimSpace(a))
	default:
		err = fmt.Errorf("unsupported type %T", v)
	}
	if err != nil {
		return decimal.Decimal{}, &errors.ErrValidation{Field: "amount", Message: "must be a number"}
	}
	return amount, nil
}

// NormalizePhone keeps digits only and prefixes Cameroonian local numbers with 237
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	phone := strings.TrimPrefix(b.String(), "00")
	if len(phone) == 9 {
		phone = "237" + phone
	}
	return phone
}
