package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"beatstore/internal/client"
	"beatstore/internal/dto"
	"beatstore/internal/model"
	"beatstore/internal/repository"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
	ErrPriceNotFound    = errors.New("some track prices not found")
	ErrSessionNotFound  = errors.New("checkout session not found")
)

// orderNumberRetries bounds how often materialization retries after losing an
// order-number race to a concurrent checkout.
const orderNumberRetries = 3

type StripeService interface {
	CreateCartCheckout(ctx context.Context, userID string, req *dto.CartCheckoutRequest) (*dto.CheckoutResponse, error)
	CreateTrackCheckout(ctx context.Context, userID string, req *dto.TrackCheckoutRequest) (*dto.CheckoutResponse, error)
	// GetCheckoutStatus reports what became of a session after the redirect:
	// the materialized order, the single-item payment, or nothing yet.
	GetCheckoutStatus(ctx context.Context, sessionID string) (*dto.CheckoutStatusResponse, error)
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) error
}

type stripeServiceImpl struct {
	db               *gorm.DB
	stripeClient     client.StripeClient
	serviceBaseUrl   string
	orderRepo        repository.OrderRepository
	paymentRepo      repository.PaymentRepository
	trackRepo        repository.TrackRepository
	userRepo         repository.UserRepository
	webhookEventRepo repository.WebhookEventRepository
	mailer           Mailer
	now              func() time.Time
}

func NewStripeService(
	db *gorm.DB,
	stripeClient client.StripeClient,
	serviceBaseUrl string,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	trackRepo repository.TrackRepository,
	userRepo repository.UserRepository,
	webhookEventRepo repository.WebhookEventRepository,
	mailer Mailer,
) StripeService {
	return &stripeServiceImpl{
		db:               db,
		stripeClient:     stripeClient,
		serviceBaseUrl:   serviceBaseUrl,
		orderRepo:        orderRepo,
		paymentRepo:      paymentRepo,
		trackRepo:        trackRepo,
		userRepo:         userRepo,
		webhookEventRepo: webhookEventRepo,
		mailer:           mailer,
		now:              time.Now,
	}
}

// ---- checkout ----

func (s *stripeServiceImpl) CreateCartCheckout(ctx context.Context, userID string, req *dto.CartCheckoutRequest) (*dto.CheckoutResponse, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("cart is empty")
	}

	// repeated price ids collapse into one line with the quantities summed
	priceIDs := make([]string, 0, len(req.Items))
	quantityByPrice := make(map[string]int32, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item quantity must be positive")
		}
		if _, seen := quantityByPrice[item.TrackPriceID]; !seen {
			priceIDs = append(priceIDs, item.TrackPriceID)
		}
		quantityByPrice[item.TrackPriceID] += item.Quantity
	}

	prices, err := s.trackRepo.FindPrices(ctx, priceIDs)
	if err != nil {
		return nil, fmt.Errorf("get track prices: %w", err)
	}
	if len(prices) != len(priceIDs) {
		return nil, ErrPriceNotFound
	}

	var subtotal int64
	lineItems := make([]client.CheckoutLineItem, len(prices))
	metaItems := make([]*model.CheckoutItem, len(prices))
	for i, price := range prices {
		track, err := s.trackRepo.FindByID(ctx, price.TrackID)
		if err != nil {
			return nil, fmt.Errorf("get track %s: %w", price.TrackID, err)
		}

		qty := quantityByPrice[price.ID]
		subtotal += price.Amount * int64(qty)

		lineItems[i] = client.CheckoutLineItem{
			Name:          fmt.Sprintf("%s (%s)", track.Name, price.LicenseType),
			Amount:        price.Amount,
			Currency:      price.Currency,
			Quantity:      qty,
			StripePriceID: price.StripePriceID,
		}
		metaItems[i] = &model.CheckoutItem{
			TrackID:       price.TrackID,
			TrackPriceID:  price.ID,
			LicenseType:   price.LicenseType,
			Quantity:      qty,
			UnitPrice:     price.Amount,
			StripePriceID: price.StripePriceID,
		}
	}

	itemsJSON, err := json.Marshal(metaItems)
	if err != nil {
		return nil, fmt.Errorf("marshal cart metadata: %w", err)
	}

	// tax is not computed server-side yet; carried as an explicit zero so the
	// materializer's schema stays stable
	tax := int64(0)
	total := subtotal + tax

	result, err := s.stripeClient.CreateCheckoutSession(ctx, &client.CheckoutSessionParams{
		SuccessURL:    fmt.Sprintf("%s/checkout/success?session_id={CHECKOUT_SESSION_ID}", s.serviceBaseUrl),
		CancelURL:     fmt.Sprintf("%s/cart", s.serviceBaseUrl),
		CustomerEmail: req.Email,
		LineItems:     lineItems,
		Metadata: map[string]string{
			model.MetadataKeyItems:    string(itemsJSON),
			model.MetadataKeyUserID:   userID,
			model.MetadataKeySubtotal: strconv.FormatInt(subtotal, 10),
			model.MetadataKeyTax:      strconv.FormatInt(tax, 10),
			model.MetadataKeyTotal:    strconv.FormatInt(total, 10),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}

	return &dto.CheckoutResponse{
		SessionID:   result.SessionID,
		CheckoutURL: result.URL,
	}, nil
}

func (s *stripeServiceImpl) CreateTrackCheckout(ctx context.Context, userID string, req *dto.TrackCheckoutRequest) (*dto.CheckoutResponse, error) {
	prices, err := s.trackRepo.FindPrices(ctx, []string{req.TrackPriceID})
	if err != nil {
		return nil, fmt.Errorf("get track price: %w", err)
	}
	if len(prices) != 1 {
		return nil, ErrPriceNotFound
	}
	price := prices[0]

	track, err := s.trackRepo.FindByID(ctx, price.TrackID)
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}

	description := fmt.Sprintf("%s - %s license", track.Name, price.LicenseType)

	metadata := map[string]string{
		model.MetadataKeyUserID: userID,
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal payment metadata: %w", err)
	}

	result, err := s.stripeClient.CreateCheckoutSession(ctx, &client.CheckoutSessionParams{
		SuccessURL:    fmt.Sprintf("%s/checkout/success?session_id={CHECKOUT_SESSION_ID}", s.serviceBaseUrl),
		CancelURL:     fmt.Sprintf("%s/tracks/%s", s.serviceBaseUrl, track.ID),
		CustomerEmail: req.Email,
		LineItems: []client.CheckoutLineItem{{
			Name:          fmt.Sprintf("%s (%s)", track.Name, price.LicenseType),
			Amount:        price.Amount,
			Currency:      price.Currency,
			Quantity:      1,
			StripePriceID: price.StripePriceID,
		}},
		Metadata: metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}

	err = s.paymentRepo.Create(ctx, &model.Payment{
		ID:              uuid.NewString(),
		Amount:          price.Amount,
		Currency:        price.Currency,
		Status:          model.PaymentStatusPending,
		StripeSessionID: result.SessionID,
		Description:     description,
		Metadata:        string(metadataJSON),
	})
	if err != nil {
		return nil, fmt.Errorf("store payment in db: %w", err)
	}

	return &dto.CheckoutResponse{
		SessionID:   result.SessionID,
		CheckoutURL: result.URL,
	}, nil
}

func (s *stripeServiceImpl) GetCheckoutStatus(ctx context.Context, sessionID string) (*dto.CheckoutStatusResponse, error) {
	order, err := s.orderRepo.FindBySessionID(ctx, sessionID)
	if err == nil {
		return &dto.CheckoutStatusResponse{
			SessionID:   sessionID,
			Status:      order.Status,
			OrderNumber: order.OrderNumber,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find order for session %s: %w", sessionID, err)
	}

	payment, err := s.paymentRepo.FindBySessionID(ctx, sessionID)
	if err == nil {
		return &dto.CheckoutStatusResponse{
			SessionID: sessionID,
			Status:    payment.Status,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find payment for session %s: %w", sessionID, err)
	}

	return nil, ErrSessionNotFound
}

// ---- webhook receiver ----

// HandleWebhook is the only code path that mutates order and payment status.
func (s *stripeServiceImpl) HandleWebhook(ctx context.Context, headers http.Header, body []byte) error {
	if err := s.stripeClient.VerifyWebhookSignature(headers, body); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var event model.StripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.ID == "" || event.Type == "" {
		return fmt.Errorf("%w: event has no id or type", ErrMalformedEvent)
	}

	processed, err := s.webhookEventRepo.Exists(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("check webhook event ledger: %w", err)
	}
	if processed {
		log.Printf("webhook event %s already processed, skipping", event.ID)
		return nil
	}

	if err := s.dispatch(ctx, &event); err != nil {
		return err
	}

	if err := s.webhookEventRepo.MarkProcessed(ctx, event.ID, event.Type); err != nil {
		// the session-id constraint still guards order creation; a re-delivery
		// of this event will no-op
		log.Printf("mark webhook event %s processed: %v", event.ID, err)
	}

	return nil
}

func (s *stripeServiceImpl) dispatch(ctx context.Context, event *model.StripeEvent) error {
	switch event.Type {
	case model.EventCheckoutCompleted, model.EventCheckoutAsyncSucceeded:
		session, err := event.CheckoutSession()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return s.handleCheckoutSucceeded(ctx, session)

	case model.EventCheckoutAsyncFailed:
		session, err := event.CheckoutSession()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return s.handleSessionTerminal(ctx, session.ID, model.OrderStatusFailed, model.PaymentStatusFailed)

	case model.EventCheckoutExpired:
		session, err := event.CheckoutSession()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return s.handleSessionTerminal(ctx, session.ID, model.OrderStatusExpired, model.PaymentStatusExpired)

	case model.EventChargeRefunded:
		charge, err := event.Charge()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return s.handleChargeRefunded(ctx, charge)

	case model.EventPaymentIntentSucceeded:
		pi, err := event.PaymentIntent()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return s.handlePaymentIntent(ctx, pi.ID, model.PaymentStatusSucceeded)

	case model.EventPaymentIntentFailed:
		pi, err := event.PaymentIntent()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return s.handlePaymentIntent(ctx, pi.ID, model.PaymentStatusFailed)

	default:
		// ack so the processor does not retry-storm the endpoint
		log.Printf("unhandled webhook event type %s (%s)", event.Type, event.ID)
		return nil
	}
}

func (s *stripeServiceImpl) handleCheckoutSucceeded(ctx context.Context, session *model.CheckoutSession) error {
	// single-payment flow: the pending row created at session creation
	if rows, err := s.paymentRepo.UpdateStatusBySessionID(ctx, session.ID,
		[]string{model.PaymentStatusPending}, model.PaymentStatusSucceeded); err != nil {
		return fmt.Errorf("mark payment succeeded: %w", err)
	} else if rows > 0 && session.PaymentIntent != "" {
		if err := s.paymentRepo.AttachPaymentID(ctx, session.ID, session.PaymentIntent); err != nil {
			return fmt.Errorf("attach payment id: %w", err)
		}
	}

	return s.materializeOrder(ctx, session)
}

// materializeOrder turns the cart metadata embedded in a completed checkout
// session into exactly one order with its items, then fans out confirmation
// emails best-effort.
func (s *stripeServiceImpl) materializeOrder(ctx context.Context, session *model.CheckoutSession) error {
	itemsPayload := session.Metadata[model.MetadataKeyItems]
	if itemsPayload == "" {
		log.Printf("session %s has no cart metadata, nothing to materialize", session.ID)
		return nil
	}

	var items []*model.CheckoutItem
	if err := json.Unmarshal([]byte(itemsPayload), &items); err != nil {
		log.Printf("session %s cart metadata is malformed, skipping: %v", session.ID, err)
		return nil
	}
	if len(items) == 0 {
		log.Printf("session %s has an empty cart, nothing to materialize", session.ID)
		return nil
	}

	subtotal := parseAmount(session.Metadata[model.MetadataKeySubtotal])
	tax := parseAmount(session.Metadata[model.MetadataKeyTax])
	total := parseAmount(session.Metadata[model.MetadataKeyTotal])

	var user *model.User
	if userID := session.Metadata[model.MetadataKeyUserID]; userID != "" {
		u, err := s.userRepo.FindByID(ctx, userID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("resolve order user: %w", err)
			}
			log.Printf("session %s references unknown user %s, treating as guest", session.ID, userID)
		} else {
			user = u
		}
	}

	order := s.buildOrder(session, items, subtotal, tax, total, user)

	created, err := s.createOrderOnce(ctx, order)
	if err != nil {
		return err
	}
	if !created {
		log.Printf("order for session %s already exists, skipping", session.ID)
		return nil
	}

	s.sendConfirmations(ctx, order, user)
	return nil
}

func (s *stripeServiceImpl) buildOrder(session *model.CheckoutSession, items []*model.CheckoutItem,
	subtotal, tax, total int64, user *model.User) *model.Order {

	order := &model.Order{
		ID:              uuid.NewString(),
		Status:          model.OrderStatusPaid,
		Subtotal:        subtotal,
		Tax:             tax,
		Total:           total,
		Currency:        session.Currency,
		StripeSessionID: session.ID,
		StripePaymentID: session.PaymentIntent,
	}
	if order.Currency == "" {
		order.Currency = "usd"
	}
	if user != nil {
		id := user.ID
		order.UserID = &id
	}
	if session.CustomerDetails != nil {
		order.CustomerEmail = session.CustomerDetails.Email
		order.CustomerName = session.CustomerDetails.Name
	}

	order.Items = make([]model.OrderItem, len(items))
	for i, item := range items {
		orderItem := model.OrderItem{
			ID:            uuid.NewString(),
			OrderID:       order.ID,
			LicenseType:   item.LicenseType,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			TotalPrice:    item.UnitPrice * int64(item.Quantity),
			StripePriceID: item.StripePriceID,
		}
		if item.TrackID != "" {
			trackID := item.TrackID
			orderItem.TrackID = &trackID
		}
		if item.TrackPriceID != "" {
			priceID := item.TrackPriceID
			orderItem.TrackPriceID = &priceID
		}
		order.Items[i] = orderItem
	}

	return order
}

// createOrderOnce persists the order with a freshly generated daily order
// number. Numbering and insert share one transaction; the unique constraints
// on order number and session id close the races a bare check-then-create
// would leave open. Returns false when the session already has an order.
func (s *stripeServiceImpl) createOrderOnce(ctx context.Context, order *model.Order) (bool, error) {
	var lastErr error
	for attempt := 0; attempt < orderNumberRetries; attempt++ {
		created := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			exists, err := s.orderRepo.ExistsBySessionID(ctx, tx, order.StripeSessionID)
			if err != nil {
				return fmt.Errorf("check existing order: %w", err)
			}
			if exists {
				return nil
			}

			number, err := s.nextOrderNumber(ctx, tx, attempt)
			if err != nil {
				return err
			}
			order.OrderNumber = number

			if err := s.orderRepo.Create(ctx, tx, order); err != nil {
				return err
			}
			created = true
			return nil
		})
		if err == nil {
			return created, nil
		}

		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// either a concurrent delivery won the session id, or a
			// concurrent checkout won the order number
			exists, checkErr := s.orderRepo.ExistsBySessionID(ctx, s.db, order.StripeSessionID)
			if checkErr == nil && exists {
				return false, nil
			}
			lastErr = err
			continue
		}

		return false, fmt.Errorf("materialize order for session %s: %w", order.StripeSessionID, err)
	}

	return false, fmt.Errorf("order number conflicts exhausted retries for session %s: %w",
		order.StripeSessionID, lastErr)
}

// nextOrderNumber formats YYYYMMDD-NNNN where NNNN restarts at 0001 each UTC
// day, derived from the count of orders created since midnight. attempt shifts
// the candidate past numbers a previous attempt found taken, so a collision
// the count cannot explain still converges instead of repeating itself.
func (s *stripeServiceImpl) nextOrderNumber(ctx context.Context, tx *gorm.DB, attempt int) (string, error) {
	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	count, err := s.orderRepo.CountCreatedSince(ctx, tx, midnight)
	if err != nil {
		return "", fmt.Errorf("count today's orders: %w", err)
	}

	return fmt.Sprintf("%s-%04d", now.Format("20060102"), count+1+int64(attempt)), nil
}

// sendConfirmations emails every unique recipient: the billing snapshot and,
// for attributed orders, the account email. Failures are logged and never
// undo the committed order.
func (s *stripeServiceImpl) sendConfirmations(ctx context.Context, order *model.Order, user *model.User) {
	seen := make(map[string]bool)
	var recipients []string
	for _, addr := range []string{order.CustomerEmail, accountEmail(user)} {
		addr = strings.TrimSpace(addr)
		key := strings.ToLower(addr)
		if addr == "" || seen[key] {
			continue
		}
		seen[key] = true
		recipients = append(recipients, addr)
	}

	for _, to := range recipients {
		if err := s.mailer.SendOrderConfirmation(ctx, to, order); err != nil {
			log.Printf("send confirmation for order %s to %s: %v", order.OrderNumber, to, err)
		}
	}
}

func accountEmail(user *model.User) string {
	if user == nil {
		return ""
	}
	return user.Email
}

// handleSessionTerminal moves records still pending for the session into a
// terminal state. Zero rows is fine: the failure may arrive before anything
// was ever created, and paid or refunded rows are never overwritten.
func (s *stripeServiceImpl) handleSessionTerminal(ctx context.Context, sessionID, orderStatus, paymentStatus string) error {
	pending := []string{model.OrderStatusPending}
	if _, err := s.orderRepo.UpdateStatusBySessionID(ctx, sessionID, pending, orderStatus); err != nil {
		return fmt.Errorf("update order status for session %s: %w", sessionID, err)
	}

	if _, err := s.paymentRepo.UpdateStatusBySessionID(ctx, sessionID,
		[]string{model.PaymentStatusPending}, paymentStatus); err != nil {
		return fmt.Errorf("update payment status for session %s: %w", sessionID, err)
	}

	return nil
}

func (s *stripeServiceImpl) handleChargeRefunded(ctx context.Context, charge *model.Charge) error {
	if _, err := s.orderRepo.UpdateStatusByPaymentID(ctx, charge.PaymentIntent,
		[]string{model.OrderStatusPaid}, model.OrderStatusRefunded); err != nil {
		return fmt.Errorf("refund order for payment %s: %w", charge.PaymentIntent, err)
	}

	if _, err := s.paymentRepo.UpdateStatusByPaymentID(ctx, charge.PaymentIntent,
		[]string{model.PaymentStatusSucceeded}, model.PaymentStatusRefunded); err != nil {
		return fmt.Errorf("refund payment %s: %w", charge.PaymentIntent, err)
	}

	return nil
}

func (s *stripeServiceImpl) handlePaymentIntent(ctx context.Context, paymentID, status string) error {
	if _, err := s.paymentRepo.UpdateStatusByPaymentID(ctx, paymentID,
		[]string{model.PaymentStatusPending}, status); err != nil {
		return fmt.Errorf("update payment %s: %w", paymentID, err)
	}

	return nil
}

func parseAmount(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
