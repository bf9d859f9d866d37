package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wenwu/saas-platform/esim-storefront/internal/catalog"
	"github.com/wenwu/saas-platform/esim-storefront/internal/config"
	"github.com/wenwu/saas-platform/esim-storefront/internal/metrics"
	"github.com/wenwu/saas-platform/esim-storefront/internal/models"
	"github.com/wenwu/saas-platform/esim-storefront/internal/store"
)

// Archive filters
const (
	ArchiveAll       = "all"
	ArchiveExpired   = "expired"
	ArchiveCancelled = "cancelled"
)

// iccidPrefix is the telecom industry identifier plus the simulated issuer
const iccidPrefix = "8901"

// OrderService handles the purchase flow and the order lifecycle
type OrderService struct {
	cfg     *config.Config
	store   *store.Store
	catalog *catalog.Catalog
	metrics *metrics.Metrics
	log     zerolog.Logger

	now      func() time.Time
	newID    func() string
	newICCID func() (string, error)
}

// NewOrderService creates a new order service
func NewOrderService(
	cfg *config.Config,
	st *store.Store,
	cat *catalog.Catalog,
	m *metrics.Metrics,
	log zerolog.Logger,
) *OrderService {
	return &OrderService{
		cfg:      cfg,
		store:    st,
		catalog:  cat,
		metrics:  m,
		log:      log,
		now:      time.Now,
		newID:    func() string { return "order_" + uuid.NewString() },
		newICCID: generateICCID,
	}
}

// Purchase simulates checkout and records a pending order. The returned
// Pending reports when the order reached storage.
func (s *OrderService) Purchase(ctx context.Context, req *models.PurchaseRequest) (models.Order, *store.Pending, error) {
	if req.PaymentMethod == "" {
		return models.Order{}, nil, ErrPaymentMethodRequired
	}
	if !req.PaymentMethod.Valid() {
		return models.Order{}, nil, fmt.Errorf("%w: %s", ErrUnsupportedPaymentMethod, req.PaymentMethod)
	}

	country, ok := s.catalog.Country(req.CountryID)
	if !ok {
		return models.Order{}, nil, ErrCountryNotFound
	}
	plan, ok := s.catalog.Plan(req.PlanID)
	if !ok {
		return models.Order{}, nil, ErrPlanNotFound
	}
	if plan.CountryID != country.ID {
		return models.Order{}, nil, ErrPlanCountryMismatch
	}

	// payment provider round trip
	if d := s.cfg.Purchase.SimulatedDelay; d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return models.Order{}, nil, ctx.Err()
		case <-timer.C:
		}
	}

	iccid, err := s.newICCID()
	if err != nil {
		return models.Order{}, nil, fmt.Errorf("generate iccid: %w", err)
	}

	order := models.NewOrder(s.newID(), plan, country, s.now())
	order.QRCode = strings.TrimRight(s.cfg.Purchase.InstallURLBase, "/") + "/" + order.ID
	order.ICCID = iccid

	pending := s.store.AddOrder(order)
	s.metrics.RecordOrderCreated(country.Code, plan.Currency)

	s.log.Info().
		Str("order_id", order.ID).
		Str("plan_id", plan.ID).
		Str("country", country.Code).
		Str("payment_method", string(req.PaymentMethod)).
		Msg("[OrderService] order created")

	return order, pending, nil
}

// CompleteInstall activates a pending order once the eSIM profile is
// installed. Completing an already active order changes nothing and returns
// a nil Pending.
func (s *OrderService) CompleteInstall(ctx context.Context, orderID string) (models.Order, *store.Pending, error) {
	order, pending, err := s.store.ModifyOrder(orderID, func(o models.Order) (*models.OrderUpdate, error) {
		switch o.Status {
		case models.OrderStatusActive:
			return nil, nil
		case models.OrderStatusPending:
		default:
			return nil, fmt.Errorf("%w: %s order cannot be activated", ErrInvalidTransition, o.Status)
		}
		status := models.OrderStatusActive
		now := s.now()
		return &models.OrderUpdate{Status: &status, ActivationDate: &now}, nil
	})
	if err != nil {
		return order, nil, orderError(err)
	}
	if pending == nil {
		return order, nil, nil
	}

	s.metrics.RecordStatusChange(string(models.OrderStatusActive))
	s.log.Info().Str("order_id", orderID).Msg("[OrderService] eSIM installed, order active")
	return order, pending, nil
}

// Cancel moves a pending or active order to cancelled
func (s *OrderService) Cancel(ctx context.Context, orderID string) (models.Order, *store.Pending, error) {
	order, pending, err := s.store.ModifyOrder(orderID, func(o models.Order) (*models.OrderUpdate, error) {
		switch o.Status {
		case models.OrderStatusCancelled:
			return nil, nil
		case models.OrderStatusPending, models.OrderStatusActive:
		default:
			return nil, fmt.Errorf("%w: %s order cannot be cancelled", ErrInvalidTransition, o.Status)
		}
		status := models.OrderStatusCancelled
		return &models.OrderUpdate{Status: &status}, nil
	})
	if err != nil {
		return order, nil, orderError(err)
	}
	if pending == nil {
		return order, nil, nil
	}

	s.metrics.RecordStatusChange(string(models.OrderStatusCancelled))
	s.log.Info().Str("order_id", orderID).Msg("[OrderService] order cancelled")
	return order, pending, nil
}

func orderError(err error) error {
	if errors.Is(err, store.ErrOrderNotFound) {
		return ErrOrderNotFound
	}
	return err
}

// GetOrder returns a single order
func (s *OrderService) GetOrder(orderID string) (models.Order, error) {
	order, ok := s.store.Order(orderID)
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	return order, nil
}

// Overview splits orders into active ones and everything else
func (s *OrderService) Overview() *models.OrdersOverviewResponse {
	resp := &models.OrdersOverviewResponse{
		Active: []models.Order{},
		Other:  []models.Order{},
	}
	for _, o := range s.store.Orders() {
		if o.Status == models.OrderStatusActive {
			resp.Active = append(resp.Active, o)
		} else {
			resp.Other = append(resp.Other, o)
		}
	}
	return resp
}

// Archive lists expired and cancelled orders. Expiry is whatever status the
// order carries; no dates are compared here.
func (s *OrderService) Archive(filter string) ([]models.Order, error) {
	if filter == "" {
		filter = ArchiveAll
	}

	var keep func(models.Order) bool
	switch filter {
	case ArchiveAll:
		keep = models.Order.IsArchived
	case ArchiveExpired, ArchiveCancelled:
		status := models.OrderStatus(filter)
		keep = func(o models.Order) bool { return o.Status == status }
	default:
		return nil, ErrInvalidArchiveFilter
	}

	archived := []models.Order{}
	for _, o := range s.store.Orders() {
		if keep(o) {
			archived = append(archived, o)
		}
	}
	return archived, nil
}

// ShareMessage builds the text a user sends to install the eSIM elsewhere
func (s *OrderService) ShareMessage(orderID string) (*models.ShareMessage, error) {
	order, ok := s.store.Order(orderID)
	if !ok {
		return nil, ErrOrderNotFound
	}

	var b strings.Builder
	fmt.Fprintf(&b, "eSIM для %s\n\n", order.Country.Name)
	fmt.Fprintf(&b, "План: %s\n", order.Plan.Name)
	fmt.Fprintf(&b, "Данные: %s\n\n", order.Plan.Data)
	fmt.Fprintf(&b, "QR-код: %s\n", order.QRCode)
	fmt.Fprintf(&b, "ICCID: %s\n\n", order.ICCID)
	b.WriteString("Установите eSIM, отсканировав QR-код в настройках устройства.")

	return &models.ShareMessage{
		Title:   "eSIM " + order.Country.Name,
		Message: b.String(),
	}, nil
}

// generateICCID returns the issuer prefix followed by 16 random digits
func generateICCID() (string, error) {
	var b strings.Builder
	b.WriteString(iccidPrefix)
	ten := big.NewInt(10)
	for i := 0; i < 16; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
