package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wenwu/saas-platform/esim-storefront/internal/catalog"
	"github.com/wenwu/saas-platform/esim-storefront/internal/config"
	"github.com/wenwu/saas-platform/esim-storefront/internal/metrics"
	"github.com/wenwu/saas-platform/esim-storefront/internal/models"
	"github.com/wenwu/saas-platform/esim-storefront/internal/repository"
	"github.com/wenwu/saas-platform/esim-storefront/internal/store"
)

var fixedNow = time.Date(2026, 10, 19, 9, 45, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			SecretKey: "test-secret-key-that-is-long-enough-0123",
			TokenTTL:  time.Hour,
		},
		Purchase: config.PurchaseConfig{InstallURLBase: "https://esim.example.com/install/"},
	}
}

func newTestStore(t *testing.T, kv repository.KVStore) *store.Store {
	t.Helper()
	st := store.New(kv, store.WithQueueSize(8))
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	st.Load(context.Background())
	return st
}

func newTestOrderService(t *testing.T, kv repository.KVStore) (*OrderService, *store.Store) {
	t.Helper()
	st := newTestStore(t, kv)
	svc := NewOrderService(testConfig(), st, catalog.Default(), metrics.New(), zerolog.Nop())
	svc.now = func() time.Time { return fixedNow }

	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("order_%d", seq)
	}
	svc.newICCID = func() (string, error) { return "89011111222233334444", nil }
	return svc, st
}

func awaitPending(t *testing.T, p *store.Pending) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.Wait(ctx)
}

func purchase(t *testing.T, svc *OrderService, planID string) models.Order {
	t.Helper()
	order, pending, err := svc.Purchase(context.Background(), &models.PurchaseRequest{
		CountryID:     "1",
		PlanID:        planID,
		PaymentMethod: models.PaymentMethodCard,
	})
	require.NoError(t, err)
	require.NoError(t, awaitPending(t, pending))
	return order
}

func TestPurchaseStandardPlan(t *testing.T) {
	kv := repository.NewMemoryKV()
	svc, st := newTestOrderService(t, kv)

	order := purchase(t, svc, "2")

	assert.Equal(t, "order_1", order.ID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "2", order.PlanID)
	assert.Equal(t, "Стандартный", order.Plan.Name)
	assert.Equal(t, "US", order.Country.Code)
	assert.True(t, order.PurchaseDate.Equal(fixedNow))
	assert.True(t, order.ExpiryDate.Equal(fixedNow.AddDate(0, 0, 14)))
	assert.Equal(t, "https://esim.example.com/install/order_1", order.QRCode)
	assert.Equal(t, "89011111222233334444", order.ICCID)

	stored, ok := st.Order("order_1")
	require.True(t, ok)
	assert.Equal(t, order.ID, stored.ID)

	raw, err := kv.Get(context.Background(), store.KeyOrders)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"id":"order_1"`)
}

func TestPurchaseValidation(t *testing.T) {
	svc, st := newTestOrderService(t, repository.NewMemoryKV())

	tests := []struct {
		name string
		req  models.PurchaseRequest
		want error
	}{
		{"missing payment", models.PurchaseRequest{CountryID: "1", PlanID: "2"}, ErrPaymentMethodRequired},
		{"unknown payment", models.PurchaseRequest{CountryID: "1", PlanID: "2", PaymentMethod: "cash"}, ErrUnsupportedPaymentMethod},
		{"unknown country", models.PurchaseRequest{CountryID: "99", PlanID: "2", PaymentMethod: models.PaymentMethodApple}, ErrCountryNotFound},
		{"unknown plan", models.PurchaseRequest{CountryID: "1", PlanID: "99", PaymentMethod: models.PaymentMethodApple}, ErrPlanNotFound},
		{"plan of other country", models.PurchaseRequest{CountryID: "1", PlanID: "4", PaymentMethod: models.PaymentMethodGoogle}, ErrPlanCountryMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, pending, err := svc.Purchase(context.Background(), &req)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Nil(t, pending)
		})
	}

	assert.Empty(t, st.Orders())
}

func TestPurchaseHonoursContextDuringDelay(t *testing.T) {
	svc, st := newTestOrderService(t, repository.NewMemoryKV())
	svc.cfg.Purchase.SimulatedDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := svc.Purchase(ctx, &models.PurchaseRequest{CountryID: "1", PlanID: "1", PaymentMethod: models.PaymentMethodCard})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, st.Orders())
}

func TestPurchaseReportsPersistFailure(t *testing.T) {
	kv := repository.NewMemoryKV()
	svc, st := newTestOrderService(t, kv)
	kv.FailWrites(errors.New("disk full"))

	order, pending, err := svc.Purchase(context.Background(), &models.PurchaseRequest{
		CountryID: "1", PlanID: "3", PaymentMethod: models.PaymentMethodPayPal,
	})
	require.NoError(t, err)
	assert.Error(t, awaitPending(t, pending))

	_, ok := st.Order(order.ID)
	assert.True(t, ok, "order stays in memory when the write fails")
	assert.Equal(t, models.PersistenceFailed, PersistenceState(pending))
}

func TestCompleteInstall(t *testing.T) {
	svc, st := newTestOrderService(t, repository.NewMemoryKV())
	order := purchase(t, svc, "2")

	installedAt := fixedNow.Add(2 * time.Hour)
	svc.now = func() time.Time { return installedAt }

	updated, pending, err := svc.CompleteInstall(context.Background(), order.ID)
	require.NoError(t, err)
	require.NoError(t, awaitPending(t, pending))

	assert.Equal(t, models.OrderStatusActive, updated.Status)
	require.NotNil(t, updated.ActivationDate)
	assert.True(t, updated.ActivationDate.Equal(installedAt))
	assert.True(t, updated.ExpiryDate.Equal(order.ExpiryDate), "activation never moves expiry")

	stored, _ := st.Order(order.ID)
	assert.Equal(t, models.OrderStatusActive, stored.Status)

	again, pending, err := svc.CompleteInstall(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)
	assert.Equal(t, models.OrderStatusActive, again.Status)
}

func TestCompleteInstallRejectsCancelled(t *testing.T) {
	svc, _ := newTestOrderService(t, repository.NewMemoryKV())
	order := purchase(t, svc, "1")

	_, pending, err := svc.Cancel(context.Background(), order.ID)
	require.NoError(t, err)
	require.NoError(t, awaitPending(t, pending))

	_, _, err = svc.CompleteInstall(context.Background(), order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, _, err = svc.CompleteInstall(context.Background(), "order_missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancel(t *testing.T) {
	svc, st := newTestOrderService(t, repository.NewMemoryKV())
	order := purchase(t, svc, "2")

	cancelled, pending, err := svc.Cancel(context.Background(), order.ID)
	require.NoError(t, err)
	require.NoError(t, awaitPending(t, pending))
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)

	_, pending, err = svc.Cancel(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)

	stored, _ := st.Order(order.ID)
	assert.Equal(t, models.OrderStatusCancelled, stored.Status)
}

func TestCancelRejectsExpired(t *testing.T) {
	svc, st := newTestOrderService(t, repository.NewMemoryKV())
	order := purchase(t, svc, "2")

	expired := models.OrderStatusExpired
	require.NoError(t, awaitPending(t, st.UpdateOrder(order.ID, models.OrderUpdate{Status: &expired})))

	_, _, err := svc.Cancel(context.Background(), order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelAndInstallRace(t *testing.T) {
	svc, st := newTestOrderService(t, repository.NewMemoryKV())
	// a slow clock widens the window between reading and writing the status
	svc.now = func() time.Time {
		time.Sleep(time.Millisecond)
		return fixedNow
	}

	for i := 0; i < 20; i++ {
		order := purchase(t, svc, "2")

		var (
			wg         sync.WaitGroup
			start      = make(chan struct{})
			installed  models.Order
			installErr error
			cancelErr  error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			installed, _, installErr = svc.CompleteInstall(context.Background(), order.ID)
		}()
		go func() {
			defer wg.Done()
			<-start
			_, _, cancelErr = svc.Cancel(context.Background(), order.ID)
		}()
		close(start)
		wg.Wait()

		require.NoError(t, cancelErr)
		if installErr != nil {
			assert.ErrorIs(t, installErr, ErrInvalidTransition)
		} else {
			assert.Equal(t, models.OrderStatusActive, installed.Status)
		}

		stored, ok := st.Order(order.ID)
		require.True(t, ok)
		assert.Equal(t, models.OrderStatusCancelled, stored.Status, "cancel acknowledged, order must stay cancelled")
	}
}

func TestOverviewAndArchive(t *testing.T) {
	svc, st := newTestOrderService(t, repository.NewMemoryKV())

	pendingOrder := purchase(t, svc, "1")
	activeOrder := purchase(t, svc, "2")
	expiredOrder := purchase(t, svc, "3")
	cancelledOrder := purchase(t, svc, "1")

	_, p, err := svc.CompleteInstall(context.Background(), activeOrder.ID)
	require.NoError(t, err)
	require.NoError(t, awaitPending(t, p))

	expired := models.OrderStatusExpired
	require.NoError(t, awaitPending(t, st.UpdateOrder(expiredOrder.ID, models.OrderUpdate{Status: &expired})))

	_, p, err = svc.Cancel(context.Background(), cancelledOrder.ID)
	require.NoError(t, err)
	require.NoError(t, awaitPending(t, p))

	overview := svc.Overview()
	require.Len(t, overview.Active, 1)
	assert.Equal(t, activeOrder.ID, overview.Active[0].ID)
	require.Len(t, overview.Other, 3)
	assert.Equal(t, pendingOrder.ID, overview.Other[0].ID)

	ids := func(orders []models.Order) []string {
		out := make([]string, 0, len(orders))
		for _, o := range orders {
			out = append(out, o.ID)
		}
		return out
	}

	all, err := svc.Archive("")
	require.NoError(t, err)
	assert.Equal(t, []string{expiredOrder.ID, cancelledOrder.ID}, ids(all))

	onlyExpired, err := svc.Archive(ArchiveExpired)
	require.NoError(t, err)
	assert.Equal(t, []string{expiredOrder.ID}, ids(onlyExpired))

	onlyCancelled, err := svc.Archive(ArchiveCancelled)
	require.NoError(t, err)
	assert.Equal(t, []string{cancelledOrder.ID}, ids(onlyCancelled))

	_, err = svc.Archive("active")
	assert.ErrorIs(t, err, ErrInvalidArchiveFilter)
}

func TestOverviewEmpty(t *testing.T) {
	svc, _ := newTestOrderService(t, repository.NewMemoryKV())

	overview := svc.Overview()
	assert.NotNil(t, overview.Active)
	assert.NotNil(t, overview.Other)
	assert.Empty(t, overview.Active)
}

func TestShareMessage(t *testing.T) {
	svc, _ := newTestOrderService(t, repository.NewMemoryKV())
	order := purchase(t, svc, "2")

	msg, err := svc.ShareMessage(order.ID)
	require.NoError(t, err)
	assert.Equal(t, "eSIM США", msg.Title)
	assert.Contains(t, msg.Message, "План: Стандартный")
	assert.Contains(t, msg.Message, "Данные: 10GB")
	assert.Contains(t, msg.Message, "QR-код: https://esim.example.com/install/order_1")
	assert.Contains(t, msg.Message, "ICCID: 89011111222233334444")

	_, err = svc.ShareMessage("order_missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGenerateICCID(t *testing.T) {
	iccid, err := generateICCID()
	require.NoError(t, err)
	assert.Len(t, iccid, 20)
	assert.Regexp(t, `^8901[0-9]{16}$`, iccid)
}

func TestDeviceCheck(t *testing.T) {
	svc := NewDeviceService()

	tests := []struct {
		os        string
		apiLevel  int
		supported bool
		err       error
	}{
		{os: "ios", supported: true},
		{os: " iOS ", supported: true},
		{os: "android", apiLevel: 28, supported: true},
		{os: "android", apiLevel: 27, supported: false},
		{os: "windows", err: ErrUnsupportedOS},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.os, tt.apiLevel), func(t *testing.T) {
			info, err := svc.Check(tt.os, tt.apiLevel)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.supported, info.ESIMSupported)
		})
	}
}
