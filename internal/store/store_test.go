package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wenwu/saas-platform/esim-storefront/internal/metrics"
	"github.com/wenwu/saas-platform/esim-storefront/internal/models"
	"github.com/wenwu/saas-platform/esim-storefront/internal/repository"
)

var purchasedAt = time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC)

func testPlan() models.Plan {
	return models.Plan{
		ID:          "2",
		CountryID:   "1",
		Name:        "Стандартный",
		Data:        "10GB",
		Validity:    14,
		Price:       decimal.RequireFromString("17.99"),
		Currency:    "USD",
		Description: "Популярный выбор",
		Features:    []string{"10GB данных", "14 дней действия"},
		Popular:     true,
	}
}

func testCountry() models.Country {
	return models.Country{ID: "1", Name: "США", Code: "US", Flag: "🇺🇸", Region: "Северная Америка"}
}

func testOrder(id string) models.Order {
	o := models.NewOrder(id, testPlan(), testCountry(), purchasedAt)
	o.QRCode = "https://esim.example.com/install/" + id
	o.ICCID = "89011234567890123456"
	return o
}

func newTestStore(t *testing.T, kv repository.KVStore) *Store {
	t.Helper()
	s := New(kv, WithMetrics(metrics.New()), WithQueueSize(8))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	s.Load(context.Background())
	return s
}

func wait(t *testing.T, p *Pending) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.Wait(ctx)
}

func TestAddOrderPreservesInsertionOrder(t *testing.T) {
	s := newTestStore(t, repository.NewMemoryKV())

	ids := []string{"order_a", "order_b", "order_c", "order_b"}
	var last *Pending
	for _, id := range ids {
		last = s.AddOrder(testOrder(id))
	}
	require.NoError(t, wait(t, last))

	orders := s.Orders()
	require.Len(t, orders, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, orders[i].ID)
	}
}

func TestUpdateOrderTouchesOnlyTarget(t *testing.T) {
	s := newTestStore(t, repository.NewMemoryKV())
	s.AddOrder(testOrder("order_1"))
	s.AddOrder(testOrder("order_2"))
	s.AddOrder(testOrder("order_3"))

	before := s.Orders()
	active := models.OrderStatusActive
	activatedAt := purchasedAt.Add(time.Hour)
	require.NoError(t, wait(t, s.UpdateOrder("order_2", models.OrderUpdate{
		Status:         &active,
		ActivationDate: &activatedAt,
	})))

	after := s.Orders()
	require.Len(t, after, 3)

	assert.Equal(t, models.OrderStatusActive, after[1].Status)
	require.NotNil(t, after[1].ActivationDate)
	assert.True(t, activatedAt.Equal(*after[1].ActivationDate))
	assert.True(t, before[1].ExpiryDate.Equal(after[1].ExpiryDate))

	for _, i := range []int{0, 2} {
		want, err := json.Marshal(before[i])
		require.NoError(t, err)
		got, err := json.Marshal(after[i])
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got))
	}
}

func TestUpdateOrderMissingIDIsNoop(t *testing.T) {
	kv := repository.NewMemoryKV()
	s := newTestStore(t, kv)
	require.NoError(t, wait(t, s.AddOrder(testOrder("order_1"))))

	before, err := json.Marshal(s.Orders())
	require.NoError(t, err)

	cancelled := models.OrderStatusCancelled
	require.NoError(t, wait(t, s.UpdateOrder("order_missing", models.OrderUpdate{Status: &cancelled})))

	after, err := json.Marshal(s.Orders())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	stored, err := kv.Get(context.Background(), KeyOrders)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(stored))
}

func TestUserRoundTrip(t *testing.T) {
	kv := repository.NewMemoryKV()
	s := newTestStore(t, kv)

	user := &models.User{
		ID:     "1",
		Name:   "Пользователь",
		Email:  "user@example.com",
		Phone:  "+7 900 000-00-00",
		Avatar: "avatars/1.png",
	}
	require.NoError(t, wait(t, s.SetUser(user)))

	reloaded := newTestStore(t, kv)
	assert.Equal(t, user, reloaded.User())
}

func TestSetUserNilRemovesRecord(t *testing.T) {
	kv := repository.NewMemoryKV()
	s := newTestStore(t, kv)

	s.SetUser(&models.User{ID: "1", Name: "Пользователь", Email: "user@example.com"})
	require.NoError(t, wait(t, s.SetUser(nil)))
	assert.Nil(t, s.User())

	_, err := kv.Get(context.Background(), KeyUser)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	reloaded := newTestStore(t, kv)
	assert.Nil(t, reloaded.User())
}

func TestOrdersRoundTrip(t *testing.T) {
	kv := repository.NewMemoryKV()
	s := newTestStore(t, kv)

	order := testOrder("order_1")
	activatedAt := purchasedAt.Add(90 * time.Minute)
	order.ActivationDate = &activatedAt
	order.Status = models.OrderStatusActive
	require.NoError(t, wait(t, s.AddOrder(order)))

	raw, err := kv.Get(context.Background(), KeyOrders)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"purchaseDate":"2026-10-19T12:30:00Z"`)
	assert.Contains(t, string(raw), `"expiryDate":"2026-11-02T12:30:00Z"`)
	assert.Contains(t, string(raw), `"price":17.99`)

	reloaded := newTestStore(t, kv)
	orders := reloaded.Orders()
	require.Len(t, orders, 1)

	got := orders[0]
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, order.Plan.Features, got.Plan.Features)
	assert.True(t, order.Plan.Price.Equal(got.Plan.Price))
	assert.Equal(t, order.Country, got.Country)
	assert.True(t, order.PurchaseDate.Equal(got.PurchaseDate))
	assert.True(t, order.ExpiryDate.Equal(got.ExpiryDate))
	require.NotNil(t, got.ActivationDate)
	assert.True(t, activatedAt.Equal(*got.ActivationDate))
	assert.Equal(t, order.Status, got.Status)
	assert.Equal(t, order.QRCode, got.QRCode)
	assert.Equal(t, order.ICCID, got.ICCID)
}

func TestLoadMalformedFallsBackToEmpty(t *testing.T) {
	kv := repository.NewMemoryKV()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, KeyUser, []byte("not json")))
	require.NoError(t, kv.Set(ctx, KeyOrders, []byte(`[{"id":`)))

	s := newTestStore(t, kv)
	assert.True(t, s.Loaded())
	assert.Nil(t, s.User())
	assert.NotNil(t, s.Orders())
	assert.Empty(t, s.Orders())
}

func TestLoadReadErrorFallsBackToEmpty(t *testing.T) {
	kv := repository.NewMemoryKV()
	kv.FailReads(errors.New("storage unavailable"))

	s := newTestStore(t, kv)
	assert.True(t, s.Loaded())
	assert.Nil(t, s.User())
	assert.Empty(t, s.Orders())
}

func TestLoadRunsOnce(t *testing.T) {
	kv := repository.NewMemoryKV()
	s := newTestStore(t, kv)
	require.NoError(t, wait(t, s.AddOrder(testOrder("order_1"))))

	require.NoError(t, kv.Set(context.Background(), KeyOrders, []byte(`[]`)))
	s.Load(context.Background())

	assert.Len(t, s.Orders(), 1)
}

func TestPersistFailureKeepsMemory(t *testing.T) {
	kv := repository.NewMemoryKV()
	s := newTestStore(t, kv)

	events, cancel := s.Subscribe(8)
	defer cancel()

	boom := errors.New("storage unavailable")
	kv.FailWrites(boom)

	err := wait(t, s.AddOrder(testOrder("order_1")))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, s.Orders(), 1)

	assert.Equal(t, EventOrderAdded, (<-events).Type)
	failed := <-events
	assert.Equal(t, EventPersistFailed, failed.Type)
	assert.Equal(t, []string{KeyOrders}, failed.Keys)

	kv.FailWrites(nil)
	require.NoError(t, wait(t, s.Resync()))

	raw, err := kv.Get(context.Background(), KeyOrders)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "order_1")
}

func TestWritesApplyInProgramOrder(t *testing.T) {
	kv := repository.NewMemoryKV()
	s := newTestStore(t, kv)

	const n = 50
	var last *Pending
	for i := 0; i < n; i++ {
		last = s.AddOrder(testOrder(fmt.Sprintf("order_%d", i)))
	}
	require.NoError(t, wait(t, last))

	raw, err := kv.Get(context.Background(), KeyOrders)
	require.NoError(t, err)

	var stored []models.Order
	require.NoError(t, json.Unmarshal(raw, &stored))
	require.Len(t, stored, n)
	assert.Equal(t, "order_49", stored[n-1].ID)
}

func TestReadersReturnCopies(t *testing.T) {
	s := newTestStore(t, repository.NewMemoryKV())
	s.AddOrder(testOrder("order_1"))
	s.SetUser(&models.User{ID: "1", Name: "Пользователь"})

	orders := s.Orders()
	orders[0].Status = models.OrderStatusCancelled
	orders[0].Plan.Features[0] = "changed"

	user := s.User()
	user.Name = "changed"

	again, ok := s.Order("order_1")
	require.True(t, ok)
	assert.Equal(t, models.OrderStatusPending, again.Status)
	assert.Equal(t, "10GB данных", again.Plan.Features[0])
	assert.Equal(t, "Пользователь", s.User().Name)
}

func TestCloseDrainsQueue(t *testing.T) {
	kv := repository.NewMemoryKV()
	s := New(kv)
	s.Load(context.Background())

	events, _ := s.Subscribe(4)

	p := s.AddOrder(testOrder("order_1"))
	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, p.Err())

	select {
	case <-p.Done():
	default:
		t.Fatal("pending write not resolved after close")
	}

	after := s.AddOrder(testOrder("order_2"))
	assert.ErrorIs(t, after.Err(), ErrClosed)
	assert.Len(t, s.Orders(), 2)

	for range events {
	}
	require.NoError(t, s.Close(context.Background()))
}

func TestModifyOrder(t *testing.T) {
	kv := repository.NewMemoryKV()
	s := newTestStore(t, kv)
	require.NoError(t, wait(t, s.AddOrder(testOrder("order_1"))))

	_, p, err := s.ModifyOrder("order_missing", func(models.Order) (*models.OrderUpdate, error) {
		t.Fatal("fn called for a missing order")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Nil(t, p)

	writes := kv.Writes()
	refused := errors.New("not allowed")
	got, p, err := s.ModifyOrder("order_1", func(o models.Order) (*models.OrderUpdate, error) {
		assert.Equal(t, models.OrderStatusPending, o.Status)
		return nil, refused
	})
	assert.ErrorIs(t, err, refused)
	assert.Nil(t, p)
	assert.Equal(t, models.OrderStatusPending, got.Status)

	got, p, err = s.ModifyOrder("order_1", func(models.Order) (*models.OrderUpdate, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, "order_1", got.ID)
	assert.Equal(t, writes, kv.Writes())

	active := models.OrderStatusActive
	got, p, err = s.ModifyOrder("order_1", func(models.Order) (*models.OrderUpdate, error) {
		return &models.OrderUpdate{Status: &active}, nil
	})
	require.NoError(t, err)
	require.NoError(t, wait(t, p))
	assert.Equal(t, models.OrderStatusActive, got.Status)

	raw, err := kv.Get(context.Background(), KeyOrders)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"status":"active"`)
}

// stallingKV never completes a write before its context ends
type stallingKV struct {
	*repository.MemoryKV
}

func (k stallingKV) Set(ctx context.Context, key string, value []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestWriteTimeoutBoundsBackendCalls(t *testing.T) {
	s := New(stallingKV{repository.NewMemoryKV()}, WithWriteTimeout(20*time.Millisecond))
	s.Load(context.Background())
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	err := wait(t, s.AddOrder(testOrder("order_1")))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, s.Orders(), 1)
}

func TestSubscribeAfterClose(t *testing.T) {
	s := New(repository.NewMemoryKV())
	s.Load(context.Background())
	require.NoError(t, s.Close(context.Background()))

	events, cancel := s.Subscribe(4)
	defer cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription after close was left open")
	}
}
