// Package store holds the signed-in user and the order list. Memory is the
// source of truth; every mutation is mirrored to a KVStore by a background
// writer, and failures there never roll back or block the in-memory state.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wenwu/saas-platform/esim-storefront/internal/metrics"
	"github.com/wenwu/saas-platform/esim-storefront/internal/models"
	"github.com/wenwu/saas-platform/esim-storefront/internal/repository"
)

// Persisted record keys
const (
	KeyUser   = "user"
	KeyOrders = "orders"
)

var (
	ErrClosed        = errors.New("store closed")
	ErrOrderNotFound = errors.New("order not found")
)

type Store struct {
	mu     sync.RWMutex
	user   *models.User
	orders []models.Order
	loaded bool
	closed bool

	loadOnce sync.Once

	kv      repository.KVStore
	writer  *writer
	events  *broadcaster
	log     zerolog.Logger
	metrics *metrics.Metrics

	queueSize    int
	writeTimeout time.Duration
}

type Option func(*Store)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithQueueSize bounds the number of writes waiting for the backend
func WithQueueSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// New creates an empty store mirrored to kv and starts its writer. Call Load
// before serving to pick up the persisted state.
func New(kv repository.KVStore, opts ...Option) *Store {
	s := &Store{
		orders:       []models.Order{},
		kv:           kv,
		events:       newBroadcaster(),
		log:          zerolog.Nop(),
		queueSize:    64,
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.writer = newWriter(kv, s.queueSize, s.writeTimeout, s.log, s.metrics, s.events)
	return s
}

// Load reads the persisted user and orders. A missing or malformed record
// leaves that part empty. Only the first call has any effect.
func (s *Store) Load(ctx context.Context) {
	s.loadOnce.Do(func() {
		user := s.readUser(ctx)
		orders := s.readOrders(ctx)

		s.mu.Lock()
		s.user = user
		s.orders = orders
		s.loaded = true
		s.mu.Unlock()

		s.log.Info().
			Bool("user", user != nil).
			Int("orders", len(orders)).
			Msg("[Store] state loaded")
	})
}

func (s *Store) readUser(ctx context.Context) *models.User {
	data, err := s.kv.Get(ctx, KeyUser)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error().Err(err).Msg("[Store] read user failed, starting as guest")
		}
		return nil
	}

	var user *models.User
	if err := json.Unmarshal(data, &user); err != nil {
		s.log.Error().Err(err).Msg("[Store] malformed user record, starting as guest")
		return nil
	}
	return user
}

func (s *Store) readOrders(ctx context.Context) []models.Order {
	data, err := s.kv.Get(ctx, KeyOrders)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error().Err(err).Msg("[Store] read orders failed, starting empty")
		}
		return []models.Order{}
	}

	var orders []models.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		s.log.Error().Err(err).Msg("[Store] malformed orders record, starting empty")
		return []models.Order{}
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders
}

// Loaded reports whether Load has completed
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// User returns a copy of the current user, nil for a guest
func (s *Store) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// Orders returns a copy of all orders in insertion order
func (s *Store) Orders() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Order, len(s.orders))
	for i, o := range s.orders {
		out[i] = o.Clone()
	}
	return out
}

// Order returns a copy of the order with the given id
func (s *Store) Order(id string) (models.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.ID == id {
			return o.Clone(), true
		}
	}
	return models.Order{}, false
}

// SetUser replaces the current user. nil signs the user out and removes the
// persisted record.
func (s *Store) SetUser(user *models.User) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = user.Clone()
	s.events.publish(Event{Type: EventUserChanged})

	entry, err := s.userEntryLocked()
	if err != nil {
		return resolvedPending(err)
	}
	return s.enqueueLocked(entry)
}

// AddOrder appends order. Identifiers are not checked for duplicates.
func (s *Store) AddOrder(order models.Order) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = append(s.orders, order.Clone())
	s.events.publish(Event{Type: EventOrderAdded, OrderID: order.ID})

	entry, err := s.ordersEntryLocked()
	if err != nil {
		return resolvedPending(err)
	}
	return s.enqueueLocked(entry)
}

// UpdateOrder merges upd into the order with the given id. Nothing changes
// when no order matches, but the list is still persisted.
func (s *Store) UpdateOrder(id string, upd models.OrderUpdate) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.orders {
		if s.orders[i].ID == id {
			upd.Apply(&s.orders[i])
			s.events.publish(Event{Type: EventOrderUpdated, OrderID: id})
			break
		}
	}

	entry, err := s.ordersEntryLocked()
	if err != nil {
		return resolvedPending(err)
	}
	return s.enqueueLocked(entry)
}

// ModifyOrder lets fn inspect the current order and decide on an update while
// the store is locked, so the check and the write cannot interleave with
// another mutation. fn returning a nil update leaves the order untouched and
// yields a nil Pending; an error from fn is returned with the current order.
func (s *Store) ModifyOrder(id string, fn func(models.Order) (*models.OrderUpdate, error)) (models.Order, *Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.orders {
		if s.orders[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.Order{}, nil, ErrOrderNotFound
	}

	upd, err := fn(s.orders[idx].Clone())
	if err != nil || upd == nil {
		return s.orders[idx].Clone(), nil, err
	}

	upd.Apply(&s.orders[idx])
	s.events.publish(Event{Type: EventOrderUpdated, OrderID: id})
	order := s.orders[idx].Clone()

	entry, err := s.ordersEntryLocked()
	if err != nil {
		return order, resolvedPending(err), nil
	}
	return order, s.enqueueLocked(entry), nil
}

// Resync rewrites both records from memory, repairing a mirror that missed
// earlier writes.
func (s *Store) Resync() *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	userEntry, err := s.userEntryLocked()
	if err != nil {
		return resolvedPending(err)
	}
	ordersEntry, err := s.ordersEntryLocked()
	if err != nil {
		return resolvedPending(err)
	}
	return s.enqueueLocked(userEntry, ordersEntry)
}

// Subscribe returns a stream of store events and a function that ends the
// subscription. The channel is closed when the store closes.
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	return s.events.subscribe(buffer)
}

// Close waits for queued writes to drain. Later mutations still change memory
// but their Pending reports ErrClosed.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.writer.stop()
	s.mu.Unlock()

	select {
	case <-s.writer.stopped:
		s.events.closeAll()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) userEntryLocked() (kvEntry, error) {
	if s.user == nil {
		return kvEntry{key: KeyUser}, nil
	}
	data, err := json.Marshal(s.user)
	if err != nil {
		s.log.Error().Err(err).Msg("[Store] encode user failed")
		return kvEntry{}, err
	}
	return kvEntry{key: KeyUser, value: data}, nil
}

func (s *Store) ordersEntryLocked() (kvEntry, error) {
	data, err := json.Marshal(s.orders)
	if err != nil {
		s.log.Error().Err(err).Msg("[Store] encode orders failed")
		return kvEntry{}, err
	}
	return kvEntry{key: KeyOrders, value: data}, nil
}

// enqueueLocked must run under s.mu so queue order matches mutation order
func (s *Store) enqueueLocked(entries ...kvEntry) *Pending {
	if s.closed {
		return resolvedPending(ErrClosed)
	}
	return s.writer.enqueue(entries...)
}
