package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/wenwu/saas-platform/esim-storefront/internal/catalog"
	"github.com/wenwu/saas-platform/esim-storefront/internal/config"
	"github.com/wenwu/saas-platform/esim-storefront/internal/models"
	"github.com/wenwu/saas-platform/esim-storefront/internal/store"
)

const (
	defaultLoginName    = "Пользователь"
	defaultRegisterName = "Новый пользователь"
)

// ProfileService manages the signed-in user and session tokens
type ProfileService struct {
	cfg     *config.Config
	store   *store.Store
	catalog *catalog.Catalog
	log     zerolog.Logger

	now   func() time.Time
	newID func() string
}

// NewProfileService creates a new profile service
func NewProfileService(cfg *config.Config, st *store.Store, cat *catalog.Catalog, log zerolog.Logger) *ProfileService {
	return &ProfileService{
		cfg:     cfg,
		store:   st,
		catalog: cat,
		log:     log,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Profile returns the current user, or a guest, with order statistics
func (s *ProfileService) Profile() *models.ProfileResponse {
	user := s.store.User()
	orders := s.store.Orders()

	stats := models.ProfileStats{TotalOrders: len(orders), TotalSpent: []models.MoneyAmount{}}
	spent := make(map[string]decimal.Decimal)
	for _, o := range orders {
		if o.Status == models.OrderStatusActive {
			stats.ActiveOrders++
		}
		spent[o.Plan.Currency] = spent[o.Plan.Currency].Add(o.Plan.Price)
	}

	currencies := make([]string, 0, len(spent))
	for c := range spent {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	for _, c := range currencies {
		total := models.MoneyAmount{Amount: spent[c], Currency: c}
		if formatted, err := s.catalog.FormatPrice(spent[c], c); err == nil {
			total.Formatted = formatted
		}
		stats.TotalSpent = append(stats.TotalSpent, total)
	}

	return &models.ProfileResponse{
		User:  user,
		Guest: user == nil,
		Stats: stats,
	}
}

// Login signs a user in and issues a session token
func (s *ProfileService) Login(req *models.LoginRequest) (*models.AuthResponse, error) {
	return s.signIn(req, defaultLoginName)
}

// Register creates a new profile and signs it in
func (s *ProfileService) Register(req *models.LoginRequest) (*models.AuthResponse, error) {
	return s.signIn(req, defaultRegisterName)
}

func (s *ProfileService) signIn(req *models.LoginRequest, defaultName string) (*models.AuthResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultName
	}

	user := &models.User{
		ID:     s.newID(),
		Name:   name,
		Email:  strings.TrimSpace(req.Email),
		Phone:  strings.TrimSpace(req.Phone),
		Avatar: strings.TrimSpace(req.Avatar),
	}

	token, expiresAt, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	pending := s.store.SetUser(user)

	s.log.Info().Str("user_id", user.ID).Msg("[ProfileService] user signed in")

	return &models.AuthResponse{
		User:        user,
		Token:       token,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		Persistence: PersistenceState(pending),
	}, nil
}

// Logout signs out the user the session belongs to
func (s *ProfileService) Logout(sessionUserID string) (*store.Pending, error) {
	current := s.store.User()
	if current == nil {
		return nil, ErrNotSignedIn
	}
	if current.ID != sessionUserID {
		return nil, ErrSessionMismatch
	}

	pending := s.store.SetUser(nil)
	s.log.Info().Str("user_id", sessionUserID).Msg("[ProfileService] user signed out")
	return pending, nil
}

func (s *ProfileService) issueToken(user *models.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.JWT.TokenTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid":   user.ID,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
	})
	signed, err := token.SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}
