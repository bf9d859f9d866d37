package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/wenwu/saas-platform/esim-storefront/internal/catalog"
	"github.com/wenwu/saas-platform/esim-storefront/internal/models"
	"github.com/wenwu/saas-platform/esim-storefront/internal/service"
	"github.com/wenwu/saas-platform/esim-storefront/internal/store"
)

// persistWait bounds how long ?wait=true holds a request open
const persistWait = 5 * time.Second

type Handler struct {
	catalog        *catalog.Catalog
	store          *store.Store
	orderService   *service.OrderService
	profileService *service.ProfileService
	deviceService  *service.DeviceService
	log            zerolog.Logger
}

func NewHandler(
	cat *catalog.Catalog,
	st *store.Store,
	orderService *service.OrderService,
	profileService *service.ProfileService,
	deviceService *service.DeviceService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		catalog:        cat,
		store:          st,
		orderService:   orderService,
		profileService: profileService,
		deviceService:  deviceService,
		log:            log,
	}
}

// errorStatus maps service errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrPaymentMethodRequired),
		errors.Is(err, service.ErrUnsupportedPaymentMethod),
		errors.Is(err, service.ErrPlanCountryMismatch),
		errors.Is(err, service.ErrInvalidArchiveFilter),
		errors.Is(err, service.ErrUnsupportedOS):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrCountryNotFound),
		errors.Is(err, service.ErrPlanNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrNotSignedIn):
		return http.StatusConflict
	case errors.Is(err, service.ErrSessionMismatch):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("[Handler] request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// persistence reports the write state, waiting for it when ?wait=true
func (h *Handler) persistence(c *gin.Context, p *store.Pending) (string, string) {
	if c.Query("wait") != "true" {
		return service.PersistenceState(p), ""
	}
	state, err := service.AwaitPersistence(c.Request.Context(), p, persistWait)
	if err != nil {
		return state, err.Error()
	}
	return state, ""
}

func (h *Handler) statusBody(c *gin.Context, status string, p *store.Pending) gin.H {
	state, errMsg := h.persistence(c, p)
	body := gin.H{"status": status, "persistence": state}
	if errMsg != "" {
		body["error"] = errMsg
	}
	return body
}

func (h *Handler) orderResponse(c *gin.Context, status int, order models.Order, p *store.Pending) {
	state, errMsg := h.persistence(c, p)
	c.JSON(status, models.OrderResponse{Order: order, Persistence: state, Error: errMsg})
}

// ==================== Public API Handlers ====================

func (h *Handler) countryView(country models.Country) models.CountryView {
	view := models.CountryView{Country: country}
	if r, ok := h.catalog.PriceRange(country.ID); ok {
		view.PriceRange = &r
	}
	return view
}

func (h *Handler) planView(plan models.Plan) models.PlanView {
	view := models.PlanView{Plan: plan}
	if formatted, err := h.catalog.FormatPrice(plan.Price, plan.Currency); err == nil {
		view.PriceFormatted = formatted
	}
	return view
}

// ListCountries searches the catalog
// GET /countries?q=&region=
func (h *Handler) ListCountries(c *gin.Context) {
	countries := h.catalog.SearchCountries(c.Query("q"), c.Query("region"))

	views := make([]models.CountryView, 0, len(countries))
	for _, country := range countries {
		views = append(views, h.countryView(country))
	}
	c.JSON(http.StatusOK, gin.H{"countries": views})
}

// GetCountry returns one country with its price range
func (h *Handler) GetCountry(c *gin.Context) {
	country, ok := h.catalog.Country(c.Param("id"))
	if !ok {
		h.respondError(c, service.ErrCountryNotFound)
		return
	}
	c.JSON(http.StatusOK, h.countryView(country))
}

// GetCountryPlans lists the plans sold for a country
func (h *Handler) GetCountryPlans(c *gin.Context) {
	country, ok := h.catalog.Country(c.Param("id"))
	if !ok {
		h.respondError(c, service.ErrCountryNotFound)
		return
	}

	plans := h.catalog.PlansForCountry(country.ID)
	views := make([]models.PlanView, 0, len(plans))
	for _, p := range plans {
		views = append(views, h.planView(p))
	}
	c.JSON(http.StatusOK, gin.H{"country": country, "plans": views})
}

// GetRegions lists catalog regions
func (h *Handler) GetRegions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"regions": h.catalog.Regions()})
}

// GetPlan returns one plan
func (h *Handler) GetPlan(c *gin.Context) {
	plan, ok := h.catalog.Plan(c.Param("id"))
	if !ok {
		h.respondError(c, service.ErrPlanNotFound)
		return
	}
	c.JSON(http.StatusOK, h.planView(plan))
}

// CheckDevice reports eSIM support
// GET /device/compatibility?os=android&api_level=33
func (h *Handler) CheckDevice(c *gin.Context) {
	apiLevel := 0
	if raw := c.Query("api_level"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "api_level must be an integer"})
			return
		}
		apiLevel = n
	}

	info, err := h.deviceService.Check(c.Query("os"), apiLevel)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// ==================== Profile Handlers ====================

// GetProfile returns the signed-in user or a guest
func (h *Handler) GetProfile(c *gin.Context) {
	c.JSON(http.StatusOK, h.profileService.Profile())
}

// Login signs a user in
func (h *Handler) Login(c *gin.Context) {
	h.signIn(c, h.profileService.Login, http.StatusOK)
}

// Register creates a profile
func (h *Handler) Register(c *gin.Context) {
	h.signIn(c, h.profileService.Register, http.StatusCreated)
}

func (h *Handler) signIn(c *gin.Context, fn func(*models.LoginRequest) (*models.AuthResponse, error), status int) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := fn(&req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(status, resp)
}

// Logout signs out the session's user
func (h *Handler) Logout(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	pending, err := h.profileService.Logout(userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.statusBody(c, "signed_out", pending))
}

// ==================== Order Handlers ====================

// ListOrders returns active orders and the rest
func (h *Handler) ListOrders(c *gin.Context) {
	c.JSON(http.StatusOK, h.orderService.Overview())
}

// ListArchive returns expired and cancelled orders
// GET /orders/archive?filter=all|expired|cancelled
func (h *Handler) ListArchive(c *gin.Context) {
	orders, err := h.orderService.Archive(c.Query("filter"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// GetOrder returns one order
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CreateOrder runs checkout
// POST /orders?wait=true
func (h *Handler) CreateOrder(c *gin.Context) {
	var req models.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, pending, err := h.orderService.Purchase(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.orderResponse(c, http.StatusCreated, order, pending)
}

// CompleteInstall marks the eSIM profile as installed
func (h *Handler) CompleteInstall(c *gin.Context) {
	order, pending, err := h.orderService.CompleteInstall(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.orderResponse(c, http.StatusOK, order, pending)
}

// CancelOrder cancels a pending or active order
func (h *Handler) CancelOrder(c *gin.Context) {
	order, pending, err := h.orderService.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.orderResponse(c, http.StatusOK, order, pending)
}

// ShareOrder returns the share sheet text
func (h *Handler) ShareOrder(c *gin.Context) {
	msg, err := h.orderService.ShareMessage(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// ==================== Internal API Handlers ====================

// Resync rewrites both persisted records from memory
func (h *Handler) Resync(c *gin.Context) {
	body := h.statusBody(c, "resync", h.store.Resync())

	h.log.Info().Interface("persistence", body["persistence"]).Msg("[Handler] resync requested")
	c.JSON(http.StatusAccepted, body)
}
