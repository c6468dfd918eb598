package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/microcosm-cc/bluemonday"
	"github.com/warnain/backend/internal/catalog"
	"github.com/warnain/backend/internal/netif"
	"github.com/warnain/backend/internal/printing"
	"github.com/warnain/backend/internal/serviceerror"
	"github.com/warnain/backend/internal/settings"
	"github.com/warnain/backend/internal/spooler"
	"github.com/warnain/backend/internal/users"
	"go.uber.org/zap"
)

const (
	userIDContextKey        = "warnain_user_id"
	defaultMediaURL         = "/media/"
	defaultUploadMaxBytes   = 10 << 20
	accessTokenQueryParam   = "access_token"
	healthMessage           = "warnain backend is running"
	printTitlePrefix        = "Print job - "
	unknownServerHostHeader = "unknown"
)

var (
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingUserService   = errors.New("user service dependency required")
	errMissingCatalog       = errors.New("catalog service dependency required")
	errMissingSettingsStore = errors.New("settings store dependency required")
	errMissingResolver      = errors.New("interface resolver dependency required")
	errMissingSyncer        = errors.New("settings syncer dependency required")
	errMissingPrinters      = errors.New("printer directory dependency required")
	errMissingNetwork       = errors.New("network source dependency required")
	errMissingTracker       = errors.New("print tracker dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates device tokens.
type TokenManager interface {
	IssueDeviceToken(ctx context.Context, subject string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// PrinterDirectory reads printers straight from the scheduler.
type PrinterDirectory interface {
	ListPrinters(ctx context.Context) ([]spooler.Printer, error)
	PrinterStatus(ctx context.Context, name string) printing.PrinterStatus
}

// SettingsSyncer mirrors live printers and interfaces into the settings tables.
type SettingsSyncer interface {
	SyncPrinters(ctx context.Context) bool
	SyncInterfaces(ctx context.Context) bool
}

// InterfaceResolver picks the interface used by the current-ip endpoint.
type InterfaceResolver interface {
	DefaultInterface(ctx context.Context) (string, bool)
}

type Dependencies struct {
	TokenManager   TokenManager
	Users          *users.Service
	Catalog        *catalog.Service
	Settings       *settings.Store
	Resolver       InterfaceResolver
	Syncer         SettingsSyncer
	Printers       PrinterDirectory
	Network        netif.Source
	Tracker        *printing.Tracker
	Realtime       *RealtimeDispatcher
	Metrics        http.Handler
	MediaRoot      string
	MediaURL       string
	UploadMaxBytes int64
	Clock          func() time.Time
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.TokenManager == nil:
		return nil, errMissingTokenManager
	case deps.Users == nil:
		return nil, errMissingUserService
	case deps.Catalog == nil:
		return nil, errMissingCatalog
	case deps.Settings == nil:
		return nil, errMissingSettingsStore
	case deps.Resolver == nil:
		return nil, errMissingResolver
	case deps.Syncer == nil:
		return nil, errMissingSyncer
	case deps.Printers == nil:
		return nil, errMissingPrinters
	case deps.Network == nil:
		return nil, errMissingNetwork
	case deps.Tracker == nil:
		return nil, errMissingTracker
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	mediaURL := strings.TrimSpace(deps.MediaURL)
	if mediaURL == "" {
		mediaURL = defaultMediaURL
	}
	if !strings.HasSuffix(mediaURL, "/") {
		mediaURL += "/"
	}
	uploadMaxBytes := deps.UploadMaxBytes
	if uploadMaxBytes <= 0 {
		uploadMaxBytes = defaultUploadMaxBytes
	}

	useWireFieldNames()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.MaxMultipartMemory = uploadMaxBytes

	handler := &httpHandler{
		tokens:         deps.TokenManager,
		users:          deps.Users,
		catalog:        deps.Catalog,
		settings:       deps.Settings,
		resolver:       deps.Resolver,
		syncer:         deps.Syncer,
		printers:       deps.Printers,
		network:        deps.Network,
		tracker:        deps.Tracker,
		realtime:       deps.Realtime,
		mediaRoot:      deps.MediaRoot,
		mediaURL:       mediaURL,
		uploadMaxBytes: uploadMaxBytes,
		sanitizer:      bluemonday.StrictPolicy(),
		clock:          clock,
		logger:         logger,
	}

	router.POST("/api/auth/token", handler.handleIssueToken)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}
	if strings.TrimSpace(deps.MediaRoot) != "" && strings.HasPrefix(mediaURL, "/") {
		router.Static(strings.TrimSuffix(mediaURL, "/"), deps.MediaRoot)
	}

	categories := router.Group("/api/categories")
	categories.GET("/health/", handler.handleHealth)

	public := categories.Group("/")
	public.Use(handler.resolveOptionalUser)
	public.GET("/", handler.handleListCategories)
	public.GET("/last-access/", handler.handleLastAccess)
	public.POST("/track/:id/", handler.handleTrackAccess)
	public.GET("/books/", handler.handleListBooks)
	public.GET("/books/:id/", handler.handleBookDetail)
	public.GET("/printers/", handler.handleListPrinters)
	public.GET("/printers/status/:name/", handler.handlePrinterStatus)
	public.GET("/interfaces/", handler.handleListInterfaces)
	public.GET("/interfaces/:name/ip/", handler.handleInterfaceIP)
	public.GET("/current-ip/", handler.handleCurrentIP)
	public.GET("/:id/", handler.handleCategoryDetail)

	admin := public.Group("/admin")
	admin.GET("/printer-settings/", handler.handleListPrinterSettings)
	admin.POST("/printer-settings/", handler.handleCreatePrinterSettings)
	admin.GET("/printer-settings/:id/", handler.handleGetPrinterSettings)
	admin.PUT("/printer-settings/:id/", handler.handleUpdatePrinterSettings)
	admin.PATCH("/printer-settings/:id/", handler.handleUpdatePrinterSettings)
	admin.DELETE("/printer-settings/:id/", handler.handleDeletePrinterSettings)
	admin.GET("/network-interfaces/", handler.handleListNetworkInterfaces)
	admin.POST("/network-interfaces/", handler.handleCreateNetworkInterface)
	admin.GET("/network-interfaces/:id/", handler.handleGetNetworkInterface)
	admin.PUT("/network-interfaces/:id/", handler.handleUpdateNetworkInterface)
	admin.PATCH("/network-interfaces/:id/", handler.handleUpdateNetworkInterface)
	admin.DELETE("/network-interfaces/:id/", handler.handleDeleteNetworkInterface)
	admin.GET("/print-jobs/", handler.handleListPrintJobs)
	admin.POST("/print-jobs/", handler.handleCreatePrintJob)
	admin.GET("/print-jobs/:id/", handler.handleGetPrintJob)
	admin.PUT("/print-jobs/:id/", handler.handleUpdatePrintJob)
	admin.PATCH("/print-jobs/:id/", handler.handleUpdatePrintJob)
	admin.DELETE("/print-jobs/:id/", handler.handleDeletePrintJob)

	protected := categories.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/print-image/:id/", handler.handlePrintImage)
	protected.POST("/print-temp/", handler.handlePrintTemp)
	protected.POST("/printers/sync/", handler.handleSyncPrinters)
	protected.POST("/interfaces/sync/", handler.handleSyncInterfaces)
	protected.GET("/print-jobs/stream", handler.handlePrintJobStream)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

type httpHandler struct {
	tokens         TokenManager
	users          *users.Service
	catalog        *catalog.Service
	settings       *settings.Store
	resolver       InterfaceResolver
	syncer         SettingsSyncer
	printers       PrinterDirectory
	network        netif.Source
	tracker        *printing.Tracker
	realtime       *RealtimeDispatcher
	mediaRoot      string
	mediaURL       string
	uploadMaxBytes int64
	sanitizer      *bluemonday.Policy
	clock          func() time.Time
	logger         *zap.Logger
}

type tokenRequestPayload struct {
	MAC string `json:"mac" form:"mac" binding:"required,max=150"`
}

type tokenResponsePayload struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
	TokenType string `json:"token_type"`
}

func (h *httpHandler) handleIssueToken(c *gin.Context) {
	var request tokenRequestPayload
	if err := c.ShouldBind(&request); err != nil {
		writeBindingError(c, err)
		return
	}
	user, err := h.users.EnsureUser(c.Request.Context(), request.MAC)
	if err != nil {
		if errors.Is(err, users.ErrInvalidUsername) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device identifier", "field": "mac"})
			return
		}
		h.logger.Error("failed to resolve device user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	token, expiresIn, err := h.tokens.IssueDeviceToken(c.Request.Context(), strconv.FormatUint(uint64(user.ID), 10))
	if err != nil {
		h.logger.Error("failed to issue device token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	c.JSON(http.StatusOK, tokenResponsePayload{Token: token, ExpiresIn: expiresIn, TokenType: "Bearer"})
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	host := c.Request.Host
	if host == "" {
		host = unknownServerHostHeader
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"message":   healthMessage,
		"server_ip": host,
		"timestamp": h.clock().UTC().Format(time.RFC3339Nano),
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	userID, err := h.authenticate(c.Request.Context(), token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, userID)
	c.Next()
}

// resolveOptionalUser attributes the request to the bearer of a valid token,
// or to the shared anonymous user otherwise.
func (h *httpHandler) resolveOptionalUser(c *gin.Context) {
	if token, ok := bearerToken(c); ok {
		if userID, err := h.authenticate(c.Request.Context(), token); err == nil {
			c.Set(userIDContextKey, userID)
			c.Next()
			return
		}
	}
	anonymous, err := h.users.Anonymous(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to resolve anonymous user", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Set(userIDContextKey, anonymous.ID)
	c.Next()
}

func (h *httpHandler) authenticate(ctx context.Context, token string) (uint, error) {
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		return 0, err
	}
	id, err := strconv.ParseUint(subject, 10, 64)
	if err != nil {
		h.logger.Warn("token subject is not a user id", zap.String("subject", subject))
		return 0, err
	}
	user, err := h.users.Get(ctx, uint(id))
	if err != nil {
		h.logger.Warn("token subject lookup failed", zap.Uint64("user_id", id), zap.Error(err))
		return 0, err
	}
	if !user.IsActive {
		return 0, errInvalidAuthorization
	}
	return user.ID, nil
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		return token, token != ""
	}
	if token := strings.TrimSpace(c.Query(accessTokenQueryParam)); token != "" {
		return token, true
	}
	return "", false
}

func currentUserID(c *gin.Context) uint {
	if value, ok := c.Get(userIDContextKey); ok {
		if id, ok := value.(uint); ok {
			return id
		}
	}
	return 0
}

// writeServiceError maps service error kinds onto HTTP statuses.
func (h *httpHandler) writeServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, serviceerror.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, serviceerror.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, serviceerror.ErrConflict):
		status = http.StatusConflict
	default:
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", serviceerror.CodeOf(err)),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": errorMessage(err), "code": serviceerror.CodeOf(err)})
}

// errorMessage returns the human part of a service error.
func errorMessage(err error) string {
	var serviceErr *serviceerror.ServiceError
	if errors.As(err, &serviceErr) && serviceErr.Cause() != nil {
		message := serviceErr.Cause().Error()
		for _, sentinel := range []error{serviceerror.ErrNotFound, serviceerror.ErrInvalidInput, serviceerror.ErrConflict} {
			if trimmed, ok := strings.CutPrefix(message, sentinel.Error()+": "); ok {
				return trimmed
			}
		}
		return message
	}
	return err.Error()
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "field": name})
		return 0, false
	}
	return uint(id), true
}
