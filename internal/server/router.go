package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reelforge/studio/backend/internal/assets"
	"github.com/reelforge/studio/backend/internal/auth"
	"github.com/reelforge/studio/backend/internal/billing"
	"github.com/reelforge/studio/backend/internal/history"
)

const userIDContextKey = "studio_user_id"

var (
	errMissingIdentityVerifier = errors.New("identity verifier dependency required")
	errMissingTokenManager     = errors.New("token manager dependency required")
	errMissingUserResolver     = errors.New("user resolver dependency required")
	errMissingAssetsService    = errors.New("assets service dependency required")
	errMissingBillingService   = errors.New("billing service dependency required")
	errInvalidAuthorization    = errors.New("authorization header missing or invalid")
)

// IdentityVerifier validates provider-issued ID tokens.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (auth.IdentityClaims, error)
}

// SessionTokenManager issues and validates backend session tokens.
type SessionTokenManager interface {
	IssueSessionToken(ctx context.Context, userID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// UserResolver maps verified provider claims onto a canonical user id.
type UserResolver interface {
	ResolveCanonicalUserID(claims auth.IdentityClaims) (string, error)
}

type Dependencies struct {
	IdentityVerifier IdentityVerifier
	TokenManager     SessionTokenManager
	UserResolver     UserResolver
	AssetsService    *assets.Service
	BillingService   *billing.Service
	Realtime         *RealtimeDispatcher
	Logger           *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.IdentityVerifier == nil {
		return nil, errMissingIdentityVerifier
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.UserResolver == nil {
		return nil, errMissingUserResolver
	}
	if deps.AssetsService == nil {
		return nil, errMissingAssetsService
	}
	if deps.BillingService == nil {
		return nil, errMissingBillingService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		verifier: deps.IdentityVerifier,
		tokens:   deps.TokenManager,
		users:    deps.UserResolver,
		assets:   deps.AssetsService,
		billing:  deps.BillingService,
		realtime: realtime,
		logger:   logger,
	}

	router.POST("/auth/token", handler.handleTokenExchange)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/assets/:assetID/versions", handler.handleCreateVersion)
	protected.POST("/assets/:assetID/prompt", handler.handleEditPrompt)
	protected.POST("/assets/:assetID/generate", handler.handleCompleteGeneration)
	protected.POST("/assets/:assetID/restore", handler.handleRestoreVersion)
	protected.GET("/assets/:assetID/history", handler.handleHistory)
	protected.GET("/pricing/quote", handler.handleQuote)
	protected.POST("/billing/orders", handler.handleCreateOrder)
	protected.POST("/billing/orders/:orderID/settle", handler.handleSettleOrder)
	protected.GET("/billing/balance", handler.handleBalance)
	protected.GET("/events", handler.handleEventStream)

	return router, nil
}

type httpHandler struct {
	verifier IdentityVerifier
	tokens   SessionTokenManager
	users    UserResolver
	assets   *assets.Service
	billing  *billing.Service
	realtime *RealtimeDispatcher
	logger   *zap.Logger
}

type authRequestPayload struct {
	IDToken string `json:"id_token"`
}

type authResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleTokenExchange(c *gin.Context) {
	var request authRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	claims, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		h.logger.Warn("identity token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	userID, err := h.users.ResolveCanonicalUserID(claims)
	if err != nil {
		h.logger.Error("failed to resolve canonical user", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	token, expiresIn, err := h.tokens.IssueSessionToken(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

type versionResponsePayload struct {
	AssetID          string  `json:"asset_id"`
	Version          int     `json:"version"`
	Prompt           string  `json:"prompt"`
	DestinationPath  string  `json:"destination_path,omitempty"`
	Duration         float64 `json:"duration"`
	ModelTier        int     `json:"model_tier"`
	Status           string  `json:"status"`
	IsDraft          bool    `json:"is_draft"`
	IsCurrent        bool    `json:"is_current"`
	CreatedAtSeconds int64   `json:"created_at_s"`
}

func toVersionResponse(version *assets.AssetVersion) versionResponsePayload {
	return versionResponsePayload{
		AssetID:          version.AssetID,
		Version:          version.Version,
		Prompt:           version.Prompt,
		DestinationPath:  version.DestinationPath,
		Duration:         version.Duration,
		ModelTier:        version.ModelTier,
		Status:           version.Status,
		IsDraft:          version.IsDraft,
		IsCurrent:        version.IsCurrent,
		CreatedAtSeconds: version.CreatedAtSeconds,
	}
}

type createVersionPayload struct {
	Prompt    string `json:"prompt"`
	ModelTier int    `json:"model_tier"`
}

func (h *httpHandler) handleCreateVersion(c *gin.Context) {
	ownerID, assetID, ok := h.resolveAssetScope(c)
	if !ok {
		return
	}

	var request createVersionPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	version, err := h.assets.CreateVersion(c.Request.Context(), ownerID, assetID, assets.CreateVersionRequest{
		Prompt:    request.Prompt,
		ModelTier: request.ModelTier,
	})
	if err != nil {
		h.respondAssetError(c, err)
		return
	}

	h.publishVersionChange(ownerID.String(), version)
	c.JSON(http.StatusCreated, toVersionResponse(version))
}

type editPromptPayload struct {
	Prompt string `json:"prompt"`
}

func (h *httpHandler) handleEditPrompt(c *gin.Context) {
	ownerID, assetID, ok := h.resolveAssetScope(c)
	if !ok {
		return
	}

	var request editPromptPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	version, err := h.assets.EditPrompt(c.Request.Context(), ownerID, assetID, request.Prompt)
	if err != nil {
		h.respondAssetError(c, err)
		return
	}

	h.publishVersionChange(ownerID.String(), version)
	c.JSON(http.StatusOK, toVersionResponse(version))
}

type completeGenerationPayload struct {
	DestinationPath    string  `json:"destination_path"`
	Duration           float64 `json:"duration"`
	Model              string  `json:"model"`
	ModelTier          int     `json:"model_tier"`
	RegenerationReason string  `json:"regeneration_reason"`
}

func (h *httpHandler) handleCompleteGeneration(c *gin.Context) {
	ownerID, assetID, ok := h.resolveAssetScope(c)
	if !ok {
		return
	}

	var request completeGenerationPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	version, err := h.assets.CompleteGeneration(c.Request.Context(), ownerID, assetID, assets.GenerationResult{
		DestinationPath:    request.DestinationPath,
		Duration:           request.Duration,
		Model:              request.Model,
		ModelTier:          request.ModelTier,
		RegenerationReason: request.RegenerationReason,
	})
	if err != nil {
		h.respondAssetError(c, err)
		return
	}

	h.publishVersionChange(ownerID.String(), version)
	c.JSON(http.StatusOK, toVersionResponse(version))
}

type restoreVersionPayload struct {
	Version int `json:"version"`
}

func (h *httpHandler) handleRestoreVersion(c *gin.Context) {
	ownerID, assetID, ok := h.resolveAssetScope(c)
	if !ok {
		return
	}

	var request restoreVersionPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Version <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	version, err := h.assets.RestoreVersion(c.Request.Context(), ownerID, assetID, request.Version)
	if err != nil {
		h.respondAssetError(c, err)
		return
	}

	h.publishVersionChange(ownerID.String(), version)
	c.JSON(http.StatusOK, toVersionResponse(version))
}

type historyResponsePayload struct {
	AssetID string                    `json:"asset_id"`
	Actions []history.AnnotatedAction `json:"actions"`
}

func (h *httpHandler) handleHistory(c *gin.Context) {
	ownerID, assetID, ok := h.resolveAssetScope(c)
	if !ok {
		return
	}

	actions, err := h.assets.History(c.Request.Context(), ownerID, assetID)
	if err != nil {
		h.respondAssetError(c, err)
		return
	}

	c.JSON(http.StatusOK, historyResponsePayload{
		AssetID: assetID.String(),
		Actions: actions,
	})
}

func (h *httpHandler) handleQuote(c *gin.Context) {
	credits, err := strconv.ParseInt(strings.TrimSpace(c.Query("credits")), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_credits"})
		return
	}

	quote, err := h.billing.Quote(c.Request.Context(), credits)
	if err != nil {
		h.respondBillingError(c, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

type createOrderPayload struct {
	Credits int64 `json:"credits"`
}

type orderResponsePayload struct {
	OrderID          string  `json:"order_id"`
	Credits          int64   `json:"credits"`
	Amount           int64   `json:"amount"`
	Currency         string  `json:"currency"`
	DiscountPercent  float64 `json:"discount_percent"`
	TierName         string  `json:"tier_name,omitempty"`
	Status           string  `json:"status"`
	GatewayRef       string  `json:"gateway_ref,omitempty"`
	CreatedAtSeconds int64   `json:"created_at_s"`
	SettledAtSeconds *int64  `json:"settled_at_s,omitempty"`
}

func toOrderResponse(order *billing.PaymentOrder) orderResponsePayload {
	return orderResponsePayload{
		OrderID:          order.OrderID,
		Credits:          order.Credits,
		Amount:           order.Amount,
		Currency:         order.Currency,
		DiscountPercent:  order.DiscountPercent,
		TierName:         order.TierName,
		Status:           order.Status,
		GatewayRef:       order.GatewayRef,
		CreatedAtSeconds: order.CreatedAtSeconds,
		SettledAtSeconds: order.SettledAtSeconds,
	}
}

func (h *httpHandler) handleCreateOrder(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	var request createOrderPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	order, err := h.billing.CreateOrder(c.Request.Context(), userID, request.Credits)
	if err != nil {
		h.respondBillingError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toOrderResponse(order))
}

type settleOrderPayload struct {
	GatewayRef string `json:"gateway_ref"`
}

func (h *httpHandler) handleSettleOrder(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	orderID := strings.TrimSpace(c.Param("orderID"))
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	var request settleOrderPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	order, err := h.billing.SettleOrder(c.Request.Context(), userID, orderID, request.GatewayRef)
	if err != nil {
		h.respondBillingError(c, err)
		return
	}

	h.realtime.Publish(RealtimeMessage{
		UserID:    order.UserID,
		EventType: RealtimeEventOrderSettled,
		OrderID:   order.OrderID,
		Credits:   order.Credits,
		Timestamp: time.Now().UTC(),
	})
	c.JSON(http.StatusOK, toOrderResponse(order))
}

type balanceResponsePayload struct {
	UserID           string               `json:"user_id"`
	Credits          int64                `json:"credits"`
	UpdatedAtSeconds int64                `json:"updated_at_s"`
	Transactions     []transactionPayload `json:"transactions"`
}

type transactionPayload struct {
	TransactionID    string `json:"transaction_id"`
	AmountCredits    int64  `json:"amount_credits"`
	BalanceAfter     int64  `json:"balance_after"`
	Kind             string `json:"kind"`
	ReferenceID      string `json:"reference_id,omitempty"`
	CreatedAtSeconds int64  `json:"created_at_s"`
}

func (h *httpHandler) handleBalance(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		limit = parsed
	}

	statement, err := h.billing.Balance(c.Request.Context(), userID, limit)
	if err != nil {
		h.respondBillingError(c, err)
		return
	}

	response := balanceResponsePayload{
		UserID:           userID,
		Credits:          statement.Balance.Credits,
		UpdatedAtSeconds: statement.Balance.UpdatedAtSeconds,
		Transactions:     make([]transactionPayload, 0, len(statement.Transactions)),
	}
	for _, tx := range statement.Transactions {
		response.Transactions = append(response.Transactions, transactionPayload{
			TransactionID:    tx.TransactionID,
			AmountCredits:    tx.AmountCredits,
			BalanceAfter:     tx.BalanceAfter,
			Kind:             tx.Kind,
			ReferenceID:      tx.ReferenceID,
			CreatedAtSeconds: tx.CreatedAtSeconds,
		})
	}
	c.JSON(http.StatusOK, response)
}

type streamEventPayload struct {
	AssetID   string `json:"assetId,omitempty"`
	Version   int    `json:"version,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
	Credits   int64  `json:"credits,omitempty"`
	EmittedAt int64  `json:"emittedAt"`
	Source    string `json:"source"`
}

func (h *httpHandler) handleEventStream(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming_unsupported"})
		return
	}

	stream, cleanup := h.realtime.Subscribe(c.Request.Context(), userID)
	defer cleanup()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case message, open := <-stream:
			if !open {
				return
			}
			payload := streamEventPayload{
				AssetID:   message.AssetID,
				Version:   message.Version,
				OrderID:   message.OrderID,
				Credits:   message.Credits,
				EmittedAt: message.Timestamp.Unix(),
				Source:    realtimeSourceBackend,
			}
			if err := writeServerSentEvent(c.Writer, message.EventType, payload); err != nil {
				return
			}
			flusher.Flush()
		case tick := <-heartbeat.C:
			payload := streamEventPayload{
				EmittedAt: tick.UTC().Unix(),
				Source:    realtimeSourceBackend,
			}
			if err := writeServerSentEvent(c.Writer, realtimeEventHeartbeat, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeServerSentEvent(w io.Writer, eventType string, payload streamEventPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
	return err
}

func (h *httpHandler) publishVersionChange(userID string, version *assets.AssetVersion) {
	h.realtime.Publish(RealtimeMessage{
		UserID:    userID,
		EventType: RealtimeEventVersionChanged,
		AssetID:   version.AssetID,
		Version:   version.Version,
		Timestamp: time.Now().UTC(),
	})
}

// resolveAssetScope validates the path asset id and binds it to the
// authenticated owner. A false return means the response was already written.
func (h *httpHandler) resolveAssetScope(c *gin.Context) (assets.OwnerID, assets.AssetID, bool) {
	userID := c.GetString(userIDContextKey)
	ownerID, err := assets.NewOwnerID(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", "", false
	}
	assetID, err := assets.NewAssetID(c.Param("assetID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_asset_id"})
		return "", "", false
	}
	return ownerID, assetID, true
}

func (h *httpHandler) respondAssetError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, assets.ErrVersionExists):
		c.JSON(http.StatusConflict, gin.H{"error": "version_exists"})
	case errors.Is(err, assets.ErrAlreadyCurrent):
		c.JSON(http.StatusConflict, gin.H{"error": "already_current"})
	case errors.Is(err, assets.ErrNoCurrentVersion):
		c.JSON(http.StatusNotFound, gin.H{"error": "no_current_version"})
	case errors.Is(err, assets.ErrVersionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "version_not_found"})
	default:
		h.logger.Error("asset operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func (h *httpHandler) respondBillingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, billing.ErrInvalidCredits):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_credits"})
	case errors.Is(err, billing.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
	case errors.Is(err, billing.ErrOrderNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "order_not_pending"})
	default:
		h.logger.Error("billing operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := ""
	header := c.GetHeader("Authorization")
	switch {
	case strings.HasPrefix(header, "Bearer "):
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	default:
		// EventSource cannot set headers, so streams pass the token in the
		// query string instead.
		token = strings.TrimSpace(c.Query("access_token"))
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}
