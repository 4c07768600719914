package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/tutur/domain/repositories"
	"github.com/satriahrh/tutur/internal/auth"
	"github.com/satriahrh/tutur/internal/voice"
)

const voicesTimeout = 15 * time.Second

// SocketHandler upgrades an authenticated device connection
type SocketHandler interface {
	HandleWebSocketWithAuth(c echo.Context, deviceID string) error
}

// Dependencies are the collaborators of the HTTP routes
type Dependencies struct {
	Hub          SocketHandler
	DeviceRepo   repositories.DeviceRepository
	Tokens       *auth.TokenManager
	TextToSpeech repositories.TextToSpeech
	Locales      []string
	Logger       *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	logger := deps.Logger

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "tutur-server",
		})
	})

	v1 := e.Group("/api/v1")

	v1.POST("/device/auth", func(c echo.Context) error {
		return deviceAuth(c, deps.DeviceRepo, deps.Tokens, logger)
	})

	v1.GET("/voices", func(c echo.Context) error {
		return listVoices(c, deps.TextToSpeech, deps.Locales, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(c, deps.Hub, deps.Tokens, logger)
	})
}

func deviceAuth(c echo.Context, deviceRepo repositories.DeviceRepository, tokens *auth.TokenManager, logger *zap.Logger) error {
	var req DeviceAuthRequest

	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind device auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.SerialNumber == "" || req.SecretKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Serial number and secret key are required",
		})
	}

	device, err := deviceRepo.ValidateDevice(req.SerialNumber, req.SecretKey)
	if err != nil {
		logger.Warn("Device authentication failed",
			zap.String("serial_number", req.SerialNumber),
			zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid device credentials",
		})
	}

	token, expiresAt, err := tokens.GenerateDeviceToken(device.ID)
	if err != nil {
		logger.Error("Failed to generate device token",
			zap.String("device_id", device.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	logger.Info("Device authenticated successfully",
		zap.String("device_id", device.ID),
		zap.String("serial_number", device.SerialNumber))

	return c.JSON(http.StatusOK, DeviceAuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		DeviceID:  device.ID,
	})
}

func listVoices(c echo.Context, tts repositories.TextToSpeech, locales []string, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), voicesTimeout)
	defer cancel()

	all, err := tts.ListVoices(ctx)
	if err != nil {
		logger.Error("Failed to list voices", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "voices_unavailable",
			Message: "Failed to list voices from the speech provider",
		})
	}

	return c.JSON(http.StatusOK, VoicesResponse{
		Voices:  voice.Filter(all, locales),
		Locales: locales,
	})
}

// bearerToken extracts the JWT from the Authorization header or the token query param
func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok && token != "" {
		return token
	}
	return c.QueryParam("token")
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(c echo.Context, hub SocketHandler, tokens *auth.TokenManager, logger *zap.Logger) error {
	token := bearerToken(c)
	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header or token query parameter",
		})
	}

	claims, err := tokens.ValidateDeviceToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("device_id", claims.DeviceID),
		zap.String("role", claims.Role))

	return hub.HandleWebSocketWithAuth(c, claims.DeviceID)
}
