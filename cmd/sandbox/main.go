package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MockDaraja simulates the M-Pesa Daraja sandbox: token issuance, STK push
// acceptance with an asynchronous result callback, and B2C acceptance.
type MockDaraja struct {
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
	rng         *rand.Rand

	mu     sync.Mutex
	tokens map[string]time.Time
}

func NewMockDaraja(successRate float64, minDelay, maxDelay time.Duration) *MockDaraja {
	return &MockDaraja{
		successRate: successRate,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		tokens:      make(map[string]time.Time),
	}
}

func (m *MockDaraja) issueToken() string {
	token := uuid.New().String()
	m.mu.Lock()
	m.tokens[token] = time.Now().Add(time.Hour)
	m.mu.Unlock()
	return token
}

func (m *MockDaraja) validToken(header string) bool {
	token := strings.TrimPrefix(header, "Bearer ")
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.tokens[token]
	return ok && time.Now().Before(expiry)
}

func (m *MockDaraja) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockDaraja) shouldSucceed() bool {
	return m.rng.Float64() < m.successRate
}

func (m *MockDaraja) receiptNumber() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 10)
	for i := range b {
		b[i] = letters[m.rng.Intn(len(letters))]
	}
	return string(b)
}

type stkPushRequest struct {
	BusinessShortCode string      `json:"BusinessShortCode" binding:"required"`
	Password          string      `json:"Password" binding:"required"`
	Timestamp         string      `json:"Timestamp" binding:"required"`
	TransactionType   string      `json:"TransactionType"`
	Amount            json.Number `json:"Amount"`
	PartyA            string      `json:"PartyA"`
	PartyB            string      `json:"PartyB"`
	PhoneNumber       string      `json:"PhoneNumber" binding:"required"`
	CallBackURL       string      `json:"CallBackURL" binding:"required"`
	AccountReference  string      `json:"AccountReference"`
	TransactionDesc   string      `json:"TransactionDesc"`
}

type b2cRequest struct {
	InitiatorName      string      `json:"InitiatorName"`
	SecurityCredential string      `json:"SecurityCredential"`
	CommandID          string      `json:"CommandID"`
	Amount             json.Number `json:"Amount"`
	PartyA             string      `json:"PartyA"`
	PartyB             string      `json:"PartyB" binding:"required"`
	Remarks            string      `json:"Remarks"`
	QueueTimeOutURL    string      `json:"QueueTimeOutURL"`
	ResultURL          string      `json:"ResultURL"`
	Occasion           string      `json:"Occasion"`
}

type Handler struct {
	daraja *MockDaraja
}

func NewHandler(daraja *MockDaraja) *Handler {
	return &Handler{daraja: daraja}
}

// Token handles OAuth client-credentials token requests.
func (h *Handler) Token(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		c.JSON(http.StatusUnauthorized, gin.H{
			"errorCode":    "400.008.01",
			"errorMessage": "Invalid Authentication passed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": h.daraja.issueToken(),
		"expires_in":   "3599",
	})
}

// STKPush accepts a payment prompt request and schedules the asynchronous
// result callback the way the real sandbox does.
func (h *Handler) STKPush(c *gin.Context) {
	if !h.daraja.validToken(c.GetHeader("Authorization")) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"errorCode":    "404.001.03",
			"errorMessage": "Invalid Access Token",
		})
		return
	}

	var req stkPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"errorCode":    "400.002.02",
			"errorMessage": err.Error(),
		})
		return
	}

	merchantRequestID := uuid.New().String()
	checkoutRequestID := "ws_CO_" + uuid.New().String()

	log.Info().
		Str("checkout_request_id", checkoutRequestID).
		Str("phone", req.PhoneNumber).
		Str("amount", req.Amount.String()).
		Msg("STK push accepted")

	go h.deliverCallback(req, merchantRequestID, checkoutRequestID)

	c.JSON(http.StatusOK, gin.H{
		"MerchantRequestID":   merchantRequestID,
		"CheckoutRequestID":   checkoutRequestID,
		"ResponseCode":        "0",
		"ResponseDescription": "Success. Request accepted for processing",
		"CustomerMessage":     "Success. Request accepted for processing",
	})
}

// deliverCallback posts the STK result to the caller's callback URL after a
// simulated customer-interaction delay.
func (h *Handler) deliverCallback(req stkPushRequest, merchantRequestID, checkoutRequestID string) {
	time.Sleep(h.daraja.randomDelay())

	stkCallback := map[string]interface{}{
		"MerchantRequestID": merchantRequestID,
		"CheckoutRequestID": checkoutRequestID,
	}

	if h.daraja.shouldSucceed() {
		amount, _ := req.Amount.Float64()
		stkCallback["ResultCode"] = 0
		stkCallback["ResultDesc"] = "The service request is processed successfully."
		stkCallback["CallbackMetadata"] = map[string]interface{}{
			"Item": []map[string]interface{}{
				{"Name": "Amount", "Value": amount},
				{"Name": "MpesaReceiptNumber", "Value": h.daraja.receiptNumber()},
				{"Name": "TransactionDate", "Value": time.Now().Format("20060102150405")},
				{"Name": "PhoneNumber", "Value": req.PhoneNumber},
			},
		}
	} else {
		stkCallback["ResultCode"] = 1032
		stkCallback["ResultDesc"] = "Request cancelled by user"
	}

	body, _ := json.Marshal(map[string]interface{}{
		"Body": map[string]interface{}{"stkCallback": stkCallback},
	})

	resp, err := http.Post(req.CallBackURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Warn().
			Str("checkout_request_id", checkoutRequestID).
			Str("callback_url", req.CallBackURL).
			Err(err).
			Msg("Failed to deliver callback")
		return
	}
	defer resp.Body.Close()

	log.Info().
		Str("checkout_request_id", checkoutRequestID).
		Int("status", resp.StatusCode).
		Msg("Callback delivered")
}

// B2C accepts a disbursement request.
func (h *Handler) B2C(c *gin.Context) {
	if !h.daraja.validToken(c.GetHeader("Authorization")) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"errorCode":    "404.001.03",
			"errorMessage": "Invalid Access Token",
		})
		return
	}

	var req b2cRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"errorCode":    "400.002.02",
			"errorMessage": err.Error(),
		})
		return
	}

	log.Info().
		Str("phone", req.PartyB).
		Str("amount", req.Amount.String()).
		Msg("B2C payment accepted")

	c.JSON(http.StatusOK, gin.H{
		"ConversationID":           "AG_" + uuid.New().String(),
		"OriginatorConversationID": uuid.New().String(),
		"ResponseCode":             "0",
		"ResponseDescription":      "Accept the service request successfully.",
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"success_rate": h.daraja.successRate,
		"timestamp":    time.Now(),
	})
}

// UpdateConfig allows changing the simulated success rate at runtime.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		SuccessRate *float64 `json:"success_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.SuccessRate != nil && *config.SuccessRate >= 0 && *config.SuccessRate <= 1.0 {
		h.daraja.successRate = *config.SuccessRate
		log.Info().Float64("rate", *config.SuccessRate).Msg("Updated success rate")
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Configuration updated",
		"success_rate": h.daraja.successRate,
	})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	router.GET("/oauth/v1/generate", handler.Token)
	router.POST("/mpesa/stkpush/v1/processrequest", handler.STKPush)
	router.POST("/mpesa/b2c/v1/paymentrequest", handler.B2C)
	router.PUT("/config", handler.UpdateConfig)
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8082")
	successRate := getEnvFloat("SUCCESS_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 1*time.Second)
	maxDelay := getEnvDuration("MAX_DELAY", 5*time.Second)

	log.Info().
		Str("port", port).
		Float64("success_rate", successRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting M-Pesa Sandbox")

	daraja := NewMockDaraja(successRate, minDelay, maxDelay)
	handler := NewHandler(daraja)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
