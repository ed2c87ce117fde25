// Command server runs the demo API: free routes, a paywalled premium route
// and a paywalled portfolio insights route combining Zerion data with a
// Groq-generated summary.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	x402kit "github.com/aeither/x402-starter-kit"
	"github.com/aeither/x402-starter-kit/groq"
	xhttp "github.com/aeither/x402-starter-kit/http"
	ginx402 "github.com/aeither/x402-starter-kit/http/gin"
	"github.com/aeither/x402-starter-kit/metrics"
	"github.com/aeither/x402-starter-kit/zerion"
)

// Config is read from the environment and validated before startup.
type Config struct {
	Port           string `validate:"required,numeric"`
	Network        string `validate:"required"`
	PayTo          string `validate:"required"`
	PriceUSDC      string `validate:"required"`
	FacilitatorURL string `validate:"required,url"`
	ZerionAPIKey   string
	GroqAPIKey     string
	VerifyOnly     bool
}

func loadConfig() (*Config, error) {
	config := &Config{
		Port:           envOr("PORT", "8080"),
		Network:        envOr("NETWORK", "base-sepolia"),
		PayTo:          os.Getenv("PAY_TO"),
		PriceUSDC:      envOr("PRICE_USDC", "0.01"),
		FacilitatorURL: envOr("FACILITATOR_URL", "https://facilitator.x402.rs"),
		ZerionAPIKey:   os.Getenv("ZERION_API_KEY"),
		GroqAPIKey:     os.Getenv("GROQ_API_KEY"),
		VerifyOnly:     os.Getenv("VERIFY_ONLY") == "true",
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	config, err := loadConfig()
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	chain, ok := x402kit.ChainByNetwork(config.Network)
	if !ok {
		logger.Error("unknown network", "network", config.Network)
		os.Exit(1)
	}

	requirement, err := x402kit.NewUSDCRequirement(x402kit.USDCRequirementConfig{
		Chain:            chain,
		Amount:           config.PriceUSDC,
		RecipientAddress: config.PayTo,
		Description:      "Paid API access",
	})
	if err != nil {
		logger.Error("invalid payment configuration", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	recorder := metrics.NewPrometheus(registry)

	gateConfig := &xhttp.Config{
		FacilitatorURL:      config.FacilitatorURL,
		PaymentRequirements: []x402kit.PaymentRequirement{requirement},
		VerifyOnly:          config.VerifyOnly,
		Metrics:             recorder,
		Logger:              logger,
	}
	paywall := ginx402.NewPaymentMiddleware(gateConfig)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	router.GET("/api/free", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "This endpoint is free. Try /api/premium for paid content.",
		})
	})

	paid := router.Group("/api", paywall)
	paid.GET("/premium", premiumHandler())

	if config.ZerionAPIKey != "" {
		zerionClient := zerion.NewClient(config.ZerionAPIKey)
		var groqClient *groq.Client
		if config.GroqAPIKey != "" {
			groqClient = groq.NewClient(config.GroqAPIKey)
		}
		paid.GET("/insights/:address", insightsHandler(zerionClient, groqClient, logger))
	} else {
		logger.Warn("ZERION_API_KEY not set, /api/insights disabled")
	}

	addr := ":" + config.Port
	logger.Info("server starting",
		"addr", addr,
		"network", config.Network,
		"price_usdc", config.PriceUSDC,
		"verify_only", config.VerifyOnly,
	)
	if err := router.Run(addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func premiumHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		payer := ""
		if verify, ok := ginx402.PaymentFromContext(c); ok {
			payer = verify.Payer
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Welcome to premium content",
			"payer":   payer,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// insightsHandler fetches the wallet's portfolio and positions, then asks
// Groq for a summary when configured. A Groq failure degrades to raw data
// instead of failing the paid request.
func insightsHandler(zerionClient *zerion.Client, groqClient *groq.Client, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		address := strings.ToLower(c.Param("address"))
		ctx, cancel := context.WithTimeout(c.Request.Context(), 45*time.Second)
		defer cancel()

		portfolio, err := zerionClient.GetPortfolio(ctx, address)
		if err != nil {
			logger.Error("portfolio fetch failed", "address", address, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch portfolio"})
			return
		}

		positions, err := zerionClient.GetPositions(ctx, address)
		if err != nil {
			logger.Error("positions fetch failed", "address", address, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch positions"})
			return
		}

		const topN = 10
		if len(positions) > topN {
			positions = positions[:topN]
		}

		response := gin.H{
			"address":   address,
			"portfolio": portfolio,
			"positions": positions,
		}

		if groqClient != nil {
			raw, _ := json.Marshal(response)
			summary, err := groqClient.Summarize(ctx, string(raw))
			if err != nil {
				logger.Warn("summary generation failed", "address", address, "error", err)
			} else {
				response["summary"] = summary
			}
		}

		c.JSON(http.StatusOK, response)
	}
}
