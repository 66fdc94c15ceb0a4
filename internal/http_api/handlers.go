package http_api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/chains"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/explorer"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/repository"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/rpcpool"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/validation"
)

// SubscriptionRequest represents the JSON body for creating a subscription
type SubscriptionRequest struct {
	Chains        []string        `json:"chains"`
	HasLiquidity  bool            `json:"has_liquidity"`
	MinLiquidity  decimal.Decimal `json:"min_liquidity"`
	NamePattern   string          `json:"name_pattern"`
	SymbolPattern string          `json:"symbol_pattern"`
	WebhookURL    string          `json:"webhook_url" binding:"omitempty,url"`
	Email         string          `json:"email" binding:"omitempty,email"`
	Telegram      string          `json:"telegram"`
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, chains.ErrUnknownChain),
		errors.Is(err, chains.ErrMissingFactory),
		errors.Is(err, explorer.ErrInvalidRange),
		errors.Is(err, explorer.ErrInvalidSubscription),
		errors.Is(err, explorer.ErrInvalidArgument),
		errors.Is(err, validation.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rpcpool.ErrNoProviderAvailable),
		errors.Is(err, explorer.ErrScanFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) fail(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
	} else {
		s.logger.Debug("Request rejected", "path", c.Request.URL.Path, "status", status, "error", err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func badQuery(c *gin.Context, name string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "Invalid query parameter " + name + ": " + err.Error(),
	})
}

func queryUint64(c *gin.Context, name string) (*uint64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err == nil && v < 0 {
		err = errors.New("must not be negative")
	}
	return v, err
}

func queryBool(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *HTTPServer) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// scan is a handler for the /scan endpoint. It answers with the scan response
// itself rather than the success envelope.
func (s *HTTPServer) scan(c *gin.Context) {
	req := models.ScanRequest{Chain: c.Query("chain"), UseCache: true}
	var err error
	if req.FromBlock, err = queryUint64(c, "fromBlock"); err != nil {
		badQuery(c, "fromBlock", err)
		return
	}
	if req.ToBlock, err = queryUint64(c, "toBlock"); err != nil {
		badQuery(c, "toBlock", err)
		return
	}
	if useCache, err := queryBool(c, "useCache"); err != nil {
		badQuery(c, "useCache", err)
		return
	} else if useCache != nil {
		req.UseCache = *useCache
	}

	resp, err := s.explorer.Scan(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) tokens(c *gin.Context) {
	filter := models.TokenFilter{Chain: c.Query("chain")}
	var err error
	if filter.IsOpStack, err = queryBool(c, "opStack"); err != nil {
		badQuery(c, "opStack", err)
		return
	}
	if filter.HasLiquidity, err = queryBool(c, "hasLiquidity"); err != nil {
		badQuery(c, "hasLiquidity", err)
		return
	}
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		badQuery(c, "limit", err)
		return
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		badQuery(c, "offset", err)
		return
	}

	tokens, err := s.explorer.Tokens(filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tokens": tokens, "count": len(tokens)})
}

func (s *HTTPServer) token(c *gin.Context) {
	token, err := s.explorer.Token(c.Param("chain"), c.Param("address"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token})
}

func (s *HTTPServer) scanHistory(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		badQuery(c, "limit", err)
		return
	}
	runs, err := s.explorer.ScanHistory(c.Query("chain"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "scans": runs, "count": len(runs)})
}

func (s *HTTPServer) deployers(c *gin.Context) {
	filter := models.DeployerFilter{Chain: c.Query("chain"), SortBy: c.Query("sortBy")}
	minDeployments, err := queryInt(c, "minDeployments")
	if err != nil {
		badQuery(c, "minDeployments", err)
		return
	}
	filter.MinDeployments = int64(minDeployments)
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		badQuery(c, "limit", err)
		return
	}

	stats, err := s.explorer.Deployers(filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deployers": stats, "count": len(stats)})
}

func (s *HTTPServer) stats(c *gin.Context) {
	stats, err := s.explorer.Stats()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

func (s *HTTPServer) activity(c *gin.Context) {
	hours, err := queryInt(c, "hours")
	if err != nil {
		badQuery(c, "hours", err)
		return
	}
	tokens, err := s.explorer.RecentActivity(hours)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tokens": tokens, "count": len(tokens)})
}

func (s *HTTPServer) chains(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "chains": s.explorer.Chains()})
}

// gasPrices returns one chain when ?chain= is given, otherwise every chain
// with per-chain errors inline.
func (s *HTTPServer) gasPrices(c *gin.Context) {
	if chain := c.Query("chain"); chain != "" {
		price, err := s.explorer.GasPrices(c.Request.Context(), chain)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "gas_price": price})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "gas_prices": s.explorer.AllGasPrices(c.Request.Context())})
}

func (s *HTTPServer) subscribe(c *gin.Context) {
	var req SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	sub := &models.Subscription{
		Chains:           req.Chains,
		HasLiquidity:     req.HasLiquidity,
		MinLiquidity:     req.MinLiquidity,
		NamePattern:      req.NamePattern,
		SymbolPattern:    req.SymbolPattern,
		WebhookURL:       req.WebhookURL,
		Email:            req.Email,
		TelegramUsername: req.Telegram,
	}
	if err := s.explorer.Subscribe(sub); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "subscription": sub})
}

func (s *HTTPServer) unsubscribe(c *gin.Context) {
	if err := s.explorer.Unsubscribe(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// adminAuth requires "Authorization: Bearer <token>" when an admin token is configured.
func (s *HTTPServer) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.adminToken == "" {
			c.Next()
			return
		}
		given, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(given), []byte(s.adminToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Unauthorized",
			})
			return
		}
		c.Next()
	}
}

func (s *HTTPServer) export(c *gin.Context) {
	data, err := s.explorer.Export()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="superchain-export.json"`)
	c.JSON(http.StatusOK, data)
}

func (s *HTTPServer) importData(c *gin.Context) {
	var data models.DataExport
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}
	if err := s.explorer.Import(&data); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"token_deployments": len(data.TokenDeployments),
		"scan_history":      len(data.ScanHistory),
		"deployer_stats":    len(data.DeployerStats),
		"subscriptions":     len(data.Subscriptions),
	})
}

// clearData requires an explicit ?kind= of tokens, scan_history, deployer_stats or all.
func (s *HTTPServer) clearData(c *gin.Context) {
	kind := c.Query("kind")
	if err := s.explorer.Clear(kind); err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("Cleared stored data", "kind", kind)
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": kind})
}
