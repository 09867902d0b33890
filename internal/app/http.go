package app

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SecretHeader заголовок, в котором Telegram передаёт secret_token webhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Router служебный HTTP: /healthz, /metrics и, если задан webhookPath,
// приём обновлений Telegram. Обновления без верного secret отвергаются.
func (a *App) Router(webhookPath, secret string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), a.accessLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "authenticated": a.Session.IsAuthenticated()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})))

	if webhookPath != "" {
		r.POST(webhookPath, a.requireSecret(secret), a.webhook)
	}
	return r
}

func (a *App) webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	if err := a.Bot.HandleWebhook(c.Request.Context(), body); err != nil {
		a.log.Warn("bad webhook payload", zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}
	c.Status(http.StatusOK)
}

func (a *App) requireSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(SecretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			a.log.Warn("webhook request with bad secret rejected", zap.String("remote", c.ClientIP()))
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func (a *App) accessLog() gin.HandlerFunc {
	log := a.log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
