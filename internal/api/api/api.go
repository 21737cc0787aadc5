package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"eventhub/cmd/middleware"
	"eventhub/internal/auth"
	"eventhub/internal/payment"
	"eventhub/internal/rabbit"
	"eventhub/internal/service"
)

// Subscriber attaches a realtime client to an event channel.
type Subscriber interface {
	ServeWS(w http.ResponseWriter, r *http.Request, eventID string)
}

type Routers struct {
	Service     service.Service
	Realtime    Subscriber
	Auth        *auth.Verifier
	Intents     payment.IntentCreator
	Webhooks    *payment.Verifier
	Queue       rabbit.Publisher
	FrontendURL string
	Log         *zerolog.Logger

	// PublishTimeout bounds the hand-off of a payment signal to the queue.
	PublishTimeout time.Duration
}

func NewRouters(r *Routers) *ginext.Engine {
	if r.PublishTimeout <= 0 {
		r.PublishTimeout = 5 * time.Second
	}
	origin := r.FrontendURL
	if origin == "" {
		origin = "http://localhost:5173"
	}

	app := ginext.New("release")

	app.Use(gin.Recovery())
	app.Use(middleware.LoggingMiddleware(r.Log))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{origin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	app.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Backend is running!")
	})

	apiGroup := app.Group("/api")
	apiGroup.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API is working!"})
	})

	requireAuth := r.Auth.Middleware()

	events := apiGroup.Group("/events")
	events.GET("", r.listEvents)
	events.GET("/:id", r.getEvent)
	events.POST("", requireAuth, r.createEvent)
	events.PUT("/:id", requireAuth, r.updateEvent)
	events.DELETE("/:id", requireAuth, r.deleteEvent)
	events.POST("/:id/register", requireAuth, r.register)

	checkin := apiGroup.Group("/checkin", requireAuth)
	checkin.POST("/:eventId/checkin", r.checkIn)
	checkin.GET("/:eventId/stats", r.stats)

	payments := apiGroup.Group("/payments")
	payments.POST("/create-payment-intent", requireAuth, r.createPaymentIntent)
	payments.POST("/webhook", r.paymentWebhook)

	apiGroup.GET("/ws/events/:id", func(c *gin.Context) {
		r.Realtime.ServeWS(c.Writer, c.Request, c.Param("id"))
	})

	return app
}
