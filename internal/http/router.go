package http

import (
	"log/slog"
	"net/http"

	"github.com/geocoder89/secondchance/internal/cache"
	"github.com/geocoder89/secondchance/internal/config"
	"github.com/geocoder89/secondchance/internal/http/handlers"
	"github.com/geocoder89/secondchance/internal/http/middlewares"
	"github.com/geocoder89/secondchance/internal/observability"
	"github.com/geocoder89/secondchance/internal/storage"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "secondchance"

// Dependencies is everything the HTTP layer needs from the process. Images,
// Cache, Prom, Metrics, Ping and ShuttingDown are optional.
type Dependencies struct {
	Users  handlers.UserStore
	Items  handlers.ItemStore
	Images storage.ImageStore
	Cache  cache.Store
	Tokens interface {
		handlers.TokenIssuer
		middlewares.TokenVerifier
	}
	Prom    *observability.Prom
	Metrics http.Handler
	Ping    handlers.PingFunc

	// ShuttingDown flips /readyz to 503 once the server starts draining.
	ShuttingDown func() bool
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Dependencies) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))

	var uploads handlers.UploadObserver
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
		uploads = deps.Prom
	}

	// health
	h := handlers.NewHealthHandler(deps.Ping, deps.ShuttingDown, log)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	// auth
	authHandler := handlers.NewAuthHandler(deps.Users, deps.Tokens, log)
	authMW := middlewares.NewAuthMiddleware(deps.Tokens)

	r.POST("/register", middlewares.RequireJSON(), authHandler.Register)
	r.POST("/login", middlewares.RequireJSON(), authHandler.Login)
	r.PUT("/update", authMW.RequireAuth(), middlewares.RequireJSON(), authHandler.Update)

	// items
	itemsHandler := handlers.NewItemsHandler(deps.Items, deps.Images, log,
		handlers.WithListCache(deps.Cache),
		handlers.WithUploadObserver(uploads),
	)

	items := r.Group("/items")
	{
		items.GET("", itemsHandler.ListItems)
		items.POST("",
			middlewares.MaxBodyBytes(cfg.MaxUploadBytes),
			middlewares.RequireContentType(gin.MIMEJSON, gin.MIMEMultipartPOSTForm),
			itemsHandler.CreateItem,
		)
		items.GET("/:id", itemsHandler.GetItem)
		items.PUT("/:id", middlewares.RequireJSON(), itemsHandler.UpdateItem)
		items.DELETE("/:id", itemsHandler.DeleteItem)
	}

	if deps.Images != nil {
		r.GET("/images/:key", middlewares.ImageSecurityHeaders(), handlers.NewImagesHandler(deps.Images, log).GetImage)
	}

	return r
}
