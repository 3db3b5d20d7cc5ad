package restapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"tg_wallet/internal/infrastructure/configloader"
)

// SetupRouter builds the gin engine with CORS, request logging and all routes.
// notifications may be nil to disable the WebSocket endpoint.
func SetupRouter(
	cfg configloader.ServerConfig,
	logger *zap.Logger,
	balances *BalanceHandler,
	dialogs *DialogHandler,
	wallets *WalletHandler,
	notifications http.Handler,
) *gin.Engine {
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 || contains(cfg.AllowedOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))
	router.Use(ZapLoggerMiddleware(logger))
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/balance", balances.GetBalanceHandler)
		v1.POST("/balance/refresh", balances.RefreshBalanceHandler)

		v1.POST("/dialogs", dialogs.OpenDialogHandler)
		v1.GET("/dialogs/:id", dialogs.GetDialogHandler)
		v1.PUT("/dialogs/:id/amount", dialogs.SetAmountHandler)
		v1.POST("/dialogs/:id/submit", dialogs.SubmitHandler)
		v1.DELETE("/dialogs/:id", dialogs.CloseDialogHandler)

		v1.GET("/wallet", wallets.GetWalletHandler)
		v1.PUT("/wallet/account", wallets.SwitchAccountHandler)
		v1.PUT("/wallet/network", wallets.SwitchNetworkHandler)
	}

	if notifications != nil {
		router.GET("/ws/notifications", gin.WrapH(notifications))
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerSpecPath != "" {
		router.StaticFile("/docs/swagger.yaml", cfg.SwaggerSpecPath)
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/docs/swagger.yaml")))
	}
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	return router
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
