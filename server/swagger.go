package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SwaggerInfo holds swagger metadata for the service
type SwaggerInfo struct {
	Title       string
	Description string
	Version     string
	Host        string
	BasePath    string
}

// SwaggerHostUpdater is a function type to update SwaggerInfo.Host at runtime.
// Deployments should pass a function that updates docs.SwaggerInfo.Host.
type SwaggerHostUpdater func(host string)

// RegisterSwagger registers the swagger UI endpoint with dynamic host from
// the request. Deployments must import their generated docs package.
func (a *App) RegisterSwagger(info SwaggerInfo, hostUpdater SwaggerHostUpdater) {
	a.engine.GET("/swagger/*any", func(c *gin.Context) {
		// Get host from request (supports X-Forwarded-Host for reverse proxy)
		host := c.GetHeader("X-Forwarded-Host")
		if host == "" {
			host = c.Request.Host
		}

		if hostUpdater != nil {
			hostUpdater(host)
		}

		handler := ginSwagger.WrapHandler(
			swaggerFiles.Handler,
			ginSwagger.DefaultModelsExpandDepth(-1),
		)
		handler(c)
	})

	a.logger.Info().
		Str("path", "/swagger/index.html").
		Msg("Swagger UI registered with dynamic host")
}

// RegisterSwaggerWithDocs registers swagger with a custom docs handler
func (a *App) RegisterSwaggerWithDocs(docsHandler gin.HandlerFunc) {
	a.engine.GET("/swagger/*any", docsHandler)
	a.logger.Info().
		Str("path", "/swagger/index.html").
		Msg("Swagger UI registered with custom handler")
}
