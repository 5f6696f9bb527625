package routing

import (
	"github.com/labstack/echo/v4"

	"medassist/internal/handlers"
)

func InitRoutes(e *echo.Echo, handler *handlers.Handler) {
	e.GET("/health", handler.GetHealth)

	ai := e.Group("ai")
	ai.POST("/chat", handler.PostChat)
	ai.POST("/simplify", handler.PostSimplify)

	reports := e.Group("reports")
	reports.POST("/analyze", handler.PostAnalyzeReport)
	reports.GET("", handler.GetReports)
}
