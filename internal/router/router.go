package router

import (
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"authcore/internal/auth"
	"authcore/internal/handler"
)

// Register wires routes and middleware. The token service owns all bearer
// verification; the middleware only extracts the header and answers with one
// uniform 401 regardless of why verification failed.
func Register(e *echo.Echo, tokens *auth.TokenService, authHandler *handler.AuthHandler) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Validator = handler.NewRequestValidator()

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api/auth")

	// Public routes
	api.POST("/register", authHandler.Register)
	api.POST("/login", authHandler.Login)
	api.POST("/forgot-password", authHandler.ForgotPassword)
	api.PUT("/reset-password/:resetToken", authHandler.ResetPassword)

	// Secured routes (require a valid bearer token)
	secured := api.Group("", echojwt.WithConfig(echojwt.Config{
		ParseTokenFunc: func(c echo.Context, tokenString string) (interface{}, error) {
			return tokens.Verify(tokenString)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, handler.Response{
				Success: false,
				Message: "not authorized to access this route",
			})
		},
	}))

	secured.GET("/me", authHandler.Me)
	secured.GET("/logout", authHandler.Logout)
}
