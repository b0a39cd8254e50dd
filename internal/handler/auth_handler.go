package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"authcore/internal/auth"
	apperrors "authcore/internal/errors"
	"authcore/internal/model"
	"authcore/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
	devMode     bool
}

// NewAuthHandler creates a new auth handler. devMode controls whether
// internal error detail is echoed back to the client.
func NewAuthHandler(authService service.AuthService, devMode bool) *AuthHandler {
	return &AuthHandler{authService: authService, devMode: devMode}
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=30"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest represents a password-reset request.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest carries the new password for a reset.
type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// UserPayload is the public view of a user.
type UserPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Response is the envelope every auth endpoint answers with.
type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Code    string       `json:"code,omitempty"`
	Token   string       `json:"token,omitempty"`
	User    *UserPayload `json:"user,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Detail  string       `json:"detail,omitempty"` // development mode only
}

// Register godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration data"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Failure 409 {object} Response
// @Failure 500 {object} Response
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, Response{Success: false, Message: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, Response{Success: false, Errors: fieldErrors(err)})
	}

	user, token, err := h.authService.Register(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, Response{Success: true, Token: token, User: publicUser(user)})
}

// Login godoc
// @Summary Log in with username and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 500 {object} Response
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, Response{Success: false, Message: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, Response{Success: false, Errors: fieldErrors(err)})
	}

	user, token, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, Response{Success: true, Token: token, User: publicUser(user)})
}

// Me godoc
// @Summary Get the current user's profile
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Failure 401 {object} Response
// @Failure 500 {object} Response
// @Router /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	claims, ok := c.Get("user").(*auth.Claims)
	if !ok {
		return c.JSON(http.StatusUnauthorized, Response{Success: false, Message: "not authorized to access this route"})
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, Response{Success: false, Message: "not authorized to access this route"})
	}

	user, err := h.authService.CurrentUser(c.Request().Context(), userID)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, Response{Success: true, Data: publicUser(user)})
}

// Logout godoc
// @Summary Log out
// @Description Stateless: nothing is invalidated server-side, the client
// @Description simply discards its token.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Failure 401 {object} Response
// @Router /auth/logout [get]
func (h *AuthHandler) Logout(c echo.Context) error {
	return c.JSON(http.StatusOK, Response{Success: true, Message: "logged out successfully"})
}

// ForgotPassword godoc
// @Summary Request a password-reset email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Account email"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, Response{Success: false, Message: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, Response{Success: false, Errors: fieldErrors(err)})
	}

	if err := h.authService.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, Response{Success: true, Message: "email sent"})
}

// ResetPassword godoc
// @Summary Reset the password with a one-time secret
// @Tags auth
// @Accept json
// @Produce json
// @Param resetToken path string true "Reset secret from the emailed link"
// @Param request body ResetPasswordRequest true "New password"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 500 {object} Response
// @Router /auth/reset-password/{resetToken} [put]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, Response{Success: false, Message: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, Response{Success: false, Errors: fieldErrors(err)})
	}

	user, token, err := h.authService.ResetPassword(c.Request().Context(), c.Param("resetToken"), req.Password)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, Response{Success: true, Token: token, User: publicUser(user)})
}

func publicUser(u *model.User) *UserPayload {
	return &UserPayload{
		ID:       u.ID.String(),
		Username: u.Username,
		Email:    u.Email,
	}
}

// serviceError translates a domain error into the response envelope. Internal
// detail is only echoed back in development mode.
func (h *AuthHandler) serviceError(c echo.Context, err error) error {
	he := apperrors.MapErrorToHTTP(err)
	resp := Response{Success: false, Message: he.Message, Code: he.Code}
	if he.Code == "INTERNAL_ERROR" {
		log.Printf("internal error: %v", err)
		if h.devMode {
			resp.Detail = err.Error()
		}
	}
	return c.JSON(he.StatusCode, resp)
}

func fieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Message: "invalid request"}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "email is not valid"
	case "min", "max":
		if fe.Field() == "username" {
			return "username must be between 3 and 30 characters"
		}
		return "password must be at least 6 characters"
	case "eqfield":
		return "passwords do not match"
	default:
		return fe.Field() + " is invalid"
	}
}
