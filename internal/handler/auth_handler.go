package handler

import (
	"net/http"

	"taskhub/internal/middleware"
	"taskhub/internal/service"
	"taskhub/pkg/response"

	"github.com/gin-gonic/gin"
)

// Guards are the route middlewares handlers attach to their groups.
type Guards struct {
	// Auth requires a valid access token.
	Auth gin.HandlerFunc
	// Throttle limits unauthenticated credential endpoints.
	Throttle gin.HandlerFunc
	// Roles requires one of the given role names.
	Roles func(roles ...string) gin.HandlerFunc
	// Permissions requires one of the given permissions.
	Permissions func(perms ...string) gin.HandlerFunc
}

type AuthHandler struct {
	authService service.AuthService
	cookies     middleware.CookieOptions
}

func NewAuthHandler(authService service.AuthService, cookies middleware.CookieOptions) *AuthHandler {
	return &AuthHandler{authService: authService, cookies: cookies}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup, guards Guards) {
	router.POST("/register", guards.Throttle, h.Register)
	router.POST("/login", guards.Throttle, h.Login)
	router.POST("/logout", guards.Auth, h.Logout)
	router.GET("/user", guards.Auth, h.CurrentUser)
}

// Register creates an account with the User role and signs it in
// @Summary      Register
// @Description  Creates a user account, assigns the User role and returns an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      service.RegisterRequest  true  "Registration details"
// @Success      201      {object}  response.Response{data=service.AuthResponse}
// @Failure      422      {object}  response.Response
// @Router       /api/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.SetTokenCookies(c, h.cookies, res.Token, res.ExpiresAt)
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// Login authenticates a user
// @Summary      Login user
// @Description  Verifies credentials and returns the user with role, permissions and an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      service.LoginRequest  true  "Login credentials"
// @Success      200      {object}  response.Response{data=service.AuthResponse}
// @Failure      401      {object}  response.Response
// @Router       /api/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.SetTokenCookies(c, h.cookies, res.Token, res.ExpiresAt)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Logout revokes the token used for this request
// @Summary      Logout
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if token := middleware.CurrentToken(c); token != nil {
		if err := h.authService.Logout(c.Request.Context(), token.ID); err != nil {
			respondError(c, err)
			return
		}
	}

	middleware.ClearTokenCookies(c, h.cookies)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Logged out successfully"}))
}

// CurrentUser returns the caller's profile with role and permissions
// @Summary      Get current user
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.AuthUser}
// @Failure      401  {object}  response.Response
// @Router       /api/user [get]
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.authService.Profile(c.Request.Context(), middleware.CurrentUser(c))))
}
