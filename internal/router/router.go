package router

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"taskmanager/internal/auth"
	"taskmanager/internal/authz"
	"taskmanager/internal/config"
	"taskmanager/internal/errors"
	"taskmanager/internal/handler"
	"taskmanager/internal/model"
	"taskmanager/internal/service"
)

const streamPath = "/api/notifications/stream"

// Options carries everything Register needs to wire the API.
type Options struct {
	Config     *config.Config
	Logger     *zap.Logger
	JWT        *auth.JWTService
	TokenStore auth.TokenStoreInterface
	Users      service.UserService

	Auth         *handler.AuthHandler
	User         *handler.UserHandler
	Task         *handler.TaskHandler
	Notification *handler.NotificationHandler
	Analytics    *handler.AnalyticsHandler
}

// Register wires routes and middleware.
func Register(e *echo.Echo, opts Options) {
	log := opts.Logger

	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}
	e.HTTPErrorHandler = ErrorHandler(log, opts.Config.Debug())

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("request_id", v.RequestID),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			log.Info("request", fields...)
			return nil
		},
	}))
	if timeout := opts.Config.RequestTimeout; timeout > 0 {
		e.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
			Skipper: func(c echo.Context) bool { return c.Path() == streamPath },
			Timeout: timeout,
		}))
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/users/register", opts.Auth.Register)
	api.POST("/users/login", opts.Auth.Login)
	api.POST("/users/refresh", opts.Auth.Refresh)

	// Secured routes (require JWT authentication)
	secured := api.Group("", JWT(opts.JWT, opts.TokenStore), Identity(opts.Users))

	secured.POST("/users/logout", opts.Auth.Logout)
	secured.GET("/users/profile", opts.User.GetProfile)
	secured.PUT("/users/profile", opts.User.UpdateProfile)

	adminOnly := RequireRole(model.RoleAdmin)
	secured.GET("/users/all", opts.User.ListUsers, adminOnly)
	secured.PUT("/users/:userId/role", opts.User.UpdateRole, adminOnly)
	secured.PUT("/users/:userId/manager", opts.User.AssignManager, adminOnly)

	secured.POST("/tasks", opts.Task.Create)
	secured.GET("/tasks", opts.Task.List)
	secured.GET("/tasks/assigned", opts.Task.ListAssigned)
	secured.GET("/tasks/created", opts.Task.ListCreated)
	secured.GET("/tasks/overdue", opts.Task.ListOverdue)
	secured.GET("/tasks/:id", opts.Task.Get)
	secured.PUT("/tasks/:id", opts.Task.Update)
	secured.DELETE("/tasks/:id", opts.Task.Delete)
	secured.PUT("/tasks/:id/notifications/:notificationId/read", opts.Notification.MarkRead)

	secured.GET("/notifications", opts.Notification.List)
	secured.GET("/notifications/stream", opts.Notification.Stream)

	secured.GET("/analytics", opts.Analytics.Get)
}

// JWT validates the bearer token and rejects refresh tokens and revoked
// access tokens. The parsed claims are stored under handler.ClaimsKey.
func JWT(jwtService *auth.JWTService, tokens auth.TokenStoreInterface) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  handler.ClaimsKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			claims, err := jwtService.ValidateAccessToken(token)
			if err != nil {
				return nil, err
			}
			revoked, err := tokens.IsAccessTokenBlacklisted(c.Request().Context(), claims.ID)
			if err != nil {
				return nil, err
			}
			if revoked {
				return nil, errors.ErrInvalidToken
			}
			return claims, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return errors.ErrInvalidToken
		},
	})
}

// Identity loads the authenticated user, so role changes apply immediately.
func Identity(users service.UserService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := c.Get(handler.ClaimsKey).(*auth.Claims)
			if !ok {
				return errors.ErrInvalidToken
			}
			id, err := claims.UserUUID()
			if err != nil {
				return errors.ErrInvalidToken
			}
			user, err := users.GetUser(c.Request().Context(), id)
			if err != nil {
				if errors.KindOf(err) == errors.KindNotFound {
					return errors.ErrInvalidToken
				}
				return err
			}
			c.Set(handler.UserKey, user)
			return next(c)
		}
	}
}

// RequireRole rejects callers whose role does not satisfy required.
func RequireRole(required model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, _ := c.Get(handler.UserKey).(*model.User)
			if err := authz.Require(user, required); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// ErrorHandler renders every error as an ErrorResponse.
func ErrorHandler(log *zap.Logger, debug bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var httpErr *errors.HTTPError
		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			msg := http.StatusText(echoErr.Code)
			if m, ok := echoErr.Message.(string); ok && m != "" {
				msg = m
			}
			httpErr = errors.NewHTTPError(echoErr.Code, strings.ToLower(msg), string(errors.KindForStatus(echoErr.Code)))
		} else {
			httpErr = errors.MapErrorToHTTP(err, debug)
		}

		if httpErr.StatusCode >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
			)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(httpErr.StatusCode)
			return
		}
		_ = c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return errors.Validation(strings.ToLower(fe.Field()) + " failed " + fe.Tag() + " validation")
		}
		return errors.Validation(err.Error())
	}
	return nil
}
