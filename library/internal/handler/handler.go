package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-kv-service/library/internal/errs"
	md "github.com/Astemirdum/library-kv-service/pkg/middleware"
	"github.com/Astemirdum/library-kv-service/pkg/validate"
	_ "github.com/Astemirdum/library-kv-service/swagger"
)

type Handler struct {
	librarySvc   LibraryService
	allowOrigins []string
	log          *zap.Logger
}

type Option func(*Handler)

// WithAllowOrigins sets the CORS origins; the default is http://localhost:5173.
func WithAllowOrigins(origins ...string) Option {
	return func(h *Handler) {
		if len(origins) > 0 {
			h.allowOrigins = origins
		}
	}
}

func New(librarySvc LibraryService, log *zap.Logger, opts ...Option) *Handler {
	h := &Handler{
		librarySvc:   librarySvc,
		allowOrigins: []string{"http://localhost:5173"},
		log:          log,
	}
	for _, op := range opts {
		op(h)
	}
	return h
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     h.allowOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)
	base.GET("/swagger/*", echoSwagger.WrapHandler)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
	)

	api.POST("/categories", h.CreateCategory)
	api.GET("/categories", h.ListCategories)
	api.GET("/categories/:id", h.GetCategory)
	api.PUT("/categories/:id", h.UpdateCategory)
	api.PATCH("/categories/:id", h.UpdateCategory)
	api.DELETE("/categories/:id", h.DeleteCategory)

	api.POST("/books", h.CreateBook)
	api.GET("/books", h.ListBooks)
	api.GET("/books/:id", h.GetBook)
	api.PUT("/books/:id", h.UpdateBook)
	api.PATCH("/books/:id", h.UpdateBook)
	api.DELETE("/books/:id", h.DeleteBook)

	api.POST("/emprunts", h.CreateEmprunt)
	api.GET("/emprunts", h.ListEmprunts)
	api.GET("/emprunts/:id", h.GetEmprunt)
	api.PUT("/emprunts/:id", h.UpdateEmprunt)
	api.PATCH("/emprunts/:id", h.UpdateEmprunt)
	api.DELETE("/emprunts/:id", h.DeleteEmprunt)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// bind decodes and validates the request body.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
