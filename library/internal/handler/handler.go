package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"github.com/Astemirdum/book-library/library/internal/errs"
	"github.com/Astemirdum/book-library/library/internal/model"
	"github.com/Astemirdum/book-library/pkg/auth"
	"github.com/Astemirdum/book-library/pkg/jsonx"
	md "github.com/Astemirdum/book-library/pkg/middleware"
	"github.com/Astemirdum/book-library/pkg/validate"

	_ "github.com/Astemirdum/book-library/swagger"
)

type Handler struct {
	librarySvc LibraryService
	verifier   md.TokenVerifier
	log        *zap.Logger
}

func New(librarySvc LibraryService, verifier md.TokenVerifier, log *zap.Logger) *Handler {
	return &Handler{
		librarySvc: librarySvc,
		verifier:   verifier,
		log:        log.Named("handler"),
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))
	e.Validator = validate.NewCustomValidator()
	e.JSONSerializer = jsonx.Serializer{}

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/", h.Root)
	base.GET("/manage/health", h.Health)
	base.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("",
		middleware.RequestID(),
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		md.NewRateLimiter(apiRPS),
	)
	api.POST("/register", h.Register)
	api.POST("/token", h.Token)
	api.GET("/books", h.GetBooks)
	api.GET("/books/search", h.SearchBooks)

	jwt := md.JwtAuthentication(h.verifier)
	api.POST("/books/:isbn", h.AddBook, jwt)
	api.DELETE("/books/:isbn", h.RemoveBook, jwt, md.RequireRole(auth.RoleLibrarian))
	api.POST("/books/issue/:isbn", h.IssueBook, jwt)
	api.POST("/books/return/:transaction_id", h.ReturnBook, jwt)
	api.GET("/users/me/books", h.MyBooks, jwt)

	return e
}

func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, model.Message{Message: "Book Library API is Live!"})
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Register godoc
// @Summary  register a new member
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    user body model.UserCreateRequest true "credentials"
// @Success  201 {object} model.User
// @Failure  400 {object} model.Message
// @Router   /register [post]
func (h *Handler) Register(c echo.Context) error {
	var req model.UserCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	user, err := h.librarySvc.Register(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, user)
}

// Token godoc
// @Summary  issue an access token
// @Tags     auth
// @Accept   x-www-form-urlencoded,json
// @Produce  json
// @Param    username formData string true "username"
// @Param    password formData string true "password"
// @Success  200 {object} model.AuthResponse
// @Failure  401 {object} model.Message
// @Router   /token [post]
func (h *Handler) Token(c echo.Context) error {
	var req model.AuthRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.librarySvc.Authenticate(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// AddBook godoc
// @Summary  add a book by ISBN
// @Tags     books
// @Produce  json
// @Security BearerAuth
// @Param    isbn path string true "ISBN-10 or ISBN-13"
// @Success  200 {object} model.BookView
// @Failure  400,401,404,503 {object} model.Message
// @Router   /books/{isbn} [post]
func (h *Handler) AddBook(c echo.Context) error {
	isbn := c.Param("isbn")
	if !validate.IsISBN(isbn) {
		return echo.NewHTTPError(http.StatusBadRequest, "isbn is invalid")
	}
	book, err := h.librarySvc.AddBook(c.Request().Context(), isbn)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, book.View())
}

// GetBooks godoc
// @Summary  list books
// @Tags     books
// @Produce  json
// @Param    page query int false "page, starting at 1"
// @Param    size query int false "page size"
// @Success  200 {array} model.BookView
// @Router   /books [get]
func (h *Handler) GetBooks(c echo.Context) error {
	var (
		err  error
		page int
		size int
	)
	if pageParam := c.QueryParam("page"); pageParam != "" {
		if page, err = strconv.Atoi(pageParam); err != nil || page < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "page is invalid")
		}
	}
	if sizeParam := c.QueryParam("size"); sizeParam != "" {
		if size, err = strconv.Atoi(sizeParam); err != nil || size < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "size is invalid")
		}
	}
	switch {
	case page > 0 && size == 0:
		size = defaultPageSize
	case size > 0 && page == 0:
		page = 1
	}

	books, err := h.librarySvc.ListBooks(c.Request().Context(), page, size)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, model.BookViews(books))
}

const defaultPageSize = 100

// SearchBooks godoc
// @Summary  search books by title or author
// @Tags     books
// @Produce  json
// @Param    q query string true "substring, case-insensitive"
// @Success  200 {array} model.BookView
// @Failure  400 {object} model.Message
// @Router   /books/search [get]
func (h *Handler) SearchBooks(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	books, err := h.librarySvc.SearchBooks(c.Request().Context(), q)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, model.BookViews(books))
}

// RemoveBook godoc
// @Summary  remove a book
// @Tags     books
// @Produce  json
// @Security BearerAuth
// @Param    isbn path string true "ISBN"
// @Success  200 {object} model.Message
// @Failure  400,401,403,404 {object} model.Message
// @Router   /books/{isbn} [delete]
func (h *Handler) RemoveBook(c echo.Context) error {
	if err := h.librarySvc.RemoveBook(c.Request().Context(), c.Param("isbn")); err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, model.Message{Message: "Book removed successfully"})
}

// IssueBook godoc
// @Summary  borrow a book
// @Tags     transactions
// @Produce  json
// @Security BearerAuth
// @Param    isbn path string true "ISBN or book id"
// @Success  200 {object} model.Transaction
// @Failure  400,401,404 {object} model.Message
// @Router   /books/issue/{isbn} [post]
func (h *Handler) IssueBook(c echo.Context) error {
	ctx := c.Request().Context()
	username, err := auth.GetUserName(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	t, err := h.librarySvc.IssueBook(ctx, username, c.Param("isbn"))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

// ReturnBook godoc
// @Summary  return a borrowed book
// @Tags     transactions
// @Produce  json
// @Security BearerAuth
// @Param    transaction_id path int true "transaction id"
// @Success  200 {object} model.Message
// @Failure  400,401,403,404 {object} model.Message
// @Router   /books/return/{transaction_id} [post]
func (h *Handler) ReturnBook(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("transaction_id"))
	if err != nil || id < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "transaction_id is invalid")
	}
	username, err := auth.GetUserName(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	role, err := auth.GetUserRole(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	if _, err := h.librarySvc.ReturnBook(ctx, username, role, id); err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, model.Message{Message: "Book returned successfully"})
}

// MyBooks godoc
// @Summary  list books the caller currently holds
// @Tags     transactions
// @Produce  json
// @Security BearerAuth
// @Success  200 {array} model.ActiveTransaction
// @Failure  401 {object} model.Message
// @Router   /users/me/books [get]
func (h *Handler) MyBooks(c echo.Context) error {
	ctx := c.Request().Context()
	username, err := auth.GetUserName(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	active, err := h.librarySvc.MyBooks(ctx, username)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, active)
}

func (h *Handler) httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, errs.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "Operation not permitted")
	case errors.Is(err, errs.ErrUpstreamUnavailable):
		h.log.Warn("upstream unavailable", zap.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Book metadata service unavailable")
	default:
		h.log.Error("internal", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
