package handler_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-kv-service/library/internal/errs"
	"github.com/Astemirdum/library-kv-service/library/internal/handler"
	service_mocks "github.com/Astemirdum/library-kv-service/library/internal/handler/mocks"
	"github.com/Astemirdum/library-kv-service/library/internal/model"
	"github.com/Astemirdum/library-kv-service/pkg/validate"
)

var stamp = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type response struct {
	expectedCode int
	expectedBody string
}

func serve(t *testing.T, route func(e *echo.Echo, h *handler.Handler), method, target, body string,
	mockBehavior func(r *service_mocks.MockLibraryService)) *httptest.ResponseRecorder {
	t.Helper()
	c := gomock.NewController(t)
	defer c.Finish()
	svc := service_mocks.NewMockLibraryService(c)
	mockBehavior(svc)

	h := handler.New(svc, zap.NewExample().Named("test"))
	e := echo.New()
	e.Validator = validate.NewCustomValidator()
	route(e, h)

	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	return w
}

func TestHandler_CreateBook(t *testing.T) {
	t.Parallel()
	route := func(e *echo.Echo, h *handler.Handler) { e.POST("/books", h.CreateBook) }
	req := model.CreateBook{Title: "T", Author: "A", CategoryID: "c1", AvailableCopies: 3}

	tests := []struct {
		name         string
		body         string
		mockBehavior func(r *service_mocks.MockLibraryService)
		response     response
	}{
		{
			name: "ok",
			body: `{"title":"T","author":"A","categoryId":"c1","available_copies":3}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().CreateBook(gomock.Any(), req).Return(model.Book{
					ID: "b1", Title: "T", Author: "A", CategoryID: "c1", AvailableCopies: 3,
					CreatedAt: stamp, UpdatedAt: stamp,
				}, nil)
			},
			response: response{
				expectedCode: http.StatusCreated,
				expectedBody: `{"id":"b1","title":"T","author":"A","categoryId":"c1","available_copies":3,"createdAt":"2026-03-01T10:00:00Z","updatedAt":"2026-03-01T10:00:00Z"}`,
			},
		},
		{
			name: "err. category not found",
			body: `{"title":"T","author":"A","categoryId":"c1","available_copies":3}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().CreateBook(gomock.Any(), req).
					Return(model.Book{}, fmt.Errorf("Category with ID c1 %w", errs.ErrNotFound))
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"Category with ID c1 not found"}`,
			},
		},
		{
			name: "err. creation failed",
			body: `{"title":"T","author":"A","categoryId":"c1","available_copies":3}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().CreateBook(gomock.Any(), req).
					Return(model.Book{}, errors.Wrap(errs.ErrCreationFailed, "failed to create book"))
			},
			response: response{
				expectedCode: http.StatusInternalServerError,
				expectedBody: `{"message":"failed to create book: creation failed"}`,
			},
		},
		{
			name:         "err. malformed body",
			body:         `{"title":`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"invalid request body"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := serve(t, route, http.MethodPost, "/books", tt.body, tt.mockBehavior)
			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_CreateBookValidation(t *testing.T) {
	t.Parallel()
	route := func(e *echo.Echo, h *handler.Handler) { e.POST("/books", h.CreateBook) }

	w := serve(t, route, http.MethodPost, "/books", `{"author":"A","categoryId":"c1"}`,
		func(r *service_mocks.MockLibraryService) {})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "'Title' failed on the 'required' tag")
}

func TestHandler_UpdateBook(t *testing.T) {
	t.Parallel()
	route := func(e *echo.Echo, h *handler.Handler) {
		e.PUT("/books/:id", h.UpdateBook)
		e.PATCH("/books/:id", h.UpdateBook)
	}

	tests := []struct {
		name         string
		method       string
		body         string
		mockBehavior func(r *service_mocks.MockLibraryService)
		response     response
	}{
		{
			name:   "ok. only given fields",
			method: http.MethodPatch,
			body:   `{"available_copies":0,"title":null}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().UpdateBook(gomock.Any(), "b1", model.BookPatch{AvailableCopies: model.Some(0)}).
					Return(model.Book{ID: "b1", Title: "T", Author: "A", CategoryID: "c1", CreatedAt: stamp, UpdatedAt: stamp}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"id":"b1","title":"T","author":"A","categoryId":"c1","available_copies":0,"createdAt":"2026-03-01T10:00:00Z","updatedAt":"2026-03-01T10:00:00Z"}`,
			},
		},
		{
			name:         "err. blank title",
			method:       http.MethodPut,
			body:         `{"title":"  "}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"title must not be empty"}`,
			},
		},
		{
			name:   "err. not found",
			method: http.MethodPut,
			body:   `{"title":"New"}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().UpdateBook(gomock.Any(), "b1", model.BookPatch{Title: model.Some("New")}).
					Return(model.Book{}, fmt.Errorf("Book with ID b1 %w", errs.ErrNotFound))
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"Book with ID b1 not found"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := serve(t, route, tt.method, "/books/b1", tt.body, tt.mockBehavior)
			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_Emprunts(t *testing.T) {
	t.Parallel()
	route := func(e *echo.Echo, h *handler.Handler) {
		e.POST("/emprunts", h.CreateEmprunt)
		e.GET("/emprunts", h.ListEmprunts)
		e.GET("/emprunts/:id", h.GetEmprunt)
		e.DELETE("/emprunts/:id", h.DeleteEmprunt)
	}
	loan := model.Emprunt{
		ID: "l1", UserID: "U1", BookID: "b1", LoanDate: "2026-03-02T10:00:00Z",
		CreatedAt: stamp, UpdatedAt: stamp,
	}
	loanJSON := `{"id":"l1","userId":"U1","bookId":"b1","loanDate":"2026-03-02T10:00:00Z","createdAt":"2026-03-01T10:00:00Z","updatedAt":"2026-03-01T10:00:00Z"}`

	tests := []struct {
		name         string
		method       string
		target       string
		body         string
		mockBehavior func(r *service_mocks.MockLibraryService)
		response     response
	}{
		{
			name:   "create. ok",
			method: http.MethodPost,
			target: "/emprunts",
			body:   `{"userId":"U1","bookId":"b1","loanDate":"2026-03-02T10:00:00Z"}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().CreateEmprunt(gomock.Any(), model.CreateEmprunt{UserID: "U1", BookID: "b1", LoanDate: "2026-03-02T10:00:00Z"}).
					Return(loan, nil)
			},
			response: response{expectedCode: http.StatusCreated, expectedBody: loanJSON},
		},
		{
			name:   "create. conflict",
			method: http.MethodPost,
			target: "/emprunts",
			body:   `{"userId":"U2","bookId":"b1","loanDate":"2026-03-02T10:00:00Z"}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().CreateEmprunt(gomock.Any(), gomock.Any()).
					Return(model.Emprunt{}, fmt.Errorf("book b1 is already on loan: %w", errs.ErrConflict))
			},
			response: response{expectedCode: http.StatusConflict, expectedBody: `{"message":"book b1 is already on loan: conflict"}`},
		},
		{
			name:   "create. window too long",
			method: http.MethodPost,
			target: "/emprunts",
			body:   `{"userId":"U1","bookId":"b1","loanDate":"2026-03-02","returnDate":"2026-03-30"}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().CreateEmprunt(gomock.Any(), gomock.Any()).
					Return(model.Emprunt{}, fmt.Errorf("return date must be within 15 days of the loan date: %w", errs.ErrInvalidRequest))
			},
			response: response{expectedCode: http.StatusBadRequest, expectedBody: `{"message":"return date must be within 15 days of the loan date: invalid request"}`},
		},
		{
			name:   "list by user",
			method: http.MethodGet,
			target: "/emprunts?userId=U1",
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().ListEmpruntsByUser(gomock.Any(), "U1").Return([]model.Emprunt{loan}, nil)
			},
			response: response{expectedCode: http.StatusOK, expectedBody: "[" + loanJSON + "]"},
		},
		{
			name:   "list all. empty",
			method: http.MethodGet,
			target: "/emprunts",
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().ListEmprunts(gomock.Any()).Return([]model.Emprunt{}, nil)
			},
			response: response{expectedCode: http.StatusOK, expectedBody: `[]`},
		},
		{
			name:   "get. not found",
			method: http.MethodGet,
			target: "/emprunts/nope",
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().GetEmprunt(gomock.Any(), "nope").Return(model.Emprunt{}, fmt.Errorf("Emprunt with ID nope %w", errs.ErrNotFound))
			},
			response: response{expectedCode: http.StatusNotFound, expectedBody: `{"message":"Emprunt with ID nope not found"}`},
		},
		{
			name:   "delete. ok",
			method: http.MethodDelete,
			target: "/emprunts/l1",
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().DeleteEmprunt(gomock.Any(), "l1").Return(model.Ack{Message: "Emprunt with ID l1 deleted successfully"}, nil)
			},
			response: response{expectedCode: http.StatusOK, expectedBody: `{"message":"Emprunt with ID l1 deleted successfully"}`},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := serve(t, route, tt.method, tt.target, tt.body, tt.mockBehavior)
			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_DeleteCategoryInUse(t *testing.T) {
	t.Parallel()
	route := func(e *echo.Echo, h *handler.Handler) { e.DELETE("/categories/:id", h.DeleteCategory) }

	w := serve(t, route, http.MethodDelete, "/categories/c1", "", func(r *service_mocks.MockLibraryService) {
		r.EXPECT().DeleteCategory(gomock.Any(), "c1").
			Return(model.Ack{}, fmt.Errorf("Category with ID c1 is referenced by 2 book(s): %w", errs.ErrConflict))
	})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestHandler_Router(t *testing.T) {
	t.Parallel()
	c := gomock.NewController(t)
	defer c.Finish()
	svc := service_mocks.NewMockLibraryService(c)
	svc.EXPECT().ListCategories(gomock.Any()).Return([]model.Category{{ID: "c1", Name: "Fiction", CreatedAt: stamp, UpdatedAt: stamp}}, nil)

	e := handler.New(svc, zap.NewNop(), handler.WithAllowOrigins("http://localhost:5173")).NewRouter()

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/manage/health", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "OK", w.Body.String())

	w = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/categories", http.NoBody)
	r.Header.Set(echo.HeaderOrigin, "http://localhost:5173")
	e.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "http://localhost:5173", w.Header().Get(echo.HeaderAccessControlAllowOrigin))
	require.NotEmpty(t, w.Header().Get(echo.HeaderXRequestID))
	require.Equal(t, `[{"id":"c1","name":"Fiction","createdAt":"2026-03-01T10:00:00Z","updatedAt":"2026-03-01T10:00:00Z"}]`,
		strings.Trim(w.Body.String(), "\n"))
}
