package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Astemirdum/library-kv-service/library/internal/model"
)

func (h *Handler) CreateCategory(c echo.Context) error {
	var req model.CreateCategory
	if err := bind(c, &req); err != nil {
		return err
	}
	category, err := h.librarySvc.CreateCategory(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, category)
}

func (h *Handler) ListCategories(c echo.Context) error {
	categories, err := h.librarySvc.ListCategories(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, categories)
}

func (h *Handler) GetCategory(c echo.Context) error {
	category, err := h.librarySvc.GetCategory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, category)
}

func (h *Handler) UpdateCategory(c echo.Context) error {
	var patch model.CategoryPatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	category, err := h.librarySvc.UpdateCategory(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, category)
}

func (h *Handler) DeleteCategory(c echo.Context) error {
	ack, err := h.librarySvc.DeleteCategory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ack)
}
