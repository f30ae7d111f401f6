package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Astemirdum/library-kv-service/library/internal/model"
)

func (h *Handler) CreateEmprunt(c echo.Context) error {
	var req model.CreateEmprunt
	if err := bind(c, &req); err != nil {
		return err
	}
	emprunt, err := h.librarySvc.CreateEmprunt(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, emprunt)
}

// ListEmprunts lists every loan, or the loans of one user when ?userId= is set.
func (h *Handler) ListEmprunts(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		emprunts []model.Emprunt
		err      error
	)
	if userID := c.QueryParam("userId"); userID != "" {
		emprunts, err = h.librarySvc.ListEmpruntsByUser(ctx, userID)
	} else {
		emprunts, err = h.librarySvc.ListEmprunts(ctx)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, emprunts)
}

func (h *Handler) GetEmprunt(c echo.Context) error {
	emprunt, err := h.librarySvc.GetEmprunt(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, emprunt)
}

func (h *Handler) UpdateEmprunt(c echo.Context) error {
	var patch model.EmpruntPatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	emprunt, err := h.librarySvc.UpdateEmprunt(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, emprunt)
}

func (h *Handler) DeleteEmprunt(c echo.Context) error {
	ack, err := h.librarySvc.DeleteEmprunt(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ack)
}
