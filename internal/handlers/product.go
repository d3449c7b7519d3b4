package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/andriansyah/digistore/internal/apperr"
	"github.com/andriansyah/digistore/internal/events"
	"github.com/andriansyah/digistore/internal/models"
	"github.com/andriansyah/digistore/internal/repo"
	"github.com/andriansyah/digistore/internal/search"
	"github.com/andriansyah/digistore/internal/util"
	"github.com/labstack/echo/v4"
)

type ProductHandler struct {
	Products *repo.ProductRepo
	Search   *search.Index
	Producer *events.Producer
}

func (h *ProductHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	key, _ := event["product_id"].(string)
	if err := h.Producer.PublishEvent(ctx, events.TopicProductEvents, key, event); err != nil {
		c.Logger().Errorf("event publish error: %v", err)
	}
}

// GetProducts serves the catalog listing: ?top= for the sales ranking,
// ?search= for full-text search, otherwise a filtered page. At most one
// equality filter applies; category wins over show.
func (h *ProductHandler) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()

	limit := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	page := parseIntDefault(c.QueryParam("page"), 1)
	offset, limit := util.Calculate(page, limit)

	if c.QueryParam("top") != "" {
		products, err := h.Products.TopProducts(ctx, limit)
		if err != nil {
			return err
		}
		return respondOK(c, products)
	}

	if q := c.QueryParam("search"); q != "" {
		total, products, ok, err := h.Search.Search(ctx, q, offset, limit)
		if err != nil {
			return err
		}
		if ok {
			return respondOK(c, echo.Map{"total": total, "products": products})
		}
		// No search cluster configured: filter the visible catalog in
		// memory instead.
		show := true
		all, err := h.Products.List(ctx, repo.ListFilter{Show: &show}, 0, 0)
		if err != nil {
			return err
		}
		matched := make([]models.Product, 0, len(all))
		for i := range all {
			if search.MatchesLike(&all[i], q) {
				matched = append(matched, all[i])
			}
		}
		return respondOK(c, echo.Map{"total": len(matched), "products": matched})
	}

	filter := repo.ListFilter{}
	if category := c.QueryParam("category"); category != "" {
		filter.Category = category
	} else if c.QueryParam("show") != "" {
		show := true
		filter.Show = &show
	}

	products, err := h.Products.List(ctx, filter, limit, offset)
	if err != nil {
		return err
	}
	return respondOK(c, products)
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	product, err := h.Products.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respondOK(c, product)
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var product models.Product
	if err := c.Bind(&product); err != nil {
		return apperr.Validation("invalid request body")
	}
	product.Sales = 0
	if product.Rating == 0 {
		product.Rating = 5
	}

	if err := h.Products.Create(c.Request().Context(), &product); err != nil {
		return err
	}

	h.Search.IndexProduct(c.Request().Context(), &product)
	h.publish(c, map[string]any{
		"type":       "product_created",
		"product_id": product.ID,
		"name":       product.Name,
	})

	return respond(c, http.StatusCreated, "product created", product)
}

func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	id := c.Param("id")

	var updates map[string]any
	if err := c.Bind(&updates); err != nil {
		return apperr.Validation("invalid request body")
	}

	if err := h.Products.Update(c.Request().Context(), id, updates); err != nil {
		return err
	}

	product, err := h.Products.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}

	h.Search.IndexProduct(c.Request().Context(), product)
	h.publish(c, map[string]any{
		"type":       "product_updated",
		"product_id": product.ID,
		"name":       product.Name,
	})

	return respond(c, http.StatusOK, "product updated", product)
}

// IncrementSales is the explicit counter bump used by the payment
// confirmation path, kept as its own endpoint so the increment stays a
// single atomic server-side update.
func (h *ProductHandler) IncrementSales(c echo.Context) error {
	id := c.Param("id")

	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}

	if err := h.Products.IncrementSales(c.Request().Context(), id, req.Amount); err != nil {
		return err
	}

	h.publish(c, map[string]any{
		"type":       "product_sales_incremented",
		"product_id": id,
		"amount":     req.Amount,
	})

	return respond(c, http.StatusOK, "sales incremented", nil)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id := c.Param("id")

	if err := h.Products.Delete(c.Request().Context(), id); err != nil {
		return err
	}

	h.Search.DeleteProduct(c.Request().Context(), id)
	h.publish(c, map[string]any{
		"type":       "product_deleted",
		"product_id": id,
	})

	return respond(c, http.StatusOK, "product deleted", nil)
}
