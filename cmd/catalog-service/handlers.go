package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/tienda-ecom/internal/catalog"
	"github.com/MikeMC777/tienda-ecom/internal/httpx"
	"github.com/MikeMC777/tienda-ecom/internal/review"
)

func registerRoutes(r *gin.Engine, repo catalog.Repository, reviews review.Repository, jwtSecret string) {
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/products", listProductsHandler(repo))
	r.GET("/products/:id", getProductHandler(repo))
	r.GET("/products/:id/reviews", listReviewsHandler(reviews))
	r.GET("/categories", listCategoriesHandler(repo))

	auth := r.Group("", httpx.RequireAuth(jwtSecret))
	auth.POST("/products", createProductHandler(repo))
	auth.PUT("/products/:id", updateProductHandler(repo))
	auth.DELETE("/products/:id", deleteProductHandler(repo))
	auth.POST("/categories", createCategoryHandler(repo))
	auth.DELETE("/categories/:id", deleteCategoryHandler(repo))
	auth.POST("/products/:id/reviews", createReviewHandler(reviews))
	auth.DELETE("/reviews/:id", deleteReviewHandler(reviews))
}

func intQuery(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

// validPrice accepts a non-negative decimal string.
func validPrice(s string) bool {
	d, err := decimal.NewFromString(s)
	return err == nil && !d.IsNegative()
}

func listProductsHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := catalog.Query{
			Q:      c.Query("q"),
			Status: c.Query("status"),
			Limit:  intQuery(c, "limit", 20),
			Offset: intQuery(c, "offset", 0),
		}
		items, err := repo.List(c.Request.Context(), q)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if items == nil {
			items = []catalog.Product{}
		}
		c.JSON(http.StatusOK, catalog.ListResponse{Q: q.Q, Limit: q.Limit, Offset: q.Offset, Items: items})
	}
}

func getProductHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func createProductHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in catalog.CreateProductRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if in.Name == "" || !validPrice(in.Price) || in.Stock < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name, non-negative price and stock are required"})
			return
		}
		if in.DiscountPrice != nil {
			if !validPrice(*in.DiscountPrice) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid discount_price"})
				return
			}
			dp, _ := decimal.NewFromString(*in.DiscountPrice)
			price, _ := decimal.NewFromString(in.Price)
			if dp.GreaterThanOrEqual(price) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "discount_price must be lower than price"})
				return
			}
		}
		status := in.Status
		if status == "" {
			status = string(catalog.StatusActive)
		}
		p := &catalog.Product{
			ID:            uuid.NewString(),
			Name:          in.Name,
			Description:   in.Description,
			Price:         in.Price,
			DiscountPrice: in.DiscountPrice,
			Stock:         in.Stock,
			Status:        catalog.Status(status),
		}
		if err := repo.Create(c.Request.Context(), p); err != nil {
			httpx.Error(c, err)
			return
		}
		if len(in.CategoryIDs) > 0 {
			if err := repo.SetCategories(c.Request.Context(), p.ID, in.CategoryIDs); err != nil {
				httpx.Error(c, err)
				return
			}
		}
		c.JSON(http.StatusCreated, p)
	}
}

func updateProductHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in catalog.UpdateProductRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cur, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if in.Name != "" {
			cur.Name = in.Name
		}
		if in.Description != "" {
			cur.Description = in.Description
		}
		if in.Price != "" {
			if !validPrice(in.Price) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
				return
			}
			cur.Price = in.Price
		}
		if in.DiscountPrice != nil {
			if *in.DiscountPrice == "" {
				cur.DiscountPrice = nil // clear the sale
			} else {
				if !validPrice(*in.DiscountPrice) {
					c.JSON(http.StatusBadRequest, gin.H{"error": "invalid discount_price"})
					return
				}
				cur.DiscountPrice = in.DiscountPrice
			}
		}
		if cur.DiscountPrice != nil {
			dp, _ := decimal.NewFromString(*cur.DiscountPrice)
			price, _ := decimal.NewFromString(cur.Price)
			if dp.GreaterThanOrEqual(price) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "discount_price must be lower than price"})
				return
			}
		}
		if in.Stock != nil {
			if *in.Stock < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "stock must be non-negative"})
				return
			}
			cur.Stock = *in.Stock
		}
		if in.Status != "" {
			cur.Status = catalog.Status(in.Status)
		}
		if err := repo.Update(c.Request.Context(), cur); err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, cur)
	}
}

func deleteProductHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := repo.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}

func listCategoriesHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		cats, err := repo.ListCategories(c.Request.Context())
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if cats == nil {
			cats = []catalog.Category{}
		}
		c.JSON(http.StatusOK, cats)
	}
}

func createCategoryHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cat := &catalog.Category{ID: uuid.NewString(), Name: in.Name}
		if err := repo.CreateCategory(c.Request.Context(), cat); err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusCreated, cat)
	}
}

func deleteCategoryHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := repo.DeleteCategory(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "category not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}

func createReviewHandler(reviews review.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in review.CreateRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rv := &review.Review{
			ID:        uuid.NewString(),
			ProductID: c.Param("id"),
			UserID:    httpx.UserID(c),
			Rating:    in.Rating,
			Comment:   in.Comment,
		}
		err := reviews.Create(c.Request.Context(), rv)
		if errors.Is(err, review.ErrAlreadyReviewed) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, review.ErrInvalidRating) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusCreated, rv)
	}
}

func listReviewsHandler(reviews review.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := reviews.ListByProduct(c.Request.Context(), c.Param("id"),
			intQuery(c, "limit", 20), intQuery(c, "offset", 0))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func deleteReviewHandler(reviews review.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := reviews.Delete(c.Request.Context(), c.Param("id"), httpx.UserID(c))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}
