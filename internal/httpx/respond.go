package httpx

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/tienda-ecom/internal/address"
	"github.com/MikeMC777/tienda-ecom/internal/cart"
	"github.com/MikeMC777/tienda-ecom/internal/catalog"
	"github.com/MikeMC777/tienda-ecom/internal/order"
)

// Error writes the JSON error body for err, mapping domain errors to
// status codes so handlers across the services stay consistent. Unknown
// errors come back as a 500 with a generic message; the real cause goes
// to the request log, never to the client.
func Error(c *gin.Context, err error) {
	var se *catalog.StockError
	switch {
	case errors.As(err, &se):
		c.JSON(http.StatusConflict, gin.H{
			"error":      se.Error(),
			"product_id": se.ProductID,
			"available":  se.Available,
		})
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, address.ErrNotFound),
		errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, cart.ErrLineNotFound):
		c.JSON(http.StatusNotFound, catalog.HTTPError{Error: err.Error()})
	case errors.Is(err, cart.ErrInvalidIdentity),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, catalog.HTTPError{Error: err.Error()})
	case errors.Is(err, order.ErrInvalidState),
		errors.Is(err, catalog.ErrCategoryExists),
		errors.Is(err, cart.ErrCartExists):
		c.JSON(http.StatusConflict, catalog.HTTPError{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, catalog.HTTPError{Error: "something went wrong, please try again"})
	}
}
