package gateway

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Backends struct {
	UserServiceURL  string
	OrderServiceURL string
}

// RegisterRoutes forwards /users* and /orders* unchanged to their backends.
// Every method is routed so that unsupported ones get the proxy's 405.
func RegisterRoutes(r gin.IRouter, proxy *Proxy, backends Backends) {
	r.GET("/", indexHandler)

	users := forward(proxy, backends.UserServiceURL)
	r.Any("/users", users)
	r.Any("/users/:id", users)

	orders := forward(proxy, backends.OrderServiceURL)
	r.Any("/orders", orders)
	r.Any("/orders/:id", orders)
}

func forward(proxy *Proxy, baseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if c.Request.Body != nil {
			b, err := io.ReadAll(c.Request.Body)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read request body"})
				return
			}
			if len(b) > 0 {
				body = b
			}
		}

		res := proxy.Forward(c.Request.Context(), baseURL, c.Request.URL.RequestURI(), c.Request.Method, body)
		c.Data(res.Status, res.ContentType, res.Body)
	}
}

func indexHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "API Gateway",
		"version": "1.0.0",
		"endpoints": gin.H{
			"users": gin.H{
				"GET /users":        "List all users",
				"GET /users/:id":    "Get user by ID",
				"POST /users":       "Create user",
				"DELETE /users/:id": "Delete user",
			},
			"orders": gin.H{
				"GET /orders":        "List all orders",
				"GET /orders/:id":    "Get order by ID",
				"POST /orders":       "Create order",
				"DELETE /orders/:id": "Delete order",
			},
		},
	})
}
