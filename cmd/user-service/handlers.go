package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeMC777/tienda-ecom/internal/httpx"
	"github.com/MikeMC777/tienda-ecom/internal/user"
)

func registerRoutes(r *gin.Engine, svc *user.Service, jwtSecret string) {
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/auth/register", registerHandler(svc))
	r.POST("/auth/login", loginHandler(svc))

	me := r.Group("/users/me", httpx.RequireAuth(jwtSecret))
	me.GET("", getMeHandler(svc))
	me.PUT("", updateMeHandler(svc))
	me.DELETE("", deleteMeHandler(svc))
}

func registerHandler(svc *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in user.RegisterRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		out, err := svc.Register(c.Request.Context(), in)
		if errors.Is(err, user.ErrAlreadyExist) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}

func loginHandler(svc *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in user.LoginRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		out, err := svc.Login(c.Request.Context(), in)
		if errors.Is(err, user.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func getMeHandler(svc *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := svc.Get(c.Request.Context(), httpx.UserID(c))
		if errors.Is(err, user.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

func updateMeHandler(svc *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		u, err := svc.UpdateProfile(c.Request.Context(), httpx.UserID(c), in.Username, in.Email, in.Password)
		if errors.Is(err, user.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

func deleteMeHandler(svc *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := svc.Delete(c.Request.Context(), httpx.UserID(c))
		if errors.Is(err, user.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}
