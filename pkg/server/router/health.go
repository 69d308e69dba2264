package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbd54566975/issuer-service/pkg/server/framework"
)

type GetHealthCheckResponse struct {
	// Status is always equal to `OK`.
	Status string `json:"status"`
}

const (
	HealthOK string = "OK"
)

// Health is a simple handler that always responds with a 200 OK
func Health(c *gin.Context) {
	framework.Respond(c, GetHealthCheckResponse{Status: HealthOK}, http.StatusOK)
}
