package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbd54566975/issuer-service/pkg/server/framework"
	svcframework "github.com/tbd54566975/issuer-service/pkg/service/framework"
)

type GetReadinessResponse struct {
	Status          svcframework.Status                       `json:"status"`
	ServiceStatuses map[svcframework.Type]svcframework.Status `json:"serviceStatuses"`
}

// Readiness runs a number of application specific checks to see if all the relied upon services are healthy.
// Responds with a 503 if any service is not ready.
func Readiness(services []svcframework.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		numServices := len(services)
		readyServices := 0
		statuses := make(map[svcframework.Type]svcframework.Status, numServices)
		for _, s := range services {
			status := s.Status()
			statuses[s.Type()] = status
			if status.IsReady() {
				readyServices++
			}
		}

		response := GetReadinessResponse{ServiceStatuses: statuses}
		if readyServices < numServices {
			response.Status = svcframework.Status{
				Status:  svcframework.StatusNotReady,
				Message: fmt.Sprintf("out of [%d] services, [%d] are ready", numServices, readyServices),
			}
			framework.Respond(c, response, http.StatusServiceUnavailable)
			return
		}
		response.Status = svcframework.Status{
			Status:  svcframework.StatusReady,
			Message: "all services ready",
		}
		framework.Respond(c, response, http.StatusOK)
	}
}
