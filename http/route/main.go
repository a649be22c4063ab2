package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-ingest-pipeline/http/controller"
	middlewares "github.com/tnqbao/gau-ingest-pipeline/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}
	r.Use(middles.CORSMiddleware)

	apiRoutes := r.Group("/api/v1")
	{
		apiRoutes.GET("/health", ctrl.Health)

		jobRoutes := apiRoutes.Group("/")
		jobRoutes.Use(middles.AuthMiddleware)
		{
			jobRoutes.POST("/ingest", ctrl.Ingest)
			jobRoutes.POST("/ingest/file", ctrl.IngestFile)
			jobRoutes.GET("/status/:job_id", ctrl.GetJobStatus)
			jobRoutes.POST("/cancel/:job_id", ctrl.CancelJob)
		}
	}
	return r
}
