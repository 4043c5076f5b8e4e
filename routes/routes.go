package routes

import (
	"bloomify/handlers"

	"github.com/gin-gonic/gin"
)

// RegisterSchedulerRoutes wires the scheduler's HTTP surface: advance
// and walk-in booking, walk-in preview, break management, and the live
// queue view.
func RegisterSchedulerRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.POST("/appointments/advance", handlers.BookAdvanceHandler)
		api.POST("/appointments/walk-in", handlers.BookWalkInHandler)
		api.GET("/appointments/walk-in/preview", handlers.PreviewWalkInHandler)

		api.POST("/doctors/:id/breaks", handlers.AddBreakHandler)
		api.DELETE("/doctors/:id/breaks/:breakId", handlers.RemoveBreakHandler)

		api.GET("/queue", handlers.QueueHandler)
	}
}

// RegisterHealthRoute registers the health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, handlers.Health())
	})
}
