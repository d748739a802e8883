package api

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")
	{
		api.GET("/health", health)
		api.GET("/qr", qrHandler)

		api.GET("/vehicles", h.listVehicles)
		api.POST("/vehicles", h.createVehicle)
		api.POST("/vehicles/import", h.importVehicles)
		api.GET("/vehicles/:code", h.getVehicle)
		api.PUT("/vehicles/:code", h.updateVehicle)
		api.DELETE("/vehicles/:code", h.deleteVehicle)
		api.GET("/vehicles/:code/label", h.vehicleLabel)

		api.POST("/labels", h.adHocLabel)
		api.POST("/scrape", h.scrapePage)

		api.GET("/settings", h.getSettings)
		api.PUT("/settings", h.putSettings)
	}

	if h.resolver != nil {
		h.resolver.Register(r)
	}
}
