package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dealerqrcode/dealerqr/internal/vehicle"
)

const maxImportBytes = 5 << 20

type vehicleResponse struct {
	vehicle.Vehicle
	DynamicURL string `json:"dynamic_url"`
}

func (h *Handler) present(v vehicle.Vehicle) vehicleResponse {
	return vehicleResponse{Vehicle: v, DynamicURL: vehicle.DynamicURL(h.baseURL, v.QRCodeID)}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (h *Handler) listVehicles(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	opt := vehicle.FilterOptions{
		FreeWords: c.Query("q"),
		Dealers:   splitList(c.Query("dealer")),
		Stocks:    splitList(c.Query("stock")),
	}
	list, err := h.vehicles.List(c.Request.Context(), userID, opt)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]vehicleResponse, 0, len(list))
	for _, v := range list {
		out = append(out, h.present(v))
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "vehicles": out})
}

func (h *Handler) createVehicle(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	var in vehicle.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := h.vehicles.Create(c.Request.Context(), userID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.present(*v))
}

func (h *Handler) getVehicle(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	v, err := h.vehicles.Get(c.Request.Context(), userID, c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.present(*v))
}

func (h *Handler) updateVehicle(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	var in vehicle.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := h.vehicles.Update(c.Request.Context(), userID, c.Param("code"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.present(*v))
}

func (h *Handler) deleteVehicle(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	if err := h.vehicles.Delete(c.Request.Context(), userID, c.Param("code")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// importVehicles takes a CSV either as a multipart "file" field or as the raw body.
func (h *Handler) importVehicles(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)

	var src io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart upload needs a file field"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer f.Close()
		src = f
	}

	res, err := h.vehicles.ImportCSV(c.Request.Context(), userID, src)
	if err != nil {
		respondError(c, err)
		return
	}
	created := make([]vehicleResponse, 0, len(res.Created))
	for _, v := range res.Created {
		created = append(created, h.present(v))
	}
	c.JSON(http.StatusOK, gin.H{"created": created, "skipped": res.Skipped})
}
