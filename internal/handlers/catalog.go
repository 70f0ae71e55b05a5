package handlers

import (
	"net/http"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/catalog"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/utils"
	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	Catalog *catalog.Catalog
}

func NewCatalogHandler(c *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{Catalog: c}
}

type topicSummary struct {
	Topic    string `json:"topic"`
	Name     string `json:"name"`
	Problems int    `json:"problems"`
}

// Topics handles GET /catalog/topics
func (h *CatalogHandler) Topics(c *gin.Context) {
	counts := h.Catalog.TopicCounts()
	topics := make([]topicSummary, 0, len(counts))
	for _, t := range h.Catalog.Topics() {
		topics = append(topics, topicSummary{Topic: t, Name: utils.HumanizeTopic(t), Problems: counts[t]})
	}
	c.JSON(http.StatusOK, gin.H{
		"topics":         topics,
		"total_problems": h.Catalog.Len(),
	})
}
