package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"snapfixer/internal/catalog"
)

// RulesHandler exposes the document rule catalog read-only.
type RulesHandler struct {
	catalog *catalog.Catalog
}

func NewRulesHandler(c *catalog.Catalog) *RulesHandler {
	return &RulesHandler{catalog: c}
}

func (h *RulesHandler) ListRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.catalog.Entries()})
}

func (h *RulesHandler) GetRule(c *gin.Context) {
	entry, err := h.catalog.Lookup(c.Param("slug"))
	if err != nil {
		NotFound(c, "rule not found")
		return
	}
	width, height := entry.Rule().TargetPixels()
	c.JSON(http.StatusOK, gin.H{
		"rule":          entry,
		"target_width":  width,
		"target_height": height,
	})
}
