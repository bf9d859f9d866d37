package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wenwu/saas-platform/esim-storefront/internal/repository"
)

// KVAdminHandler browses the raw persisted mirror
type KVAdminHandler struct {
	kv repository.KVStore
}

func NewKVAdminHandler(kv repository.KVStore) *KVAdminHandler {
	return &KVAdminHandler{kv: kv}
}

// sensitive field names masked in output
var sensitivePatterns = []string{"password", "hash", "secret", "api_key", "token", "private_key", "iccid"}

func isSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range sensitivePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// ListKeys returns stored keys with their value sizes
// GET /kv/keys?page=1&page_size=50&search=
func (h *KVAdminHandler) ListKeys(c *gin.Context) {
	ctx := c.Request.Context()

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	search := strings.ToLower(c.Query("search"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	keys, err := h.kv.Keys(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if search != "" {
		filtered := keys[:0]
		for _, k := range keys {
			if strings.Contains(strings.ToLower(k), search) {
				filtered = append(filtered, k)
			}
		}
		keys = filtered
	}

	total := len(keys)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	type keyInfo struct {
		Key  string `json:"key"`
		Size int    `json:"size"`
	}
	items := []keyInfo{}
	for _, k := range keys[start:end] {
		value, err := h.kv.Get(ctx, k)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		items = append(items, keyInfo{Key: k, Size: len(value)})
	}

	c.JSON(http.StatusOK, gin.H{
		"keys":      items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetKey returns one value with sensitive fields masked
// GET /kv/keys/:key
func (h *KVAdminHandler) GetKey(c *gin.Context) {
	key := c.Param("key")

	raw, err := h.kv.Get(c.Request.Context(), key)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("key %q not found", key)})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		// malformed records are shown as text so operators can see them
		c.JSON(http.StatusOK, gin.H{"key": key, "valid_json": false, "raw": string(raw)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key, "valid_json": true, "value": maskValue(value)})
}

// maskValue replaces sensitive object fields at any depth
func maskValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, inner := range val {
			if isSensitiveField(k) {
				val[k] = "***"
			} else {
				val[k] = maskValue(inner)
			}
		}
		return val
	case []interface{}:
		for i, inner := range val {
			val[i] = maskValue(inner)
		}
		return val
	default:
		return v
	}
}
