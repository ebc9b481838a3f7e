package api

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"snapfixer/internal/api/middleware"
	"snapfixer/internal/catalog"
	"snapfixer/internal/database"
	"snapfixer/internal/jobs"
)

// PhotoService is satisfied by *jobs.Service.
type PhotoService interface {
	Submit(ctx context.Context, sub jobs.Submission) (*jobs.Receipt, error)
	Poll(ctx context.Context, id string) (*jobs.PollResult, error)
}

// RuleCatalog resolves rule slugs; *catalog.Catalog satisfies it.
type RuleCatalog interface {
	Lookup(slug string) (catalog.Entry, error)
}

// RateLimit caps accepted uploads per client IP within Window. Limit <= 0 disables it.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

// PhotoHandler 负责照片上传与状态查询。
type PhotoHandler struct {
	service PhotoService
	rules   RuleCatalog
	counter redisRateCounter
	policy  UploadPolicy
	limit   RateLimit
}

// NewPhotoHandler 返回 PhotoHandler 实例；counter 为 nil 时不限流。
func NewPhotoHandler(service PhotoService, rules RuleCatalog, counter redisRateCounter, policy UploadPolicy, limit RateLimit) *PhotoHandler {
	return &PhotoHandler{
		service: service,
		rules:   rules,
		counter: counter,
		policy:  policy,
		limit:   limit,
	}
}

// multipartOverhead leaves room for form boundaries and the small text fields.
const multipartOverhead = 1 << 20

// UploadPhoto validates an upload and submits it as a processing job.
func (h *PhotoHandler) UploadPhoto(c *gin.Context) {
	log := middleware.LoggerFromContext(c)
	ctx := c.Request.Context()

	entry, err := h.rules.Lookup(c.Param("slug"))
	if err != nil {
		Reject(c, http.StatusNotFound, "invalid_tool", "unknown document type")
		return
	}

	rateKey := "photo_upload_rate:" + c.ClientIP()
	if h.counter != nil && h.limit.Limit > 0 {
		count, err := currentCount(ctx, h.counter, rateKey)
		if err != nil {
			log.Warn("read upload rate counter failed", slog.Any("error", err))
		} else if count >= int64(h.limit.Limit) {
			Reject(c, http.StatusTooManyRequests, "rate_limited", "too many uploads, please try again later")
			return
		}
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.policy.MaxBytes+multipartOverhead)
	file, err := c.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Reject(c, http.StatusBadRequest, "file_too_large", "file too large")
			return
		}
		Reject(c, http.StatusBadRequest, "missing_file", "missing photo")
		return
	}

	ext := uploadExtension(file.Filename)
	if !h.policy.allowsExtension(ext) {
		Reject(c, http.StatusBadRequest, "invalid_file_type", "invalid file type")
		return
	}
	if file.Size > h.policy.MaxBytes {
		Reject(c, http.StatusBadRequest, "file_too_large", "file too large")
		return
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	data, err := io.ReadAll(io.LimitReader(reader, h.policy.MaxBytes+1))
	reader.Close()
	if err != nil {
		Internal(c, "failed to read file")
		return
	}
	if int64(len(data)) > h.policy.MaxBytes {
		Reject(c, http.StatusBadRequest, "file_too_large", "file too large")
		return
	}

	contentType, ok := h.policy.sniffMIME(data)
	if !ok {
		log.Info("upload rejected by content sniffing", slog.String("detected", contentType))
		Reject(c, http.StatusBadRequest, "invalid_mime_type", "invalid file format detected")
		return
	}

	if err := h.policy.scan(data); err != nil {
		if errors.Is(err, errMaliciousFile) {
			Reject(c, http.StatusBadRequest, "malicious_file", "malicious file detected")
			return
		}
		log.Error("scan upload failed", slog.Any("error", err))
		Internal(c, "failed to scan file")
		return
	}

	rule := entry.Rule()
	rule.SkipBackgroundRemoval = c.PostForm("skip_bg") == "true"
	rule.UseOriginalDimensions = c.PostForm("use_original_dimensions") == "true"

	receipt, err := h.service.Submit(ctx, jobs.Submission{
		Data:          data,
		Extension:     ext,
		ContentType:   contentType,
		Slug:          entry.Slug,
		Rule:          rule,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		log.Error("submit photo job failed", slog.Any("error", err))
		Internal(c, "failed to queue photo")
		return
	}

	if h.counter != nil && h.limit.Limit > 0 {
		if _, err := incrWithTTL(ctx, h.counter, rateKey, h.limit.Window); err != nil {
			log.Warn("increment upload rate counter failed", slog.Any("error", err))
		}
	}

	c.JSON(http.StatusAccepted, gin.H{
		"photo_id": receipt.JobID,
		"status":   "processing",
		"task_id":  receipt.TaskID,
	})
}

// GetPhotoStatus reports job status. A completed result is returned exactly once as a
// data URL; afterwards the job no longer exists.
func (h *PhotoHandler) GetPhotoStatus(c *gin.Context) {
	res, err := h.service.Poll(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			Reject(c, http.StatusNotFound, "not_found", "photo not found")
			return
		}
		middleware.LoggerFromContext(c).Error("poll photo job failed", slog.Any("error", err))
		Internal(c, "failed to load photo")
		return
	}

	switch res.Status {
	case database.JobCompleted:
		c.JSON(http.StatusOK, gin.H{
			"status":           string(res.Status),
			"processed_url":    "data:image/png;base64," + base64.StdEncoding.EncodeToString(res.Result),
			"background_color": res.Rule.BackgroundColor,
		})
	case database.JobFailed:
		c.JSON(http.StatusOK, gin.H{
			"status":     string(res.Status),
			"error":      res.ErrorMessage,
			"error_code": res.ErrorCode,
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"status":        string(res.Status),
			"processed_url": nil,
		})
	}
}
