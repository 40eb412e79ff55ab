// Package contracts は契約書アップロードと抽出結果参照の HTTP ハンドラーを提供します。
package contracts

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/contract-forge/internal/extract"
	"github.com/yourusername/contract-forge/internal/jobs"
)

// レスポンスの文言は既存クライアントが参照しているため変更しないこと
const (
	msgUploadAccepted = "Contract upload successful, processing initiated."
	msgNotReady       = "Contract processing is not yet complete."
	errNoFilePart     = "No file part in the request"
	errNotPDF         = "No selected file or file is not a PDF"
	errInvalidID      = "Invalid contract ID format."
	errNotFound       = "Contract not found."
	errTooLarge       = "Uploaded file is too large."
	errBusy           = "Server is busy, please retry later."
	errUnexpected     = "An unexpected error occurred."
)

// ContractService は HTTP 層から呼び出されるジョブ操作です。
type ContractService interface {
	Submit(ctx context.Context, filename string) (string, error)
	GetStatus(ctx context.Context, id string) (*jobs.StatusView, error)
	GetResult(ctx context.Context, id string) (*jobs.Record, error)
}

// HandlerOptions はアップロードの制限と検証方法の設定です。
type HandlerOptions struct {
	MaxFileSize int64 // 0 以下なら無制限
	StrictPDF   bool  // true の場合は中身も PDF として検証する
	Logger      *zap.Logger
}

// RegisterRoutes は /contracts 以下のルートを登録します。
func RegisterRoutes(r gin.IRouter, svc ContractService, opts HandlerOptions) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	group := r.Group("/contracts")
	group.POST("/upload", UploadHandler(svc, opts))
	group.GET("/:id/status", StatusHandler(svc, opts.Logger))
	group.GET("/:id", ResultHandler(svc, opts.Logger))
}

// UploadHandler は POST /contracts/upload のハンドラーを返します。
// ジョブを作成してワーカーに渡した時点で 202 を返し、抽出の完了は待ちません。
func UploadHandler(svc ContractService, opts HandlerOptions) gin.HandlerFunc {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if opts.MaxFileSize > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, opts.MaxFileSize)
		}

		file, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errTooLarge})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": errNoFilePart})
			return
		}

		if err := jobs.ValidateFilename(file.Filename); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errNotPDF})
			return
		}
		if opts.StrictPDF {
			if err := validatePDF(file); err != nil {
				logger.Info("rejected upload with invalid pdf content",
					zap.String("filename", file.Filename), zap.Error(err))
				c.JSON(http.StatusBadRequest, gin.H{"error": errNotPDF})
				return
			}
		}

		id, err := svc.Submit(c.Request.Context(), file.Filename)
		if err != nil {
			respondWithError(c, logger, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"message":     msgUploadAccepted,
			"contract_id": id,
		})
	}
}

// StatusHandler は GET /contracts/:id/status のハンドラーを返します。
func StatusHandler(svc ContractService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := svc.GetStatus(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondWithError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// ResultHandler は GET /contracts/:id のハンドラーを返します。
// 未完了の間は 409 と現在の状態・進捗だけを返します。
func ResultHandler(svc ContractService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := svc.GetResult(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondWithError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, newContractResponse(record))
	}
}

// contractResponse は GET /contracts/:id の本文です。内部管理用の updated_at は含めません。
type contractResponse struct {
	ID              string                 `json:"_id"`
	Filename        string                 `json:"filename"`
	Status          jobs.Status            `json:"status"`
	Progress        int                    `json:"progress"`
	UploadTime      time.Time              `json:"upload_time"`
	ExtractedData   *extract.ExtractedData `json:"extracted_data"`
	ConfidenceScore *int                   `json:"confidence_score"`
}

func newContractResponse(r *jobs.Record) contractResponse {
	return contractResponse{
		ID:              r.ID,
		Filename:        r.Filename,
		Status:          r.Status,
		Progress:        r.Progress,
		UploadTime:      r.CreatedAt,
		ExtractedData:   r.ExtractedData,
		ConfidenceScore: r.ConfidenceScore,
	}
}

func respondWithError(c *gin.Context, logger *zap.Logger, err error) {
	var notReady *jobs.NotReadyError
	switch {
	case errors.As(err, &notReady):
		c.JSON(http.StatusConflict, gin.H{
			"message":  msgNotReady,
			"status":   notReady.Status,
			"progress": notReady.Progress,
		})
	case errors.Is(err, jobs.ErrInvalidID):
		c.JSON(http.StatusNotFound, gin.H{"error": errInvalidID})
	case errors.Is(err, jobs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errNotFound})
	case errors.Is(err, jobs.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": errNotPDF})
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrDispatcherStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errBusy})
	default:
		if logger != nil {
			logger.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(err))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": errUnexpected})
	}
}
