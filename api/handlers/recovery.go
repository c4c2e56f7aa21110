package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/deck-recovery/internal/models"
	"github.com/feichai0017/deck-recovery/internal/service/recovery"
	"github.com/feichai0017/deck-recovery/pkg/logger"
	"github.com/feichai0017/deck-recovery/pkg/queue"
	"github.com/feichai0017/deck-recovery/pkg/storage"
)

type RecoveryHandler struct {
	service recovery.DeckRecoverer
	logger  logger.Logger
}

// SubmitResponse 定义提交响应结构
type SubmitResponse struct {
	TaskID    string `json:"taskId"`
	Status    string `json:"status"`
	Filename  string `json:"filename"`
	FileSize  int64  `json:"fileSize"`
	CreatedAt string `json:"createdAt"`
}

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewRecoveryHandler(service recovery.DeckRecoverer, log logger.Logger) *RecoveryHandler {
	return &RecoveryHandler{
		service: service,
		logger:  log,
	}
}

func fromHeader(h *multipart.FileHeader) recovery.Upload {
	return recovery.Upload{
		Filename: h.Filename,
		Size:     h.Size,
		Open: func() (io.ReadSeekCloser, error) {
			return h.Open()
		},
	}
}

func newSubmitResponse(task *models.RecoveryTask) SubmitResponse {
	size, _ := strconv.ParseInt(task.Metadata["size"], 10, 64)
	return SubmitResponse{
		TaskID:    task.ID,
		Status:    string(task.Status),
		Filename:  task.Metadata["filename"],
		FileSize:  size,
		CreatedAt: task.CreatedAt.Format(time.RFC3339),
	}
}

// parseLimits reads optional max_slides, slides_per_file and max_files form values.
func parseLimits(c *gin.Context) (recovery.Limits, error) {
	var l recovery.Limits
	fields := []struct {
		name string
		dst  *int
	}{
		{"max_slides", &l.MaxSlides},
		{"slides_per_file", &l.SlidesPerFile},
		{"max_files", &l.MaxFiles},
	}
	for _, f := range fields {
		raw := c.PostForm(f.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return l, fmt.Errorf("%s must be a positive integer", f.name)
		}
		*f.dst = n
	}
	return l, nil
}

// Submit 提交单个恢复任务
func (h *RecoveryHandler) Submit(c *gin.Context) {
	_, header, err := c.Request.FormFile("file")
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid file upload", err)
		return
	}
	limits, err := parseLimits(c)
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid limits", err)
		return
	}

	req := recovery.SubmitRequest{Deck: fromHeader(header), Limits: limits}
	if _, textHeader, err := c.Request.FormFile("text_file"); err == nil {
		text := fromHeader(textHeader)
		req.Text = &text
	}

	task, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, statusFor(err), "Failed to submit recovery", err)
		return
	}
	c.JSON(http.StatusAccepted, newSubmitResponse(task))
}

// SubmitBatch 批量提交
func (h *RecoveryHandler) SubmitBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid form data", err)
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		h.handleError(c, http.StatusBadRequest, "No files provided", nil)
		return
	}
	limits, err := parseLimits(c)
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid limits", err)
		return
	}

	uploads := make([]recovery.Upload, len(files))
	for i, f := range files {
		uploads[i] = fromHeader(f)
	}
	tasks, err := h.service.SubmitBatch(c.Request.Context(), uploads, limits)

	responses := make([]SubmitResponse, len(tasks))
	for i, task := range tasks {
		responses[i] = newSubmitResponse(task)
	}
	body := gin.H{
		"message": fmt.Sprintf("Submitted %d of %d decks", len(tasks), len(files)),
		"tasks":   responses,
	}
	if err != nil {
		h.logger.Warn("Batch submission incomplete", logger.Error(err))
		body["error"] = err.Error()
		c.JSON(http.StatusMultiStatus, body)
		return
	}
	c.JSON(http.StatusAccepted, body)
}

// GetStatus 获取处理状态
func (h *RecoveryHandler) GetStatus(c *gin.Context) {
	task, err := h.service.GetStatus(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		h.handleError(c, statusFor(err), "Failed to get status", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// GetManifest 返回恢复清单
func (h *RecoveryHandler) GetManifest(c *gin.Context) {
	m, err := h.service.GetManifest(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		h.handleError(c, statusFor(err), "Failed to get manifest", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// DownloadArchive 下载重建的演示文稿
func (h *RecoveryHandler) DownloadArchive(c *gin.Context) {
	name := c.Param("name")
	rc, err := h.service.OpenArchive(c.Request.Context(), c.Param("taskId"), name)
	if err != nil {
		h.handleError(c, statusFor(err), "Failed to open archive", err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	c.DataFromReader(http.StatusOK, -1,
		"application/vnd.openxmlformats-officedocument.presentationml.presentation", rc, nil)
}

// CancelTask 取消处理任务
func (h *RecoveryHandler) CancelTask(c *gin.Context) {
	taskID := c.Param("taskId")
	if err := h.service.CancelTask(c.Request.Context(), taskID); err != nil {
		h.handleError(c, statusFor(err), "Failed to cancel task", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Task cancelled successfully",
		"taskId":  taskID,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, recovery.ErrInvalidInput), errors.Is(err, recovery.ErrInvalidArchiveName):
		return http.StatusBadRequest
	case errors.Is(err, queue.ErrTaskNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, recovery.ErrNotReady), errors.Is(err, queue.ErrTaskFinished):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// handleError 统一错误处理
func (h *RecoveryHandler) handleError(c *gin.Context, status int, message string, err error) {
	log := logger.FromContext(c.Request.Context(), h.logger)
	fields := []logger.Field{
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if status >= http.StatusInternalServerError {
		log.Error(message, fields...)
	} else {
		log.Warn(message, fields...)
	}

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	c.AbortWithStatusJSON(status, response)
}
