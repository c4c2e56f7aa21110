package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/feichai0017/deck-recovery/pkg/logger"
)

// FileValidator 上传文件验证器
type FileValidator struct {
	logger logger.Logger
	config *ValidatorConfig
}

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
	MaxFileSize int64 // 最大文件大小（字节）
	// AllowedTypes maps an extension to the sniffed MIME types accepted for
	// it. A nil list accepts any content, which damaged decks need.
	AllowedTypes map[string][]string
}

// ValidationResult 验证结果
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

// Err folds the validation errors into one error, or nil when valid.
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return fmt.Errorf("%s: %s", r.FileInfo.Filename, strings.Join(msgs, "; "))
}

// ValidationError 验证错误
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// FileInfo 文件信息
type FileInfo struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
	Extension string `json:"extension"`
	Hash      string `json:"hash"`
}

// DeckConfig accepts presentation packages in any state of damage.
func DeckConfig(maxSize int64) *ValidatorConfig {
	return &ValidatorConfig{
		MaxFileSize: maxSize,
		AllowedTypes: map[string][]string{
			".pptx": nil,
			".pptm": nil,
			".potx": nil,
		},
	}
}

// TextSourceConfig accepts the formats the text-source processors read.
func TextSourceConfig(maxSize int64) *ValidatorConfig {
	return &ValidatorConfig{
		MaxFileSize: maxSize,
		AllowedTypes: map[string][]string{
			".txt":  {"text/plain"},
			".text": {"text/plain"},
			".md":   {"text/plain"},
			".pdf":  {"application/pdf"},
			".pptx": nil,
			".png":  {"image/png"},
			".jpg":  {"image/jpeg"},
			".jpeg": {"image/jpeg"},
			".tif":  {"image/tiff", "application/octet-stream"},
			".tiff": {"image/tiff", "application/octet-stream"},
		},
	}
}

// NewFileValidator 创建新的文件验证器
func NewFileValidator(log logger.Logger, config *ValidatorConfig) *FileValidator {
	if config == nil {
		config = DeckConfig(200 << 20)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &FileValidator{logger: log, config: config}
}

// ValidateFile 验证单个文件. The reader is rewound before returning.
func (v *FileValidator) ValidateFile(name string, size int64, f io.ReadSeeker) (*ValidationResult, error) {
	result := &ValidationResult{
		IsValid: true,
		FileInfo: FileInfo{
			Filename:  filepath.Base(name),
			Size:      size,
			Extension: strings.ToLower(filepath.Ext(name)),
		},
	}

	// 计算文件哈希
	hash, err := calculateHash(f)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}
	result.FileInfo.Hash = hash

	mimeType, err := detectMimeType(f)
	if err != nil {
		return nil, fmt.Errorf("failed to detect mime type: %w", err)
	}
	result.FileInfo.MimeType = mimeType

	errs := v.performBasicValidation(result.FileInfo)
	errs = append(errs, v.validateMimeType(result.FileInfo)...)
	if len(errs) > 0 {
		result.IsValid = false
		result.Errors = errs
		v.logger.Warn("File rejected",
			logger.String("filename", result.FileInfo.Filename),
			logger.String("mimeType", mimeType),
			logger.Int("errors", len(errs)))
	}
	return result, nil
}

// 基本验证
func (v *FileValidator) performBasicValidation(info FileInfo) []ValidationError {
	var errs []ValidationError

	if info.Size <= 0 {
		errs = append(errs, ValidationError{
			Code:    "EMPTY_FILE",
			Message: "file is empty",
			Field:   "size",
		})
	}
	if v.config.MaxFileSize > 0 && info.Size > v.config.MaxFileSize {
		errs = append(errs, ValidationError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("file size exceeds maximum limit of %d bytes", v.config.MaxFileSize),
			Field:   "size",
		})
	}
	if _, ok := v.config.AllowedTypes[info.Extension]; !ok {
		errs = append(errs, ValidationError{
			Code:    "INVALID_FILE_TYPE",
			Message: fmt.Sprintf("file type %q is not allowed", info.Extension),
			Field:   "extension",
		})
	}
	return errs
}

// MIME类型验证
func (v *FileValidator) validateMimeType(info FileInfo) []ValidationError {
	allowed, ok := v.config.AllowedTypes[info.Extension]
	if !ok || allowed == nil {
		return nil
	}
	base, _, _ := strings.Cut(info.MimeType, ";")
	for _, m := range allowed {
		if m == strings.TrimSpace(base) {
			return nil
		}
	}
	return []ValidationError{{
		Code:    "INVALID_MIME_TYPE",
		Message: fmt.Sprintf("content type %s does not match extension %s", info.MimeType, info.Extension),
		Field:   "mimeType",
	}}
}

// 检测MIME类型
func detectMimeType(f io.ReadSeeker) (string, error) {
	buffer := make([]byte, 512)
	n, err := io.ReadFull(f, buffer)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buffer[:n]), nil
}

// 计算文件哈希
func calculateHash(f io.ReadSeeker) (string, error) {
	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
