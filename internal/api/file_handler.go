package api

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"sharesphere/internal/service"
	"sharesphere/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileHandler 处理文件相关的API请求
type FileHandler struct {
	fileService *service.FileService
}

// NewFileHandler 创建新的文件处理器
func NewFileHandler(fileService *service.FileService) *FileHandler {
	return &FileHandler{
		fileService: fileService,
	}
}

// 解析 "1,2,3" 或重复出现的表单字段
func parseIDList(values []string) ([]uint, bool) {
	ids := []uint{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 32)
			if err != nil {
				return nil, false
			}
			ids = append(ids, uint(id))
		}
	}
	return ids, true
}

// UploadFile multipart 表单: file, comment, share_mode, user_ids, group_ids
func (h *FileHandler) UploadFile(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	// 从表单数据中获取文件
	header, err := c.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to get file from request", zap.Error(err))
		respondFail(c, http.StatusBadRequest, "missing or invalid file")
		return
	}
	userIDs, ok := parseIDList(c.PostFormArray("user_ids"))
	if !ok {
		respondFail(c, http.StatusBadRequest, "invalid user_ids")
		return
	}
	groupIDs, ok := parseIDList(c.PostFormArray("group_ids"))
	if !ok {
		respondFail(c, http.StatusBadRequest, "invalid group_ids")
		return
	}

	src, err := header.Open()
	if err != nil {
		logger.L.Error("Failed to open uploaded file", zap.Error(err))
		respondFail(c, http.StatusBadRequest, "failed to read uploaded file")
		return
	}
	defer src.Close()

	file, err := h.fileService.Upload(c.Request.Context(), sess, service.UploadRequest{
		Filename:  header.Filename,
		Content:   src,
		Comment:   c.PostForm("comment"),
		ShareMode: service.ShareMode(c.PostForm("share_mode")),
		UserIDs:   userIDs,
		GroupIDs:  groupIDs,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "file uploaded", file)
}

// ListFiles 自己的文件和分享给自己的文件
func (h *FileHandler) ListFiles(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	owned, shared, err := h.fileService.ListAccessible(c.Request.Context(), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", gin.H{
		"owned":  owned,
		"shared": shared,
	})
}

// DownloadFile 提供文件下载服务
func (h *FileHandler) DownloadFile(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	fileID, ok := getIDParam(c, "file_id")
	if !ok {
		return
	}

	file, rc, err := h.fileService.Download(c.Request.Context(), sess, fileID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	// 设置下载头
	c.DataFromReader(http.StatusOK, file.Size, contentType, rc, map[string]string{
		"Content-Description":       "File Transfer",
		"Content-Transfer-Encoding": "binary",
		"Content-Disposition":       mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}),
	})
}

func (h *FileHandler) DeleteFile(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	fileID, ok := getIDParam(c, "file_id")
	if !ok {
		return
	}
	if err := h.fileService.Delete(c.Request.Context(), sess, fileID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "file deleted", nil)
}
