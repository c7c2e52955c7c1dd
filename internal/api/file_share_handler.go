package api

import (
	"net/http"

	"sharesphere/internal/service"

	"github.com/gin-gonic/gin"
)

type FileShareHandler struct {
	fileShareService *service.FileShareService
}

func NewFileShareHandler(fileShareService *service.FileShareService) *FileShareHandler {
	return &FileShareHandler{fileShareService: fileShareService}
}

// 文件分享给了哪些用户，仅所有者或管理员
func (h *FileShareHandler) ListGrants(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	fileID, ok := getIDParam(c, "file_id")
	if !ok {
		return
	}

	grants, err := h.fileShareService.ListGrants(c.Request.Context(), sess, fileID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", gin.H{"shared_with": grants})
}

// 上传界面可选的分享方式
func (h *FileShareHandler) ShareModes(c *gin.Context) {
	respondOK(c, http.StatusOK, "", []service.ShareMode{
		service.ShareNone,
		service.ShareAllUsers,
		service.ShareSpecificUsers,
		service.ShareSpecificGroups,
	})
}
