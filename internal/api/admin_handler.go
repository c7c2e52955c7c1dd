package api

import (
	"net/http"
	"strconv"

	"sharesphere/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminHandler 管理员接口，路由上已挂载 AdminMiddleware，服务层会再次校验
type AdminHandler struct {
	adminService *service.AdminService
}

func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	users, err := h.adminService.ListUsers(c.Request.Context(), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", users)
}

func (h *AdminHandler) CreateUser(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "username and password are required")
		return
	}
	user, err := h.adminService.CreateUser(c.Request.Context(), sess, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "user created", user)
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	userID, ok := getIDParam(c, "user_id")
	if !ok {
		return
	}
	if err := h.adminService.DeleteUser(c.Request.Context(), sess, userID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "user deleted", nil)
}

func (h *AdminHandler) ResetPassword(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	userID, ok := getIDParam(c, "user_id")
	if !ok {
		return
	}
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "password is required")
		return
	}
	if err := h.adminService.ResetUserPassword(c.Request.Context(), sess, userID, req.Password); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "password reset", nil)
}

func (h *AdminHandler) ListFiles(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	files, err := h.adminService.ListFiles(c.Request.Context(), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", files)
}

func (h *AdminHandler) DeleteFile(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	fileID, ok := getIDParam(c, "file_id")
	if !ok {
		return
	}
	if err := h.adminService.ForceDeleteFile(c.Request.Context(), sess, fileID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "file deleted", nil)
}

// SystemLogs ?lines=N
func (h *AdminHandler) SystemLogs(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	lines, _ := strconv.Atoi(c.DefaultQuery("lines", "100"))
	out, err := h.adminService.SystemLogs(c.Request.Context(), sess, lines)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", gin.H{"lines": out})
}
