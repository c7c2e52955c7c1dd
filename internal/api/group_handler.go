package api

import (
	"context"
	"net/http"

	"sharesphere/internal/model"
	"sharesphere/internal/service"

	"github.com/gin-gonic/gin"
)

type GroupHandler struct {
	groupService *service.GroupService
}

func NewGroupHandler(groupService *service.GroupService) *GroupHandler {
	return &GroupHandler{
		groupService: groupService,
	}
}

type createGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

// 仅管理员
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "name is required")
		return
	}

	group, err := h.groupService.CreateGroup(c.Request.Context(), sess, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "group created", group)
}

func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.groupService.ListGroups(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", groups)
}

func (h *GroupHandler) GetGroupInfo(c *gin.Context) {
	groupID, ok := getIDParam(c, "group_id")
	if !ok {
		return
	}

	group, err := h.groupService.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		respondError(c, err)
		return
	}

	membersResponse := make([]gin.H, 0, len(group.Members))
	for _, m := range group.Members {
		membersResponse = append(membersResponse, gin.H{
			"user_id":   m.UserID,
			"username":  m.User.Username,
			"joined_at": m.CreatedAt,
		})
	}

	respondOK(c, http.StatusOK, "", gin.H{
		"id":         group.ID,
		"name":       group.Name,
		"created_at": group.CreatedAt,
		"members":    membersResponse,
	})
}

// 当前用户已加入的群组
func (h *GroupHandler) GetUserGroups(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	groups, err := h.groupService.UserGroups(c.Request.Context(), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", groups)
}

// 可以申请加入的群组
func (h *GroupHandler) GetAvailableGroups(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	groups, err := h.groupService.AvailableGroups(c.Request.Context(), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", groups)
}

func (h *GroupHandler) RequestJoin(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	groupID, ok := getIDParam(c, "group_id")
	if !ok {
		return
	}

	created, err := h.groupService.RequestJoin(c.Request.Context(), sess, groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !created {
		respondOK(c, http.StatusOK, "a request to join this group is already pending", gin.H{"created": false})
		return
	}
	respondOK(c, http.StatusCreated, "join request submitted", gin.H{"created": true})
}

func (h *GroupHandler) MyRequests(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	reqs, err := h.groupService.MyRequests(c.Request.Context(), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", reqs)
}

// ListRequests ?status=pending|approved|rejected，缺省为全部
func (h *GroupHandler) ListRequests(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	status := model.RequestStatus(c.Query("status"))
	reqs, err := h.groupService.ListRequests(c.Request.Context(), sess, status)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", reqs)
}

func (h *GroupHandler) ApproveRequest(c *gin.Context) {
	h.resolve(c, h.groupService.Approve, "request approved")
}

func (h *GroupHandler) RejectRequest(c *gin.Context) {
	h.resolve(c, h.groupService.Reject, "request rejected")
}

func (h *GroupHandler) resolve(c *gin.Context, fn func(ctx context.Context, sess *service.Session, requestID uint) error, okMsg string) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	requestID, ok := getIDParam(c, "request_id")
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), sess, requestID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, okMsg, nil)
}
