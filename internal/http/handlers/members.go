package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/segbridge/internal/http/response"
	"github.com/yungbote/segbridge/internal/members"
)

type MembersHandler struct {
	registry *members.Registry
}

func NewMembersHandler(registry *members.Registry) *MembersHandler {
	return &MembersHandler{registry: registry}
}

// GET /v1/members
func (h *MembersHandler) List(c *gin.Context) {
	response.RespondOK(c, gin.H{"members": h.registry.Statuses(c.Request.Context())})
}
