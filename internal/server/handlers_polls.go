package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type pollRequestPayload struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type voteRequestPayload struct {
	OptionIndex *int `json:"optionIndex"`
}

func (h *httpHandler) handleCreatePoll(c *gin.Context) {
	var request pollRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	poll, err := h.pollService.CreatePoll(c.Request.Context(), currentActor(c), request.Question, request.Options)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"poll": poll})
}

func (h *httpHandler) handleListPolls(c *gin.Context) {
	listing, err := h.pollService.ListPolls(c.Request.Context(), currentActor(c))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"polls": listing})
}

func (h *httpHandler) handleGetPoll(c *gin.Context) {
	poll, err := h.pollService.GetPoll(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"poll": poll})
}

func (h *httpHandler) handleUpdatePoll(c *gin.Context) {
	var request pollRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	poll, err := h.pollService.UpdatePoll(c.Request.Context(), currentActor(c), c.Param("id"), request.Question, request.Options)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"poll": poll})
}

func (h *httpHandler) handleDeletePoll(c *gin.Context) {
	if err := h.pollService.DeletePoll(c.Request.Context(), currentActor(c), c.Param("id")); err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleVote(c *gin.Context) {
	var request voteRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.OptionIndex == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	vote, err := h.pollService.SubmitVote(c.Request.Context(), currentActor(c), c.Param("id"), *request.OptionIndex)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"vote": vote})
}

func (h *httpHandler) handleResults(c *gin.Context) {
	results, err := h.pollService.Results(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// handleAdminListPolls returns raw poll records including owner identifiers.
// Privileged data: the service rejects any actor without the admin role.
func (h *httpHandler) handleAdminListPolls(c *gin.Context) {
	listing, err := h.pollService.ListAllPolls(c.Request.Context(), currentActor(c))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"polls": listing})
}
