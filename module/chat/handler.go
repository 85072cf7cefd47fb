package chat

import (
	"net/http"

	"PChat/logger"
	midsec "PChat/middleware/security"
	chatsrv "PChat/module/chat/service"
	"PChat/service/relay"
	"PChat/tools/errs"

	"github.com/gin-gonic/gin"
)

// Handler carries the relay hub so REST-side changes can push live events to
// personal rooms.
type Handler struct {
	Hub *relay.Hub
}

func NewHandler(hub *relay.Hub) *Handler {
	return &Handler{Hub: hub}
}

func writeError(c *gin.Context, status int, err error) {
	if ce, ok := err.(errs.CodeError); ok {
		c.JSON(status, ce)
		return
	}
	logger.Errorf("[chat] %s: %v", c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, errs.ErrInternal)
}

type createConversationReq struct {
	UserID string `json:"userId"`
}

// HandlerCreateConversation starts (or returns) the conversation with
// another user. On first contact the peer's open clients get a
// new-conversation push through their personal room.
func (h *Handler) HandlerCreateConversation(c *gin.Context) {
	var in createConversationReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs)
		return
	}

	userID := midsec.UserID(c)
	conv, created, err := chatsrv.CreateOrGet(c.Request.Context(), userID, in.UserID)
	if err != nil {
		if err == errs.ErrArgs {
			writeError(c, http.StatusBadRequest, err)
		} else {
			writeError(c, http.StatusInternalServerError, err)
		}
		return
	}

	if created && h.Hub != nil {
		h.Hub.NotifyUser(in.UserID, relay.EventNewConversation, conv)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, conv)
}

func (h *Handler) HandlerListConversations(c *gin.Context) {
	views, err := chatsrv.ListForUser(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) HandlerGetConversation(c *gin.Context) {
	conv, err := chatsrv.Get(c.Request.Context(), midsec.UserID(c), c.Param("id"))
	if err != nil {
		if err == errs.ErrConversationGone {
			writeError(c, http.StatusNotFound, err)
		} else {
			writeError(c, http.StatusInternalServerError, err)
		}
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *Handler) HandlerListMessages(c *gin.Context) {
	msgs, err := chatsrv.ListMessages(c.Request.Context(), midsec.UserID(c), c.Param("id"))
	if err != nil {
		if err == errs.ErrConversationGone {
			writeError(c, http.StatusNotFound, err)
		} else {
			writeError(c, http.StatusInternalServerError, err)
		}
		return
	}
	c.JSON(http.StatusOK, msgs)
}

type sendMessageReq struct {
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl"`
}

// HandlerSendMessage persists a message. Sender identity comes from the
// verified session, never from the request body. Live fan-out happens over
// the websocket relay, not here.
func (h *Handler) HandlerSendMessage(c *gin.Context) {
	var in sendMessageReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs)
		return
	}

	msg, err := chatsrv.AppendMessage(c.Request.Context(), chatsrv.AppendMessageParams{
		ConversationID: c.Param("id"),
		SenderID:       midsec.UserID(c),
		SenderName:     midsec.UserName(c),
		Text:           in.Text,
		ImageURL:       in.ImageURL,
	})
	if err != nil {
		switch err {
		case errs.ErrMessageEmpty:
			writeError(c, http.StatusBadRequest, err)
		case errs.ErrConversationGone:
			writeError(c, http.StatusNotFound, err)
		default:
			writeError(c, http.StatusInternalServerError, err)
		}
		return
	}
	c.JSON(http.StatusCreated, msg)
}
