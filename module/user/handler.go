package user

import (
	"net/http"
	"time"

	"PChat/global"
	"PChat/logger"
	midsec "PChat/middleware/security"
	usersrv "PChat/module/user/service"
	"PChat/service/storage"
	"PChat/tools/errs"
	"PChat/tools/security"

	"github.com/gin-gonic/gin"
)

const (
	cookieName   = "token"
	cookieMaxAge = int(security.DefaultTTL / time.Second)
)

func setSessionCookie(c *gin.Context, token string) {
	c.SetCookie(cookieName, token, cookieMaxAge, "/", "", false, true)
}

func clearSessionCookie(c *gin.Context) {
	c.SetCookie(cookieName, "", -1, "/", "", false, true)
}

func sessionResponse(s *usersrv.Session) gin.H {
	return gin.H{
		"user":  s.User,
		"token": s.Token,
	}
}

func writeError(c *gin.Context, status int, err error) {
	if ce, ok := err.(errs.CodeError); ok {
		c.JSON(status, ce)
		return
	}
	logger.Errorf("[user] %s: %v", c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, errs.ErrInternal)
}

// HandlerRegister creates an account and starts a session in one step.
func HandlerRegister(c *gin.Context) {
	var in usersrv.RegisterParams
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs)
		return
	}

	s, err := usersrv.Register(c.Request.Context(), global.JwtOptions(), in)
	if err != nil {
		switch err {
		case errs.ErrArgs:
			writeError(c, http.StatusBadRequest, err)
		case errs.ErrUserExists:
			writeError(c, http.StatusConflict, err)
		default:
			writeError(c, http.StatusInternalServerError, err)
		}
		return
	}

	setSessionCookie(c, s.Token)
	c.JSON(http.StatusCreated, sessionResponse(s))
}

func HandlerLogin(c *gin.Context) {
	var in usersrv.LoginParams
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs)
		return
	}

	s, err := usersrv.Login(c.Request.Context(), global.JwtOptions(), in)
	if err != nil {
		switch err {
		case errs.ErrArgs:
			writeError(c, http.StatusBadRequest, err)
		case errs.ErrLoginFailed:
			writeError(c, http.StatusUnauthorized, err)
		default:
			writeError(c, http.StatusInternalServerError, err)
		}
		return
	}

	setSessionCookie(c, s.Token)
	c.JSON(http.StatusOK, sessionResponse(s))
}

// HandlerLogout denylists the current token for the rest of its lifetime and
// clears the cookie. Denylisting is best effort; the cookie always goes.
func HandlerLogout(c *gin.Context) {
	token := midsec.Token(c)
	if claims := security.Decode(token); claims != nil && claims.ExpiresAt != nil {
		remaining := time.Until(claims.ExpiresAt.Time)
		if err := storage.RevokeToken(c.Request.Context(), security.HashToken(token), remaining); err != nil {
			logger.Warnf("[user] revoke on logout skipped: %v", err)
		}
	}
	clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandlerToken re-exposes the cookie session to clients that need the raw
// token, like the websocket handshake.
func HandlerToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"token": midsec.Token(c),
		"user": gin.H{
			"id":    midsec.UserID(c),
			"email": midsec.UserEmail(c),
			"name":  midsec.UserName(c),
		},
	})
}

// HandlerList returns every user except the caller, for the contact picker.
func HandlerList(c *gin.Context) {
	users, err := usersrv.List(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, users)
}
