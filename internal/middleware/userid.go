package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// UserIDHeader заголовок, которым шлюз аутентификации передаёт ID пользователя
const UserIDHeader = "X-User-ID"

const userIDKey = "user_id"

// RequireUserID пропускает только запросы с положительным числовым X-User-ID.
// Аутентификация выполняется выше по стеку, сюда приходит уже проверенный ID.
func RequireUserID() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_user",
				"message": "Требуется заголовок " + UserIDHeader,
			})
			return
		}

		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_user",
				"message": "Невалидный " + UserIDHeader,
			})
			return
		}

		c.Set(userIDKey, id)
		c.Next()
	}
}

// UserID возвращает ID, установленный RequireUserID
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// UserKey ключ для rate limiter: ID пользователя, если он есть, иначе IP
func UserKey(c *gin.Context) string {
	if id := c.GetHeader(UserIDHeader); id != "" {
		return "user:" + id
	}
	return ""
}
