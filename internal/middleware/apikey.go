package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	apiKeyValidatedKey = "api_key_validated"
	apiKeyNameKey      = "api_key_name"
)

// APIKeyConfig конфигурация для API key аутентификации
type APIKeyConfig struct {
	// ValidKeys карта валидных API ключей к их описаниям
	ValidKeys map[string]string
	// HeaderName имя заголовка для API ключа (по умолчанию: X-API-Key)
	HeaderName string
	// Optional если true, запросы без ключа пропускаются, но не считаются доверенными
	Optional bool
}

// DefaultAPIKeyConfig конфигурация по умолчанию
var DefaultAPIKeyConfig = APIKeyConfig{
	HeaderName: "X-API-Key",
}

// APIKey защищает служебные эндпоинты: списание по кампаниям и админку выплат
type APIKey struct {
	config APIKeyConfig
}

// NewAPIKey создаёт новый API key middleware
func NewAPIKey(config APIKeyConfig) *APIKey {
	if config.HeaderName == "" {
		config.HeaderName = DefaultAPIKeyConfig.HeaderName
	}
	return &APIKey{config: config}
}

// extract берёт ключ из заголовка или из Authorization: Bearer.
// Query-параметр не поддерживается: ключ попадал бы в логи запросов.
func (ak *APIKey) extract(c *gin.Context) string {
	if key := c.GetHeader(ak.config.HeaderName); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// lookup сравнивает ключ со всеми валидными за постоянное время
func (ak *APIKey) lookup(key string) (string, bool) {
	var (
		name  string
		found bool
	)
	for validKey, validName := range ak.config.ValidKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
			name, found = validName, true
		}
	}
	return name, found
}

// Middleware возвращает Gin middleware handler для API key аутентификации
func (ak *APIKey) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ak.extract(c)
		if key == "" {
			if ak.config.Optional {
				c.Set(apiKeyValidatedKey, false)
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_api_key",
				"message": "Требуется API ключ. Передайте его через заголовок " + ak.config.HeaderName + " или Authorization: Bearer",
			})
			return
		}

		name, ok := ak.lookup(key)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_api_key",
				"message": "Невалидный API ключ",
			})
			return
		}

		c.Set(apiKeyValidatedKey, true)
		c.Set(apiKeyNameKey, name)
		c.Next()
	}
}

// RequireAPIKey middleware, требующий API ключ в заголовке X-API-Key
func RequireAPIKey(validKeys map[string]string) gin.HandlerFunc {
	return NewAPIKey(APIKeyConfig{ValidKeys: validKeys}).Middleware()
}

// APIKeyName возвращает описание ключа, которым авторизован запрос
func APIKeyName(c *gin.Context) (string, bool) {
	return getString(c, apiKeyNameKey)
}

// IsAPIKeyValidated проверяет, был ли API ключ успешно валидирован
func IsAPIKeyValidated(c *gin.Context) bool {
	return c.GetBool(apiKeyValidatedKey)
}

func getString(c *gin.Context, key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
