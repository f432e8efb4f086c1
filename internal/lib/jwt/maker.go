// Package jwt выпускает и проверяет подписанные токены доступа.
//
// В токене хранится только идентификатор пользователя, срок жизни задаётся конфигом.
package jwt

import (
	"errors"
	"time"
)

// ErrInvalidToken возвращается для токенов с неверной подписью, истёкших или без идентификатора.
var ErrInvalidToken = errors.New("invalid token")

// Maker описывает выпуск и разбор токенов.
type Maker interface {
	GenerateToken(userID string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl подписывает токены HS256 секретным ключом.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewJWTMaker создаёт MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
		now:       time.Now,
	}
}
