package service

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/morozovaek/go-social-backend/internal/models"
)

// TokenKind — слот, в котором предъявляется подписанный токен.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
	// TokenKindReset — короткоживущий токен для смены пароля после OTP.
	TokenKindReset TokenKind = "reset"
)

// sessionClaims — полезная нагрузка подписанного токена.
// jti лежит в RegisteredClaims.ID и связывает токен со строкой token_jwt;
// access и refresh одной сессии несут один и тот же jti.
type sessionClaims struct {
	Owner     string `json:"own"`
	TokenKind string `json:"type"`
	jwt.RegisteredClaims
}

// subjectID возвращает разобранный subject.
func (c *sessionClaims) subjectID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// jti возвращает разобранный token-unique-id.
func (c *sessionClaims) jti() (uuid.UUID, error) {
	return uuid.Parse(c.ID)
}

func (c *sessionClaims) owner() (models.Owner, error) {
	o := models.Owner(c.Owner)
	if !o.Valid() {
		return "", fmt.Errorf("unknown owner %q", c.Owner)
	}

	return o, nil
}

// signToken подписывает токен указанного слота. Побочных эффектов нет.
func (s *Service) signToken(subjectID uuid.UUID, owner models.Owner, kind TokenKind, jti uuid.UUID, now time.Time, ttl time.Duration) (string, error) {
	const op = "service/token/signToken"

	claims := sessionClaims{
		Owner:     string(owner),
		TokenKind: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Subject:   subjectID.String(),
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings(s.cfg.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// verifyToken проверяет подпись, срок, издателя, аудиторию и слот токена.
// Ошибки различимы: ErrTokenExpired / ErrInvalidToken / ErrTokenTypeMismatch,
// чтобы транспорт мог вернуть точный код, а не общий "unauthorized".
func (s *Service) verifyToken(raw string, want TokenKind) (*sessionClaims, error) {
	const op = "service/token/verifyToken"

	token, err := jwt.ParseWithClaims(raw, &sessionClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return []byte(s.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience...),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if claims.TokenKind != string(want) {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenTypeMismatch)
	}

	if _, err := claims.owner(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if _, err := claims.subjectID(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if _, err := claims.jti(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

// Authenticate проверяет access-токен и возвращает актора запроса.
// Используется HTTP-гардом на всех защищённых маршрутах.
func (s *Service) Authenticate(raw string) (models.Actor, error) {
	const op = "service/token/Authenticate"

	claims, err := s.verifyToken(raw, TokenKindAccess)
	if err != nil {
		return models.Actor{}, fmt.Errorf("%s: %w", op, err)
	}

	owner, _ := claims.owner()
	subjectID, _ := claims.subjectID()

	return models.Actor{Owner: owner, ID: subjectID}, nil
}

// hashRefreshToken хэширует сам refresh-токен (не jti) для хранения.
// SHA-256/base64url, как и в кэше: bcrypt не подходит из-за лимита
// входа в 72 байта, JWT длиннее.
func hashRefreshToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
