package services

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type AuthService interface {
	Login(operatorID, operatorKey string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

type Claims struct {
	OperatorID string `json:"operator_id"`
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecret      []byte
	operatorID     string
	operatorKey    string
	accessTokenTTL time.Duration
}

func NewAuthService(jwtSecret, operatorID, operatorKey string, accessTokenTTL time.Duration) AuthService {
	return &authService{
		jwtSecret:      []byte(jwtSecret),
		operatorID:     operatorID,
		operatorKey:    operatorKey,
		accessTokenTTL: accessTokenTTL,
	}
}

func (s *authService) Login(operatorID, operatorKey string) (string, error) {
	idOK := subtle.ConstantTimeCompare([]byte(operatorID), []byte(s.operatorID)) == 1
	keyOK := subtle.ConstantTimeCompare([]byte(operatorKey), []byte(s.operatorKey)) == 1
	if !idOK || !keyOK {
		return "", ErrInvalidCredentials
	}

	claims := &Claims{
		OperatorID: operatorID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
