package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lingolens/srs-service/internal/config"
)

type JWTProcessor struct {
	issuer    string
	audience  []string
	expiresIn time.Duration

	secret []byte
}

func NewJWTProcessor(conf config.JWT) *JWTProcessor {
	return &JWTProcessor{
		issuer:    conf.Issuer,
		audience:  conf.Audience,
		expiresIn: conf.ExpiresIn,

		secret: []byte(conf.Secret),
	}
}

func (p *JWTProcessor) ToAccessToken(userID string) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    p.issuer,
		Subject:   userID,
		Audience:  p.audience,
		ExpiresAt: jwt.NewNumericDate(now.Add(p.expiresIn)),
		NotBefore: jwt.NewNumericDate(now),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.New().String(),
	})

	signedString, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signedString, nil
}

func (p *JWTProcessor) ParseAccessToken(token string) (string, error) {
	var parsed *jwt.Token
	parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		// Validate signing algorithm
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("invalid token claims")
	}

	if iss, _ := claims.GetIssuer(); iss != p.issuer {
		return "", fmt.Errorf("invalid issuer")
	}
	if aud, _ := claims.GetAudience(); !containsAll(aud, p.audience) {
		return "", fmt.Errorf("invalid audience")
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("get subject: %w", err)
	}
	if subject == "" {
		return "", fmt.Errorf("empty subject")
	}

	return subject, nil
}

// containsAll returns true if all elements in required are present in actual
func containsAll(actual, required []string) bool {
	if len(required) == 0 {
		return true
	}
	if len(actual) < len(required) {
		return false
	}
	for _, r := range required {
		found := false
		for _, a := range actual {
			if a == r {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
