package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"portal-backend/internal/models"
)

var jwtSecret []byte

// Claims represents JWT claims. CompanyID is the active company scope and
// Role the caller's role within it.
type Claims struct {
	UserID    uint   `json:"user_id"`
	Email     string `json:"email"`
	CompanyID uint   `json:"company_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// InitJWT initializes JWT secret from environment
func InitJWT() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
	jwtSecret = []byte(secret)
	log.Println("✅ JWT initialized")
}

// SetSecretForTest overrides the signing secret in tests.
func SetSecretForTest(secret string) {
	jwtSecret = []byte(secret)
}

// GenerateToken generates a session JWT plus a fresh CSRF token.
func GenerateToken(user models.User, companyID uint, role string) (string, time.Time, string, error) {
	expiry := time.Now().Add(24 * time.Hour)

	claims := &Claims{
		UserID:    user.ID,
		Email:     user.Email,
		CompanyID: companyID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		return "", time.Time{}, "", fmt.Errorf("failed to sign token: %w", err)
	}

	csrfToken, err := generateCSRFToken()
	if err != nil {
		return "", time.Time{}, "", fmt.Errorf("failed to generate CSRF token: %w", err)
	}

	return tokenString, expiry, csrfToken, nil
}

// ParseToken parses and validates a JWT token
func ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token claims")
}

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
