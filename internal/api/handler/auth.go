package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"meethub/backend/internal/config"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const issuer = "meethub-service"

var errInvalidIdentity = errors.New("invalid identity token")

// Identity is the caller identity carried by a handshake token.
type Identity struct {
	UserID string
	Name   string
}

type identityRequest struct {
	Name string `json:"name"`
}

// generateJWT signs an identity token for userID.
func generateJWT(secret []byte, userID, name string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"name":    name,
		"exp":     time.Now().Add(ttl).Unix(),
		"iss":     issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// parseJWT validates an identity token and returns its subject.
func parseJWT(secret []byte, tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", errInvalidIdentity, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errInvalidIdentity
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return Identity{}, fmt.Errorf("%w: missing user_id", errInvalidIdentity)
	}
	name, _ := claims["name"].(string)
	return Identity{UserID: userID, Name: name}, nil
}

// IssueIdentity creates an anonymous identity and returns a token for it.
func (h *Handler) IssueIdentity(c *gin.Context) {
	var req identityRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}
	name := strings.TrimSpace(req.Name)
	if len([]rune(name)) > config.MaxDisplayNameLength {
		name = string([]rune(name)[:config.MaxDisplayNameLength])
	}

	userID := uuid.NewString()
	token, err := generateJWT(h.jwtSecret, userID, name, h.tokenTTL)
	if err != nil {
		log.Error().Err(err).Str("module", "handler").Msg("failed to sign identity token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": userID})
}
