package fed

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// childAgentClaims authenticates a child-agent creation request between
// regions, standing in for the simple shared-secret scheme the original
// grid glue used: a signed, short-lived token naming the agent and the
// originating region so a destination can reject a stale or forged
// request without a round trip back to the origin.
type childAgentClaims struct {
	jwt.RegisteredClaims
	AgentID    uuid.UUID `json:"agent_id"`
	OriginAddr string    `json:"origin_addr"`
}

const childAgentTokenTTL = 30 * time.Second

// SignChildAgentToken mints a bearer token authorizing originAddr to
// stand up a child agent for agentID on the receiving region, valid for
// childAgentTokenTTL.
func SignChildAgentToken(secret []byte, agentID uuid.UUID, originAddr string) (string, error) {
	now := time.Now()
	claims := childAgentClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(childAgentTokenTTL)),
		},
		AgentID:    agentID,
		OriginAddr: originAddr,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(secret)
}

// VerifyChildAgentToken validates a token minted by SignChildAgentToken
// and returns the agent id and claimed origin it authorizes.
func VerifyChildAgentToken(secret []byte, tokenStr string) (agentID uuid.UUID, originAddr string, err error) {
	claims := &childAgentClaims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return uuid.UUID{}, "", err
	}
	if !tok.Valid {
		return uuid.UUID{}, "", fmt.Errorf("child agent token invalid")
	}
	return claims.AgentID, claims.OriginAddr, nil
}
