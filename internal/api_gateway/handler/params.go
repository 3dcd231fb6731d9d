package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ActorHeader carries the pre-authorized actor identity. The surrounding
// platform authenticates callers; this service only records who acted.
const ActorHeader = "X-Actor"

var errMissingActor = errors.New("missing " + ActorHeader + " header")

// hospitalIDParam parses the :hospital_id path segment
func hospitalIDParam(c *gin.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("hospital_id"))
}

// actorFrom extracts the acting user from the request headers
func actorFrom(c *gin.Context) (string, error) {
	actor := c.GetHeader(ActorHeader)
	if actor == "" {
		return "", errMissingActor
	}
	return actor, nil
}

// parseDate accepts a date-only or RFC 3339 timestamp value
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
