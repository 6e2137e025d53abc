package inbox

import (
	"encoding/base64"

	"github.com/google/uuid"

	"nest/internal/constants"
)

// NewBinID returns "b_" followed by 22 url-safe characters (a v4 UUID, 122 random bits).
func NewBinID() string {
	return newID(constants.BinIDPrefix)
}

func NewEventID() string {
	return newID(constants.EventIDPrefix)
}

func newID(prefix string) string {
	u := uuid.New()
	return prefix + base64.RawURLEncoding.EncodeToString(u[:])
}
