package mail

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewMessageID creates a unique Message-ID header value for email
// threading, in the form <ticketID.unixMillis.rand8hex@domain>.
func NewMessageID(ticketID int64, threadDomain string, now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("<%d.%d.%s@%s>", ticketID, now.UnixMilli(), random, threadDomain)
}
