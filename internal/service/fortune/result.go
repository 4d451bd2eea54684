package fortune

import (
	"time"

	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
)

// CheckResult is the registration status of an NFC tag.
type CheckResult struct {
	Exists         bool
	IsPreGenerated bool
	Message        string
	User           *domain.User
}

// BatchResult aggregates one RunBatch call.
type BatchResult struct {
	Variant             domain.BatchVariant
	TotalUsers          int
	UsersNeedingFortune int
	SuccessCount        int
	FailCount           int
	// Errors holds at most BatchConfig.MaxErrors messages, in completion order.
	Errors         []string
	ProcessingTime time.Duration
}
