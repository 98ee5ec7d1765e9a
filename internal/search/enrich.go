package search

import (
	"context"
	"log/slog"
	"sync"

	"github.com/anzaso/inkwell/internal/avatar"
)

// enrichUsers replaces each user's stored avatar reference with a signed URL,
// signing the whole bucket concurrently while preserving row order and
// identity. A signing failure leaves the unsigned reference in place: a
// broken avatar link is a far smaller failure than a failed search, so the
// error is only logged at debug. A page holds at most MaxPageSize rows, so
// unbounded goroutines here stay bounded in practice.
func enrichUsers(ctx context.Context, users []UserRow, signer avatar.Signer, logger *slog.Logger) {
	if signer == nil {
		return
	}

	var wg sync.WaitGroup
	for i := range users {
		if users[i].Avatar == nil || *users[i].Avatar == "" {
			continue
		}
		wg.Add(1)
		go func(row *UserRow) {
			defer wg.Done()
			signed, err := signer.Sign(ctx, *row.Avatar)
			if err != nil {
				logger.DebugContext(ctx, "avatar signing failed, keeping stored reference",
					"user_id", row.ID, "error", err)
				return
			}
			row.Avatar = &signed
		}(&users[i])
	}
	wg.Wait()
}
