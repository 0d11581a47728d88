// Package storage keeps an append-only copy of inbound gateway notifications
// in object storage so ledger discrepancies can be reconciled after the fact.
package storage

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ObjectStore is the subset of an S3-compatible bucket the archive needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// NotificationArchive writes raw notification bodies under a date-partitioned key.
type NotificationArchive struct {
	store   ObjectStore
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

// NewNotificationArchive returns nil when store is nil; a nil archive drops writes.
func NewNotificationArchive(store ObjectStore, prefix string) *NotificationArchive {
	if store == nil {
		return nil
	}
	return &NotificationArchive{store: store, prefix: prefix, timeout: 10 * time.Second, now: time.Now}
}

// Key returns the object key for a notification.
func (a *NotificationArchive) Key(flow, orderID, requestID string) string {
	day := a.now().UTC().Format("2006/01/02")
	name := fmt.Sprintf("%s-%s.json", sanitize(orderID), sanitize(requestID))
	return path.Join(a.prefix, flow, day, name)
}

// Save stores body in the background. Archive failures never affect the caller.
func (a *NotificationArchive) Save(flow, orderID, requestID string, body []byte) {
	if a == nil || len(body) == 0 {
		return
	}
	key := a.Key(flow, orderID, requestID)
	data := append([]byte(nil), body...)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		// Never overwrite an earlier delivery archived under the same key.
		if exists, err := a.store.Exists(ctx, key); err == nil && exists {
			key = strings.TrimSuffix(key, ".json") + "-" + strconv.FormatInt(a.now().UnixNano(), 10) + ".json"
		}
		if err := a.store.Put(ctx, key, data, "application/json"); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to archive notification")
			return
		}
		log.Debug().Str("key", key).Msg("Notification archived")
	}()
}

func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
