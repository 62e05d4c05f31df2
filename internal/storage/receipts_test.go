package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReceiptKeyIsTimestampQualified(t *testing.T) {
	now := time.Date(2026, 2, 14, 10, 30, 0, 0, time.UTC)

	key := receiptKey("hackathon", "receipt.PDF", now)

	assert.True(t, strings.HasPrefix(key, "receipts/hackathon/2026-02-14/"), "key = %s", key)
	assert.True(t, strings.HasSuffix(key, ".pdf"), "extension should be lowercased: %s", key)
	assert.Contains(t, key, "/1771065000000-")
}

func TestReceiptKeyUniqueForSameInput(t *testing.T) {
	now := time.Now().UTC()

	a := receiptKey("hackathon", "receipt.pdf", now)
	b := receiptKey("hackathon", "receipt.pdf", now)

	assert.NotEqual(t, a, b, "two uploads of the same filename must not collide")
}

func TestPublicURLFallsBackToEndpointAndBucket(t *testing.T) {
	s := &ReceiptStore{cfg: S3Config{
		Endpoint: "https://storage.example.com/",
		Bucket:   "receipts",
	}}

	got := s.PublicURL("receipts/hackathon/x.pdf")

	assert.Equal(t, "https://storage.example.com/receipts/receipts/hackathon/x.pdf", got)
}

func TestPublicURLPrefersConfiguredBase(t *testing.T) {
	s := &ReceiptStore{cfg: S3Config{
		PublicBaseURL: "https://cdn.example.com/receipts/",
	}}

	got := s.PublicURL("receipts/hackathon/x.pdf")

	assert.Equal(t, "https://cdn.example.com/receipts/receipts/hackathon/x.pdf", got)
}
