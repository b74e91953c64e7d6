// Package codes generates the human-facing identifiers printed on bookings
// and tickets, and the payload encoded into ticket QR codes.
package codes

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	TicketPrefix      = "TKT"
	TransactionPrefix = "TXN"

	suffixLength = 5
	alphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var randomSource io.Reader = rand.Reader

// NewTicketNumber returns TKT-<base36 ms>-<5 random base36 chars>, uppercased.
func NewTicketNumber(now time.Time) (string, error) {
	suffix, err := randomSuffix(suffixLength)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(fmt.Sprintf("%s-%s-%s", TicketPrefix, base36Millis(now), suffix)), nil
}

// NewTransactionID returns TXN<base36 ms><5 random base36 chars>, uppercased.
func NewTransactionID(now time.Time) (string, error) {
	suffix, err := randomSuffix(suffixLength)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(TransactionPrefix + base36Millis(now) + suffix), nil
}

func base36Millis(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 36)
}

func randomSuffix(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	// 252 is the largest multiple of 36 below 256; higher bytes are dropped
	// so every character is equally likely.
	for len(out) < n {
		if _, err := io.ReadFull(randomSource, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= 252 {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// QRPayload is the document encoded into a ticket's QR code. Field order is
// fixed, so encoding the same ticket always yields the same bytes.
type QRPayload struct {
	TicketID     uuid.UUID `json:"ticketId"`
	TicketNumber string    `json:"ticketNumber"`
	EventID      uuid.UUID `json:"eventId"`
	UserID       uuid.UUID `json:"userId"`
}

func (p QRPayload) Encode() string {
	b, _ := json.Marshal(p)
	return string(b)
}

// ParseQRPayload decodes a payload produced by Encode.
func ParseQRPayload(raw string) (QRPayload, error) {
	var p QRPayload
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return QRPayload{}, fmt.Errorf("invalid qr payload: %w", err)
	}
	if p.TicketID == uuid.Nil || p.TicketNumber == "" || p.EventID == uuid.Nil || p.UserID == uuid.Nil {
		return QRPayload{}, fmt.Errorf("invalid qr payload: missing fields")
	}
	return p, nil
}

// CitySlug derives the popular-city id: lowercase name with whitespace runs
// collapsed to "-", followed by the state code.
func CitySlug(name, stateCode string) string {
	slug := strings.Join(strings.Fields(strings.ToLower(name)), "-")
	return slug + "-" + strings.ToUpper(strings.TrimSpace(stateCode))
}
