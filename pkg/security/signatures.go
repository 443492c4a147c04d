package security

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SignatureInfo describes who stamped a closure and when.
type SignatureInfo struct {
	SignerName  string
	SigningTime time.Time
}

// ErrMalformedStamp is returned for stamps without a trailing timestamp.
var ErrMalformedStamp = errors.New("malformed signature stamp")

// Stamp builds the closure signature: the signer's name followed by the
// signing time in RFC 3339, UTC. It is a marker, not a cryptographic signature.
func Stamp(firstName, lastName string, at time.Time) string {
	name := strings.Join(strings.Fields(firstName+" "+lastName), " ")
	return fmt.Sprintf("%s %s", name, at.UTC().Format(time.RFC3339))
}

// ParseStamp splits a stamp back into signer and time.
func ParseStamp(stamp string) (SignatureInfo, error) {
	stamp = strings.TrimSpace(stamp)
	i := strings.LastIndex(stamp, " ")
	if i <= 0 {
		return SignatureInfo{}, ErrMalformedStamp
	}
	at, err := time.Parse(time.RFC3339Nano, stamp[i+1:])
	if err != nil {
		return SignatureInfo{}, fmt.Errorf("%w: %v", ErrMalformedStamp, err)
	}
	return SignatureInfo{SignerName: strings.TrimSpace(stamp[:i]), SigningTime: at}, nil
}
