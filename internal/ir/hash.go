package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for a future algorithm change.
const (
	DomainRequest = "resgate/request/v1"
	DomainOutcome = "resgate/outcome/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RequestID computes the content-addressed ID of a built request.
// The same target, arguments and seq always produce the same ID.
// The actor is excluded: the ID names what is asked, not who asks.
func RequestID(kind, resource, target string, args IRObject, seq int64) (string, error) {
	obj := IRObject{
		"kind":     IRString(kind),
		"resource": IRString(resource),
		"target":   IRString(target),
		"args":     args.Clone(),
		"seq":      IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RequestID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRequest, canonical), nil
}

// OutcomeID computes the content-addressed ID of a journaled outcome.
func OutcomeID(requestID, outcomeCase string, value IRValue, seq int64) (string, error) {
	obj := IRObject{
		"request_id": IRString(requestID),
		"case":       IRString(outcomeCase),
		"value":      value,
		"seq":        IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("OutcomeID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainOutcome, canonical), nil
}
