package jwt

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/totegamma/concrnt-community"
)

const (
	tokenType = "JWT"
	algorithm = "CONCRNT"
)

var (
	ErrMalformed   = errors.New("malformed jwt")
	ErrUnsupported = errors.New("unsupported jwt type")
	ErrExpired     = errors.New("jwt is already expired")
)

var encoding = base64.RawURLEncoding

func encodeSegment(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return encoding.EncodeToString(raw), nil
}

func decodeSegment(segment string, v any) error {
	raw, err := encoding.DecodeString(segment)
	if err != nil {
		return errors.Wrap(ErrMalformed, err.Error())
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(ErrMalformed, err.Error())
	}
	return nil
}

// Create signs claims with privatekey.
func Create(claims Claims, privatekey string) (string, error) {
	header, err := encodeSegment(Header{Type: tokenType, Algorithm: algorithm})
	if err != nil {
		return "", err
	}
	payload, err := encodeSegment(claims)
	if err != nil {
		return "", err
	}

	signingInput := header + "." + payload
	signature, err := concrnt.SignBytes([]byte(signingInput), privatekey)
	if err != nil {
		return "", errors.Wrap(err, "sign jwt")
	}

	return signingInput + "." + encoding.EncodeToString(signature), nil
}

// Issue creates a short lived request token for audience, issued by the
// CCID derived from privatekey.
func Issue(privatekey, audience string, ttl time.Duration) (string, error) {
	ccid, err := concrnt.PrivKeyToAddr(privatekey, "con")
	if err != nil {
		return "", err
	}

	now := time.Now()
	return Create(Claims{
		Issuer:         ccid,
		Subject:        "concrnt",
		Audience:       audience,
		IssuedAt:       strconv.FormatInt(now.Unix(), 10),
		ExpirationTime: strconv.FormatInt(now.Add(ttl).Unix(), 10),
	}, privatekey)
}

// Validate parses token and checks its expiry and signature. The signer is
// the header's kid, or the issuer when kid is absent.
func Validate(token string) (*Header, *Claims, error) {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return nil, nil, ErrMalformed
	}

	var header Header
	if err := decodeSegment(segments[0], &header); err != nil {
		return nil, nil, err
	}
	if header.Type != tokenType || header.Algorithm != algorithm {
		return nil, nil, ErrUnsupported
	}

	var claims Claims
	if err := decodeSegment(segments[1], &claims); err != nil {
		return nil, nil, err
	}
	if err := checkExpiry(claims.ExpirationTime, time.Now()); err != nil {
		return nil, nil, err
	}

	signature, err := encoding.DecodeString(segments[2])
	if err != nil {
		return nil, nil, errors.Wrap(ErrMalformed, err.Error())
	}

	signer := header.KeyID
	if signer == "" {
		signer = claims.Issuer
	}
	signingInput := segments[0] + "." + segments[1]
	if err := concrnt.VerifySignature([]byte(signingInput), signature, signer); err != nil {
		return nil, nil, err
	}

	return &header, &claims, nil
}

func checkExpiry(exp string, now time.Time) error {
	if exp == "" {
		return nil
	}
	unix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return errors.Wrap(ErrMalformed, "exp")
	}
	if unix < now.Unix() {
		return ErrExpired
	}
	return nil
}
