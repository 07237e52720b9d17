package concrnt

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const GlobalCommunityChannel = "community"

// ParseCCURI splits a (possibly query-escaped) cc:// uri into its owner
// and key.
func ParseCCURI(escaped string) (owner string, key string, err error) {
	raw, err := url.QueryUnescape(escaped)
	if err != nil {
		return "", "", fmt.Errorf("invalid uri encoding: %w", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid uri: %w", err)
	}
	if u.Scheme != "cc" {
		return "", "", fmt.Errorf("unsupported uri scheme %q", u.Scheme)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

func ComposeCCURI(owner, key string) string {
	return (&url.URL{Scheme: "cc", Host: owner, Path: key}).String()
}

// CommunityURI addresses a community under its owner, e.g. cc://con1.../community/1
func CommunityURI(owner string, id uint64) string {
	return ComposeCCURI(owner, "/community/"+strconv.FormatUint(id, 10))
}

// CommunityChannel is the signal channel carrying events of a single community.
func CommunityChannel(id uint64) string {
	return GlobalCommunityChannel + "/" + strconv.FormatUint(id, 10)
}

func isAddress(keyID, hrp string) bool {
	return len(keyID) == 42 && strings.HasPrefix(keyID, hrp) && !strings.Contains(keyID, ".")
}

func IsCCID(keyID string) bool { return isAddress(keyID, "con") }

func IsCSID(keyID string) bool { return isAddress(keyID, "ccs") }

func IsCKID(keyID string) bool { return isAddress(keyID, "cck") }
