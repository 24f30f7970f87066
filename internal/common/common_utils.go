package common

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"skyhook/flightline/internal/constants"
	"skyhook/flightline/internal/models/dtos"
)

func GetResponseTime(init time.Time) string {
	timeDiff := time.Since(init).Milliseconds()
	return fmt.Sprintf("%dms", timeDiff)
}

// ClientIP extracts the best-effort client address: the first value of the
// X-Forwarded-For chain when present, otherwise the direct remote address.
// Returns nil when nothing usable is available.
func ClientIP(r *http.Request) *string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return &first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return nil
	}
	return &host
}

// UserAgent returns the request's user agent, nil when absent.
func UserAgent(r *http.Request) *string {
	ua := r.UserAgent()
	if ua == "" {
		return nil
	}
	return &ua
}

// CandidateCacheKey is the cache key under which a flight's ranked candidate
// list is stored after an ambiguous auto-import outcome.
func CandidateCacheKey(flightID string) string {
	return string(constants.CachePrefixCandidates) + flightID
}

// GetCandidatesFromCache returns the cached ranked candidate list for a
// flight, nil when missing or expired.
func GetCandidatesFromCache(c CacheInterface, flightID string) []dtos.RankedCandidate {
	val, found := c.Get(CandidateCacheKey(flightID))
	if !found {
		return nil
	}

	if ranked, ok := val.([]dtos.RankedCandidate); ok {
		return ranked
	}
	return nil
}
