// Package netx resolves the client identifier used for attempt tracking.
package netx

import (
	"net"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/resumegate/internal/common"
)

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP. When
// neither is present it returns the RemoteAddr host if trustRemoteAddr is
// set, and common.UnknownClientID otherwise. Headers are taken as sent, so
// the server must sit behind a proxy that overwrites them.
func ClientIP(r *http.Request, trustRemoteAddr bool) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	if trustRemoteAddr && r.RemoteAddr != "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	}

	return common.UnknownClientID
}
