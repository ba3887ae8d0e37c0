package validate

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
)

// URL validation errors
var (
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrDisallowedScheme = errors.New("URL scheme not allowed")
	ErrPrivateHost      = errors.New("URL points at a private host")
)

// URLConstraints defines validation constraints for URLs.
type URLConstraints struct {
	AllowedSchemes []string // e.g., []string{"https", "http"}
	BlockPrivate   bool     // Reject localhost and private or loopback IP literals
	MaxLength      int      // Maximum URL length (0 = no limit)
}

// ServiceURLConstraints applies to configured upstream base URLs.
// Private hosts are allowed so local fakes and sidecars work.
var ServiceURLConstraints = URLConstraints{
	AllowedSchemes: []string{"https", "http"},
	MaxLength:      2048,
}

// PublicLinkConstraints applies to links handed back to clients.
var PublicLinkConstraints = URLConstraints{
	AllowedSchemes: []string{"https", "http"},
	BlockPrivate:   true,
	MaxLength:      2048,
}

// URL validates a URL against the given constraints.
// Returns the trimmed URL and an error if validation fails.
// Hostnames are never resolved.
func URL(urlStr string, constraints URLConstraints) (string, error) {
	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return "", ErrEmpty
	}
	if constraints.MaxLength > 0 && len(urlStr) > constraints.MaxLength {
		return "", fmt.Errorf("%w: URL exceeds %d characters", ErrStringTooLong, constraints.MaxLength)
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if len(constraints.AllowedSchemes) > 0 && !slices.Contains(constraints.AllowedSchemes, strings.ToLower(parsedURL.Scheme)) {
		return "", fmt.Errorf("%w: got %q, allowed: %v", ErrDisallowedScheme, parsedURL.Scheme, constraints.AllowedSchemes)
	}

	hostname := parsedURL.Hostname()
	if hostname == "" {
		return "", fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}
	if constraints.BlockPrivate && isPrivateHost(hostname) {
		return "", fmt.Errorf("%w: %s", ErrPrivateHost, hostname)
	}
	return urlStr, nil
}

// ServiceURL validates a configured upstream base URL.
func ServiceURL(urlStr string) (string, error) {
	return URL(urlStr, ServiceURLConstraints)
}

// PublicLink validates an event or image link taken from a provider.
func PublicLink(urlStr string) (string, error) {
	return URL(urlStr, PublicLinkConstraints)
}

func isPrivateHost(hostname string) bool {
	lower := strings.ToLower(hostname)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") || lower == "localhost.localdomain" {
		return true
	}
	ip := net.ParseIP(hostname)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
