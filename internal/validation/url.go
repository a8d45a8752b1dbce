package validation

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"path"
	"strings"
)

var (
	ErrEmptyURL      = errors.New("URL cannot be empty")
	ErrURLScheme     = errors.New("URL must use http or https")
	ErrURLHost       = errors.New("URL must have a valid hostname")
	ErrLocalhost     = errors.New("localhost URLs are not permitted")
	ErrPrivateIP     = errors.New("private IP addresses are not permitted")
	ErrURLTraversal  = errors.New("directory traversal patterns not allowed in URL path")
	ErrURLCharacters = errors.New("URL contains invalid characters")
)

// URLValidator checks URLs before the client talks to them or hands them to
// an external viewer.
type URLValidator struct {
	AllowLocalhost  bool
	AllowPrivateIPs bool
	// DefaultScheme is prepended when the input has none.
	DefaultScheme string
	// KeepQuery preserves the query string; API base URLs drop it.
	KeepQuery bool
	MaxLength int
}

// NewAPIURLValidator validates the REST base URL. The API commonly runs
// locally during development, so loopback and private hosts are allowed
// unless allowPrivate is false.
func NewAPIURLValidator(allowPrivate bool) *URLValidator {
	return &URLValidator{
		AllowLocalhost:  allowPrivate,
		AllowPrivateIPs: allowPrivate,
		DefaultScheme:   "https",
		MaxLength:       2048,
	}
}

// NewAttachmentURLValidator validates note attachment links. Those come from
// other users, so local targets are refused.
func NewAttachmentURLValidator() *URLValidator {
	return &URLValidator{
		DefaultScheme: "https",
		KeepQuery:     true,
		MaxLength:     4096,
	}
}

// ValidateAndNormalize returns the cleaned URL string.
func (v *URLValidator) ValidateAndNormalize(input string) (string, error) {
	u, err := v.Parse(input)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Parse validates input and returns it as a *url.URL.
func (v *URLValidator) Parse(input string) (*url.URL, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyURL
	}
	if v.MaxLength > 0 && len(input) > v.MaxLength {
		return nil, fmt.Errorf("URL too long (max %d characters)", v.MaxLength)
	}
	if strings.ContainsAny(input, "<>\"'` ") {
		return nil, ErrURLCharacters
	}

	if !strings.Contains(input, "://") {
		scheme := v.DefaultScheme
		if scheme == "" {
			scheme = "https"
		}
		input = scheme + "://" + input
	}

	u, err := url.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("invalid URL format: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrURLScheme
	}
	if u.Hostname() == "" {
		return nil, ErrURLHost
	}
	if err := v.checkHost(u.Hostname()); err != nil {
		return nil, err
	}
	if strings.Contains(u.Path, "..") {
		return nil, ErrURLTraversal
	}
	if q := strings.ToLower(u.RawQuery); strings.Contains(q, "<script") || strings.Contains(q, "javascript:") {
		return nil, fmt.Errorf("suspicious query parameters detected")
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if !v.KeepQuery {
		u.RawQuery = ""
		if u.Path != "" {
			u.Path = strings.TrimSuffix(path.Clean(u.Path), "/")
		}
	}
	return u, nil
}

func (v *URLValidator) checkHost(hostname string) error {
	if !v.AllowLocalhost && isLocalhost(hostname) {
		return ErrLocalhost
	}
	if addr, err := netip.ParseAddr(hostname); err == nil {
		if !v.AllowPrivateIPs && isPrivateAddr(addr) {
			return ErrPrivateIP
		}
		if addr.IsUnspecified() || addr == netip.AddrFrom4([4]byte{255, 255, 255, 255}) {
			return fmt.Errorf("unroutable address %s", hostname)
		}
	}
	return nil
}

func isLocalhost(hostname string) bool {
	hostname = strings.ToLower(strings.TrimSuffix(hostname, "."))
	if hostname == "localhost" || strings.HasSuffix(hostname, ".localhost") {
		return true
	}
	ip := net.ParseIP(hostname)
	return ip != nil && ip.IsLoopback()
}

func isPrivateAddr(addr netip.Addr) bool {
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast()
}
