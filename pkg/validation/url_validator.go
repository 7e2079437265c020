package validation

import (
	"net/url"
	"strings"

	apperrors "github.com/anime-shed/idcard-inspector-go/internal/errors"
)

// URLValidator checks remote card image URLs before they are fetched.
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURLValidator accepts http and https URLs on any host.
func NewURLValidator() *URLValidator {
	return NewURLValidatorWithOptions([]string{"http", "https"}, nil)
}

// NewURLValidatorWithOptions restricts schemes and, when hosts is not
// empty, host names. Host names compare case-insensitively and ignore the
// port.
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	normalized := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			normalized = append(normalized, h)
		}
	}
	return &URLValidator{
		allowedSchemes: schemes,
		allowedHosts:   normalized,
	}
}

// ValidateImageURL returns the parsed URL when it may be fetched.
func (v *URLValidator) ValidateImageURL(imageURL string) (*url.URL, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil {
		return nil, apperrors.NewValidationError("Invalid URL format", err)
	}
	if !v.isSchemeAllowed(parsed.Scheme) {
		return nil, apperrors.NewValidationError("URL scheme not allowed", nil)
	}
	if parsed.Hostname() == "" {
		return nil, apperrors.NewValidationError("URL must have a valid host", nil)
	}
	if parsed.User != nil {
		return nil, apperrors.NewValidationError("URL must not carry credentials", nil)
	}
	if !v.isHostAllowed(parsed.Hostname()) {
		return nil, apperrors.NewValidationError("URL host not allowed", nil)
	}
	return parsed, nil
}

func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isHostAllowed is true for every host when no restriction is set.
func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, allowed := range v.allowedHosts {
		if host == allowed {
			return true
		}
	}
	return false
}
