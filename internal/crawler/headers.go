package crawler

import (
	"net/http"
	"strconv"
	"strings"
)

// DeliveryHeaders is the fixed projection of caching and delivery headers
type DeliveryHeaders struct {
	ContentType     string   `json:"content_type"`
	ContentLength   *int64   `json:"content_length"`
	ContentEncoding string   `json:"content_encoding"`
	CacheControl    string   `json:"cache_control"`
	ETag            string   `json:"etag"`
	LastModified    string   `json:"last_modified"`
	Server          string   `json:"server"`
	XPoweredBy      string   `json:"x_powered_by"`
	SetCookieNames  []string `json:"set_cookie_names"`
}

// SecurityHeaders is the fixed projection of security-related headers
type SecurityHeaders struct {
	ContentSecurityPolicy   string `json:"content_security_policy"`
	StrictTransportSecurity string `json:"strict_transport_security"`
	XFrameOptions           string `json:"x_frame_options"`
	XContentTypeOptions     string `json:"x_content_type_options"`
	ReferrerPolicy          string `json:"referrer_policy"`
	PermissionsPolicy       string `json:"permissions_policy"`
}

// lowerHeaders flattens h to lower-cased names and first values
func lowerHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			out[strings.ToLower(name)] = values[0]
		}
	}
	return out
}

func deliveryHeaders(h http.Header) DeliveryHeaders {
	lower := lowerHeaders(h)
	d := DeliveryHeaders{
		ContentType:     lower["content-type"],
		ContentEncoding: lower["content-encoding"],
		CacheControl:    lower["cache-control"],
		ETag:            lower["etag"],
		LastModified:    lower["last-modified"],
		Server:          lower["server"],
		XPoweredBy:      lower["x-powered-by"],
		SetCookieNames:  cookieNames(h.Values("Set-Cookie")),
	}
	if v, ok := lower["content-length"]; ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			d.ContentLength = &n
		}
	}
	return d
}

func securityHeaders(h http.Header) SecurityHeaders {
	lower := lowerHeaders(h)
	return SecurityHeaders{
		ContentSecurityPolicy:   lower["content-security-policy"],
		StrictTransportSecurity: lower["strict-transport-security"],
		XFrameOptions:           lower["x-frame-options"],
		XContentTypeOptions:     lower["x-content-type-options"],
		ReferrerPolicy:          lower["referrer-policy"],
		PermissionsPolicy:       lower["permissions-policy"],
	}
}

// cookieNames keeps only the name of every Set-Cookie value
func cookieNames(values []string) []string {
	names := []string{}
	for _, v := range values {
		resp := &http.Response{Header: http.Header{"Set-Cookie": {v}}}
		if cs := resp.Cookies(); len(cs) == 1 {
			names = append(names, cs[0].Name)
			continue
		}
		pair, _, _ := strings.Cut(v, ";")
		if name, _, ok := strings.Cut(pair, "="); ok && strings.TrimSpace(name) != "" {
			names = append(names, strings.TrimSpace(name))
		}
	}
	return names
}
