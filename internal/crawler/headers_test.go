package crawler

import (
	"net/http"
	"reflect"
	"testing"
)

func TestDeliveryHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Content-Length", "1234")
	h.Set("Cache-Control", "max-age=60")
	h.Set("ETag", `"abc"`)
	h.Set("Server", "nginx")
	h.Set("X-Powered-By", "PHP/8")
	h.Add("Set-Cookie", "session=secret; Path=/; HttpOnly")
	h.Add("Set-Cookie", "theme=dark")

	d := deliveryHeaders(h)

	if d.ContentType != "text/html; charset=utf-8" || d.CacheControl != "max-age=60" || d.ETag != `"abc"` {
		t.Errorf("unexpected projection: %+v", d)
	}
	if d.ContentLength == nil || *d.ContentLength != 1234 {
		t.Errorf("ContentLength = %v, want 1234", d.ContentLength)
	}
	if d.Server != "nginx" || d.XPoweredBy != "PHP/8" {
		t.Errorf("server headers = %q %q", d.Server, d.XPoweredBy)
	}
	if !reflect.DeepEqual(d.SetCookieNames, []string{"session", "theme"}) {
		t.Errorf("SetCookieNames = %v", d.SetCookieNames)
	}
}

func TestDeliveryHeadersMissingLength(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Length", "not-a-number")

	d := deliveryHeaders(h)
	if d.ContentLength != nil {
		t.Errorf("ContentLength = %d, want nil", *d.ContentLength)
	}
	if d.SetCookieNames == nil || len(d.SetCookieNames) != 0 {
		t.Errorf("SetCookieNames = %v, want empty list", d.SetCookieNames)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Security-Policy", "default-src 'self'")
	h.Set("Strict-Transport-Security", "max-age=31536000")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "no-referrer")

	got := securityHeaders(h)
	want := SecurityHeaders{
		ContentSecurityPolicy:   "default-src 'self'",
		StrictTransportSecurity: "max-age=31536000",
		XFrameOptions:           "DENY",
		XContentTypeOptions:     "nosniff",
		ReferrerPolicy:          "no-referrer",
	}
	if got != want {
		t.Errorf("securityHeaders = %+v, want %+v", got, want)
	}
}
