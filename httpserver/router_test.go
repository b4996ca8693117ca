package httpserver

import "testing"

func ok(body string) Handler {
	return func(*Request) *Response {
		r := NewResponse(200, "OK")
		r.SetBody(body)
		return r
	}
}

func TestRouterExactMatch(t *testing.T) {
	r := NewRouter(ok("default"))
	r.Handle("/status", ok("status"))

	resp := r.Find("/status")(nil)
	if resp.Body != "status" {
		t.Fatalf("expected exact match handler, got %q", resp.Body)
	}
}

func TestRouterFallsBackToDefault(t *testing.T) {
	r := NewRouter(ok("default"))
	r.Handle("/status", ok("status"))

	resp := r.Find("/nowhere")(nil)
	if resp.Body != "default" {
		t.Fatalf("expected default handler, got %q", resp.Body)
	}
}

func TestRouterWildcardSegmentIsSoftCandidate(t *testing.T) {
	r := NewRouter(ok("default"))
	r.Handle("/api/", ok("api-candidate"))
	r.Handle("/api/users", ok("users"))

	if got := r.Find("/api/users")(nil).Body; got != "users" {
		t.Fatalf("expected exact match to win over soft candidate, got %q", got)
	}
	if got := r.Find("/api/unknown")(nil).Body; got != "api-candidate" {
		t.Fatalf("expected soft candidate fallback, got %q", got)
	}
}

func TestRouterStarForceMatchesEverythingBeneath(t *testing.T) {
	r := NewRouter(ok("default"))
	r.Handle("/static/*", ok("static-asset"))

	if got := r.Find("/static/css/app.css")(nil).Body; got != "static-asset" {
		t.Fatalf("expected force match under /static, got %q", got)
	}
}

func TestRouterRootPathUsesDefault(t *testing.T) {
	r := NewRouter(ok("default"))
	if got := r.Find("/")(nil).Body; got != "default" {
		t.Fatalf("expected default handler for root, got %q", got)
	}
}
