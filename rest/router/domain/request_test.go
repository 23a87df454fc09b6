package domain

import "testing"

func TestRoute_NewRequestSubstitutesInOrder(t *testing.T) {
	rt := NewRoute("patch", "/webhooks/{webhook.id}/{webhook.token}/messages/{message.id}")
	req := rt.NewRequest(42, "a b/c", "7")

	if req.Method != "PATCH" {
		t.Fatalf("method=%q", req.Method)
	}
	if req.Template != rt.Template {
		t.Fatalf("template must be kept for bucketing, got %q", req.Template)
	}
	if want := "/webhooks/42/a%20b%2Fc/messages/7"; req.Path != want {
		t.Fatalf("path=%q want %q", req.Path, want)
	}
	if KeyFor(req) != ProvisionalKey("PATCH", rt.Template) {
		t.Fatalf("unexpected key %v", KeyFor(req))
	}
}

func TestRequest_WithIsCopy(t *testing.T) {
	base := NewRoute("GET", "/guilds/{guild.id}/webhooks").NewRequest(1)
	a := base.WithHeader("X-A", "1").WithQuery("limit", "10")
	b := a.WithHeader("X-B", "2").WithReason("cleanup")

	if _, ok := a.Header["X-B"]; ok {
		t.Fatalf("WithHeader must not mutate the original")
	}
	if base.Header != nil || base.Query != nil {
		t.Fatalf("base must stay untouched")
	}
	if b.Reason != "cleanup" || a.Reason != "" {
		t.Fatalf("reason leaked between copies")
	}
	if b.Query.Get("limit") != "10" {
		t.Fatalf("query lost")
	}
}

func TestBucketKey_String(t *testing.T) {
	if got := ProvisionalKey("GET", "/x").String(); got != "route:GET /x" {
		t.Fatalf("got %q", got)
	}
	k := ConfirmedKey("abc")
	if !k.IsConfirmed() || k.String() != "bucket:abc" {
		t.Fatalf("got %q confirmed=%v", k.String(), k.IsConfirmed())
	}
}
