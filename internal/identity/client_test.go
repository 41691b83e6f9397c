package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHasPermission(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/permissions/check" {
			t.Errorf("path = %q", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("actor") != "member-a" || query.Get("organization") != "org-001" || query.Get("action") != "schedules:manage" {
			t.Errorf("query = %v", query)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"allowed":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	allowed, err := client.HasPermission(context.Background(), "member-a", "org-001", "schedules:manage")
	if err != nil {
		t.Fatalf("HasPermission returned error: %v", err)
	}
	if !allowed {
		t.Fatal("expected permission to be granted")
	}
}

func TestEligibleMembers(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/organizations/org-001/stables/stable-001/members" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"members":[{"id":"member-a","display_name":"Anna"},{"id":"member-b","display_name":"Bea"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	members, err := client.EligibleMembers(context.Background(), "org-001", "stable-001")
	if err != nil {
		t.Fatalf("EligibleMembers returned error: %v", err)
	}
	if len(members) != 2 || members[0].ID != "member-a" || members[1].DisplayName != "Bea" {
		t.Fatalf("members = %+v", members)
	}
}

func TestUnexpectedStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	if _, err := client.HasPermission(context.Background(), "member-a", "org-001", "schedules:manage"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestMissingBaseURL(t *testing.T) {
	t.Parallel()

	client := NewClient("", nil)
	if _, err := client.EligibleMembers(context.Background(), "org-001", "stable-001"); err == nil {
		t.Fatal("expected error when base URL is unset")
	}
}
