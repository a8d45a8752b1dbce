package validation

import (
	"errors"
	"net/netip"
	"strings"
	"testing"
)

func TestNewAPIURLValidator(t *testing.T) {
	v := NewAPIURLValidator(true)
	if !v.AllowLocalhost || !v.AllowPrivateIPs {
		t.Error("expected local API hosts to be allowed")
	}

	strict := NewAPIURLValidator(false)
	if strict.AllowLocalhost || strict.AllowPrivateIPs {
		t.Error("expected strict validator to refuse local hosts")
	}
}

func TestNewAttachmentURLValidator(t *testing.T) {
	v := NewAttachmentURLValidator()
	if v.AllowLocalhost {
		t.Error("Expected AllowLocalhost to be false for attachments")
	}
	if !v.KeepQuery {
		t.Error("attachment URLs must keep their query (signed links)")
	}
}

func TestAPIURLValidateAndNormalize(t *testing.T) {
	v := NewAPIURLValidator(true)

	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  error
	}{
		{name: "empty URL", input: "   ", wantErr: ErrEmptyURL},
		{name: "local dev server", input: "http://localhost:8080/v1", expected: "http://localhost:8080/v1"},
		{name: "trailing slash dropped", input: "https://api.profe.app/v1/", expected: "https://api.profe.app/v1"},
		{name: "scheme added", input: "api.profe.app", expected: "https://api.profe.app"},
		{name: "query and fragment dropped", input: "https://API.profe.app/v1?x=1#top", expected: "https://api.profe.app/v1"},
		{name: "ftp refused", input: "ftp://api.profe.app", wantErr: ErrURLScheme},
		{name: "traversal refused", input: "https://api.profe.app/../etc", wantErr: ErrURLTraversal},
		{name: "quotes refused", input: `https://api.profe.app/"v1"`, wantErr: ErrURLCharacters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ValidateAndNormalize(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ValidateAndNormalize(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateAndNormalize(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ValidateAndNormalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestAttachmentURLValidation(t *testing.T) {
	v := NewAttachmentURLValidator()

	tests := []struct {
		input   string
		wantErr error
	}{
		{"https://bucket.s3.amazonaws.com/notes/parcial.pdf?X-Amz-Signature=abc", nil},
		{"http://localhost/notes/a.pdf", ErrLocalhost},
		{"http://127.0.0.1/notes/a.pdf", ErrLocalhost},
		{"http://192.168.1.10/a.png", ErrPrivateIP},
		{"http://10.0.0.4/a.png", ErrPrivateIP},
		{"file:///etc/passwd", ErrURLScheme},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := v.ValidateAndNormalize(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !strings.Contains(got, "X-Amz-Signature=abc") {
					t.Errorf("query lost: %q", got)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestURLTooLong(t *testing.T) {
	v := NewAPIURLValidator(true)
	long := "https://api.profe.app/" + strings.Repeat("a", 3000)
	if _, err := v.ValidateAndNormalize(long); err == nil {
		t.Error("expected long URL to be rejected")
	}
}

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"LOCALHOST", true},
		{"api.localhost", true},
		{"127.0.0.1", true},
		{"127.0.0.53", true},
		{"::1", true},
		{"profe.app", false},
		{"10.0.0.1", false},
	}
	for _, tt := range tests {
		if got := isLocalhost(tt.host); got != tt.want {
			t.Errorf("isLocalhost(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestIsPrivateAddr(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"172.32.0.1", false},
		{"192.168.0.1", true},
		{"169.254.1.1", true},
		{"fd00::1", true},
		{"fe80::1", true},
		{"8.8.8.8", false},
		{"2001:4860:4860::8888", false},
	}
	for _, tt := range tests {
		if got := isPrivateAddr(netip.MustParseAddr(tt.ip)); got != tt.want {
			t.Errorf("isPrivateAddr(%s) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}
