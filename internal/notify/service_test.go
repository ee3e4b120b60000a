package notify

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "noreply@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "noreply@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestSendFailsWhenUnconfigured(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.SendEmail([]string{"a@example.com"}, "subject", "body"); err == nil {
		t.Error("SendEmail on unconfigured service succeeded, want error")
	}
	if err := svc.SendHTMLEmail([]string{"a@example.com"}, "subject", "<p>body</p>"); err == nil {
		t.Error("SendHTMLEmail on unconfigured service succeeded, want error")
	}
}

func TestInviteTemplateRenders(t *testing.T) {
	html, err := renderTemplate(inviteEmailTemplate, InviteData{
		AppName:     "Concord",
		UserName:    "Ada",
		EntityTitle: "Shorter meetings",
		EntityURL:   "https://concord.example/amendments/amd_1",
		InviterName: "Ben",
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Ada", "Ben", "Shorter meetings", "https://concord.example/amendments/amd_1"} {
		if !strings.Contains(html, want) {
			t.Errorf("invite email missing %q", want)
		}
	}
}

func TestForwardingTemplateRenders(t *testing.T) {
	html, err := renderTemplate(forwardingEmailTemplate, ForwardingData{
		AppName:        "Concord",
		UserName:       "Ada",
		AmendmentTitle: "Shorter meetings",
		GroupName:      "Regional B",
		EventTitle:     "Board meeting",
		AmendmentURL:   "https://concord.example/amendments/amd_1",
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Shorter meetings", "Regional B", "Board meeting"} {
		if !strings.Contains(html, want) {
			t.Errorf("forwarding email missing %q", want)
		}
	}

	// Without an event the fallback line renders instead.
	html, err = renderTemplate(forwardingEmailTemplate, ForwardingData{
		AppName:        "Concord",
		UserName:       "Ada",
		AmendmentTitle: "Shorter meetings",
		GroupName:      "Regional B",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "No decision event is scheduled yet") {
		t.Error("forwarding email missing no-event fallback")
	}
}
