package llm

import (
	"errors"
	"testing"
)

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"  ```json\n{}\n```  ", "{}"},
		{"plain text reply", "plain text reply"},
		{"", ""},
	}
	for _, c := range cases {
		if got := StripCodeFences(c.in); got != c.want {
			t.Errorf("StripCodeFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNewProviderDrivers(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Driver: "openai", Model: "gpt-4o-mini", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if p.Name() != "openai" || p.Model() != "gpt-4o-mini" {
		t.Errorf("got %s/%s", p.Name(), p.Model())
	}

	// Empty driver defaults to openai.
	if _, err := NewProvider(ProviderConfig{Model: "gpt-4o-mini", APIKey: "sk-test"}); err != nil {
		t.Errorf("default driver: %v", err)
	}

	p, err = NewProvider(ProviderConfig{Driver: "anthropic", Model: "claude-sonnet-4-5", APIKey: "sk-ant-test"})
	if err != nil {
		t.Fatalf("anthropic: %v", err)
	}
	if p.Name() != "anthropic" {
		t.Errorf("name = %s", p.Name())
	}

	if _, err := NewProvider(ProviderConfig{Driver: "cohere", Model: "m"}); err == nil {
		t.Error("unknown driver should fail")
	}
}

func TestNewProviderMissingKey(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Driver: "openai", Model: "gpt-4o-mini"})
	var unavailable ErrUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}

	// A BaseURL makes the key optional for OpenAI-compatible servers.
	if _, err := NewProvider(ProviderConfig{Driver: "openai", Model: "local", BaseURL: "http://localhost:8080"}); err != nil {
		t.Errorf("local server: %v", err)
	}

	if _, err := NewProvider(ProviderConfig{Driver: "anthropic", Model: "claude-sonnet-4-5"}); !errors.As(err, &unavailable) {
		t.Errorf("anthropic without key: %v", err)
	}
}
