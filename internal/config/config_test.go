package config

import (
	"strings"
	"testing"
	"time"
)

func newValidViper() map[string]interface{} {
	return map[string]interface{}{
		"session.signing_secret": "secret",
		"identity.audience":      "studio-web",
		"identity.jwks_url":      "https://auth.studio.example/jwks",
		"identity.issuers":       "https://accounts.google.com, https://auth.studio.example",
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	for key, value := range newValidViper() {
		configViper.Set(key, value)
	}

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address: %q", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "studio.db" {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath)
	}
	if cfg.SessionTTL != time.Hour {
		t.Fatalf("unexpected session ttl: %v", cfg.SessionTTL)
	}
	if cfg.PricingBaseRate != 0.09 || cfg.PricingCurrency != "INR" {
		t.Fatalf("unexpected pricing defaults: %f %q", cfg.PricingBaseRate, cfg.PricingCurrency)
	}
	if cfg.RedisEnabled {
		t.Fatal("expected redis to be disabled by default")
	}
	if len(cfg.IdentityIssuers) != 2 || cfg.IdentityIssuers[1] != "https://auth.studio.example" {
		t.Fatalf("unexpected issuers: %v", cfg.IdentityIssuers)
	}
}

func TestLoadRejectsMissingRequiredValues(t *testing.T) {
	cases := []struct {
		name    string
		unset   string
		wantErr string
	}{
		{name: "missing secret", unset: "session.signing_secret", wantErr: "session.signing_secret"},
		{name: "missing audience", unset: "identity.audience", wantErr: "identity.audience"},
		{name: "missing jwks url", unset: "identity.jwks_url", wantErr: "identity.jwks_url"},
		{name: "missing issuers", unset: "identity.issuers", wantErr: "identity.issuers"},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			for key, value := range newValidViper() {
				if key == testCase.unset {
					continue
				}
				configViper.Set(key, value)
			}
			_, err := Load(configViper)
			if err == nil {
				t.Fatal("expected load to fail")
			}
			if !strings.Contains(err.Error(), testCase.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", testCase.wantErr, err)
			}
		})
	}
}

func TestLoadRejectsNonPositiveTTL(t *testing.T) {
	configViper := NewViper()
	for key, value := range newValidViper() {
		configViper.Set(key, value)
	}
	configViper.Set("session.ttl", "0s")

	if _, err := Load(configViper); err == nil {
		t.Fatal("expected load to fail for zero ttl")
	}
}
