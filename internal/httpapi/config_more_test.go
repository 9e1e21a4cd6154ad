package httpapi

import (
	"testing"
	"time"
)

func TestSetMaxBodyBytes_DefaultWhenNonPositive(t *testing.T) {
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(0)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB on zero, got %d", maxBodyBytes)
	}
}

func TestSetMaxBodyBytes_PositiveSetsValue(t *testing.T) {
	SetMaxBodyBytes(1234)
	defer SetMaxBodyBytes(0)
	if maxBodyBytes != 1234 {
		t.Fatalf("expected 1234, got %d", maxBodyBytes)
	}
}

func TestSetStreamPingInterval_NormalizesNonPositive(t *testing.T) {
	SetStreamPingInterval(-time.Second)
	if streamPingInterval != 30*time.Second {
		t.Fatalf("expected default, got %s", streamPingInterval)
	}
	SetStreamPingInterval(time.Second)
	defer SetStreamPingInterval(0)
	if streamPingInterval != time.Second {
		t.Fatalf("expected 1s, got %s", streamPingInterval)
	}
}

func TestSetCORSOptions_DefaultsMethodsAndHeaders(t *testing.T) {
	SetCORSOptions(true, []string{"http://deskhog.local"}, nil, nil)
	defer SetCORSOptions(false, nil, nil, nil)
	if len(corsAllowedMethods) == 0 || len(corsAllowedHeaders) == 0 {
		t.Fatalf("expected default methods and headers, got %v %v", corsAllowedMethods, corsAllowedHeaders)
	}
}
