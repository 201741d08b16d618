package config

import "testing"

func validConfig() *Config {
	return &Config{
		Addr:                ":8080",
		MaxSubscriptions:    10000,
		SubscriberQueueCap:  10,
		PollPageSize:        100,
		PollRateLimit:       500,
		LogLevel:            "info",
		LogFormat:           "json",
		CacheEvictionPolicy: "keep",
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config to pass, got %v", err)
	}
}

func TestValidateRejectsEmptyAddr(t *testing.T) {
	c := validConfig()
	c.Addr = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected empty Addr to fail validation")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	c := validConfig()
	c.LogLevel = "verbose"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected unknown log level to fail validation")
	}
}

func TestValidateRejectsUnknownEvictionPolicy(t *testing.T) {
	c := validConfig()
	c.CacheEvictionPolicy = "purge"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected unknown eviction policy to fail validation")
	}
}
