package postgres

import (
	"context"
	"testing"
	"time"
)

func TestAuditPoolOptions_PgxConfig(t *testing.T) {
	opts := DefaultAuditPoolOptions("postgres://u:p@db:5432/audiostream?sslmode=disable&pool_min_conns=3")

	pc, err := opts.pgxConfig()
	if err != nil {
		t.Fatalf("pgxConfig() error = %v", err)
	}

	if pc.MaxConns != 4 {
		t.Errorf("MaxConns = %d, want 4", pc.MaxConns)
	}
	if pc.MinConns != 0 {
		t.Errorf("MinConns = %d, want 0", pc.MinConns)
	}
	if pc.MaxConnIdleTime != 10*time.Minute {
		t.Errorf("MaxConnIdleTime = %v, want 10m", pc.MaxConnIdleTime)
	}
	if got := pc.ConnConfig.RuntimeParams["application_name"]; got != "audiostream" {
		t.Errorf("application_name = %q, want audiostream", got)
	}
	if pc.ConnConfig.Host != "db" || pc.ConnConfig.Database != "audiostream" {
		t.Errorf("ConnConfig = %s/%s", pc.ConnConfig.Host, pc.ConnConfig.Database)
	}
}

func TestAuditPoolOptions_PgxConfig_KeepsDSNSettingsWhenUnset(t *testing.T) {
	opts := AuditPoolOptions{DSN: "postgres://u:p@db:5432/audiostream?pool_max_conns=7&application_name=custom"}

	pc, err := opts.pgxConfig()
	if err != nil {
		t.Fatalf("pgxConfig() error = %v", err)
	}
	if pc.MaxConns != 7 {
		t.Errorf("MaxConns = %d, want 7 from DSN", pc.MaxConns)
	}
	if got := pc.ConnConfig.RuntimeParams["application_name"]; got != "custom" {
		t.Errorf("application_name = %q, want custom", got)
	}
}

func TestOpenAuditPool_InvalidDSN(t *testing.T) {
	_, err := OpenAuditPool(context.Background(), DefaultAuditPoolOptions("postgres://u:p@db:notaport/x"))
	if err == nil {
		t.Fatal("expected error for invalid DSN")
	}
}

func TestOpenAuditPool_Unreachable(t *testing.T) {
	opts := DefaultAuditPoolOptions("postgres://u:p@127.0.0.1:1/audiostream?sslmode=disable&connect_timeout=1")
	opts.ConnectTimeout = 2 * time.Second

	start := time.Now()
	_, err := OpenAuditPool(context.Background(), opts)
	if err == nil {
		t.Fatal("expected error for unreachable database")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("OpenAuditPool took %v, want it bounded by ConnectTimeout", elapsed)
	}
}
