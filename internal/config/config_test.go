package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/totegamma/concrnt-community"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key failed: %v", err)
	}
	priv := hex.EncodeToString(crypto.FromECDSA(key))

	path := writeConfig(t, `
nodeInfo:
  fqdn: example.com
  privatekey: `+priv+`
  layer: dev
server:
  postgresDsn: "sqlite://:memory:"
  redisAddr: localhost:6379
  idempotencyTTL: 30s
`)

	conf, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if conf.NodeInfo.FQDN != "example.com" {
		t.Fatalf("unexpected fqdn %s", conf.NodeInfo.FQDN)
	}
	if !concrnt.IsCSID(conf.NodeInfo.CSID) {
		t.Fatalf("expected derived csid, got %s", conf.NodeInfo.CSID)
	}
	if conf.Server.IdempotencyTTL != 30*time.Second {
		t.Fatalf("unexpected ttl %v", conf.Server.IdempotencyTTL)
	}
	if conf.Server.ListenAddr != ":8000" || conf.Server.LogLevel != "info" {
		t.Fatalf("defaults not applied: %+v", conf.Server)
	}
}

func TestLoadRequiresPrivateKey(t *testing.T) {
	path := writeConfig(t, "nodeInfo:\n  fqdn: example.com\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected missing private key error")
	}
}
