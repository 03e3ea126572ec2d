package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"google.golang.org/grpc/health"

	"github.com/quentinrf/luxpipe/internal/adapters/display"
	"github.com/quentinrf/luxpipe/internal/adapters/memory"
	"github.com/quentinrf/luxpipe/internal/config"
	"github.com/quentinrf/luxpipe/internal/metrics"
	"github.com/quentinrf/luxpipe/internal/ports"
)

func sinkKeys(d *ports.Dispatcher) []string {
	var keys []string
	for key := range d.Stats() {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func TestOpenRepository_SQLiteFailureIsReported(t *testing.T) {
	cfg := config.Default()
	cfg.RepoType = config.RepoSQLite
	cfg.DBPath = filepath.Join(t.TempDir(), "missing", "dir", "history.db")

	repo, closeRepo, err := openRepository(cfg)
	if err == nil {
		closeRepo()
		t.Fatal("expected an error for a database in a missing directory")
	}
	if repo != nil {
		t.Errorf("expected no repository, got %T", repo)
	}
}

func TestOpenRepository(t *testing.T) {
	cfg := config.Default()

	repo, closeRepo, err := openRepository(cfg)
	if err != nil {
		t.Fatalf("memory repository failed: %v", err)
	}
	if _, ok := repo.(*memory.ReadingRepository); !ok {
		t.Errorf("expected memory repository, got %T", repo)
	}
	if err := closeRepo(); err != nil {
		t.Errorf("close failed: %v", err)
	}

	cfg.RepoType = config.RepoSQLite
	cfg.DBPath = filepath.Join(t.TempDir(), "history.db")
	repo, closeRepo, err = openRepository(cfg)
	if err != nil {
		t.Fatalf("sqlite repository failed: %v", err)
	}
	if repo == nil {
		t.Fatal("expected a repository")
	}
	if err := closeRepo(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}

func TestRegisterChannels_HistoryDisabled(t *testing.T) {
	cfg := config.Default()
	dispatcher := ports.NewDispatcher(cfg.SinkTimeout, metrics.New())

	channels, err := registerChannels(cfg, dispatcher, display.NewBoard(nil), historyRepo(memory.NewReadingRepository(), false), nil, metrics.New())
	if err != nil {
		t.Fatalf("registerChannels failed: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(channels))
	}

	got := sinkKeys(dispatcher)
	want := []string{"display/als", "display/white"}
	if len(got) != len(want) {
		t.Fatalf("expected sinks %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected sinks %v, got %v", want, got)
		}
	}
}

func TestRegisterChannels_WithHistoryAndBroker(t *testing.T) {
	cfg := config.Default()
	cfg.Channels[1].History = false
	cfg.Broker = config.BrokerConfig{Enabled: true, URL: "mqtt://localhost:1"}
	m := metrics.New()
	dispatcher := ports.NewDispatcher(cfg.SinkTimeout, m)

	publisher := openBroker(cfg, m)
	if publisher == nil {
		t.Fatal("expected a broker publisher")
	}

	if _, err := registerChannels(cfg, dispatcher, display.NewBoard(nil), historyRepo(memory.NewReadingRepository(), true), publisher, m); err != nil {
		t.Fatalf("registerChannels failed: %v", err)
	}

	got := sinkKeys(dispatcher)
	want := []string{"broker/als", "broker/white", "display/als", "display/white", "history/als"}
	if len(got) != len(want) {
		t.Fatalf("expected sinks %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected sinks %v, got %v", want, got)
		}
	}
}

func TestOpenBroker_Disabled(t *testing.T) {
	cfg := config.Default()
	if p := openBroker(cfg, metrics.New()); p != nil {
		t.Error("expected no publisher when the broker is disabled")
	}

	cfg.Broker.Enabled = true
	if p := openBroker(cfg, metrics.New()); p != nil {
		t.Error("expected no publisher without a URL")
	}

	cfg.Broker.URL = "http://broker.local"
	if p := openBroker(cfg, metrics.New()); p != nil {
		t.Error("expected no publisher for an unsupported scheme")
	}
}

func TestOpenBroker_TLSFailureDisablesBroker(t *testing.T) {
	cfg := config.Default()
	cfg.Broker = config.BrokerConfig{
		Enabled: true,
		URL:     "mqtts://broker.example:8883",
		TLS:     config.TLSConfig{CA: filepath.Join(t.TempDir(), "missing-ca.pem")},
	}

	if p := openBroker(cfg, metrics.New()); p != nil {
		t.Error("expected the broker to be disabled when its TLS files cannot be loaded")
	}
}

func writeCA(t *testing.T) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "luxpipe-test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestOpenBroker_CAOnly(t *testing.T) {
	cfg := config.Default()
	cfg.Broker = config.BrokerConfig{
		Enabled: true,
		URL:     "mqtts://broker.example:8883",
		TLS:     config.TLSConfig{CA: writeCA(t)},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("CA-only broker TLS should be valid: %v", err)
	}

	p := openBroker(cfg, metrics.New())
	if p == nil {
		t.Fatal("expected a broker publisher with a CA-only TLS config")
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestNewGRPCServer_Services(t *testing.T) {
	cfg := config.Default()
	hs := health.NewServer()

	srv := newGRPCServer(cfg, memory.NewReadingRepository(), display.NewBoard(hs), hs)
	defer srv.Stop()

	var got []string
	for name := range srv.GetServiceInfo() {
		got = append(got, name)
	}
	sort.Strings(got)

	want := []string{"grpc.health.v1.Health", "luxpipe.LightService"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected services %v, got %v", want, got)
	}
}
