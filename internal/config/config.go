package config

import (
	"os"
	"strconv"
)

// Config holds all configuration for the AgentBridge server.
type Config struct {
	Port          int
	Version       string
	EncryptionKey string
	Database      DatabaseConfig
	Vector        VectorConfig
	Telemetry     TelemetryConfig
}

type DatabaseConfig struct {
	// URL enables the PostgreSQL chunk table for the scan index.
	// Empty keeps everything in memory (zero config).
	URL string
}

type VectorConfig struct {
	// Backend selects the vector index: "scan" (exact, relational rows)
	// or "pinecone" (remote ANN). Chosen once at startup.
	Backend        string
	PineconeHost   string
	PineconeAPIKey string
	ChunkSize      int
	ChunkOverlap   int
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:          envInt("AGENTBRIDGE_PORT", 8080),
		Version:       envStr("AGENTBRIDGE_VERSION", "0.2.0"),
		EncryptionKey: envStr("AGENTBRIDGE_ENCRYPTION_KEY", "dev-only-insecure-key"),
		Database: DatabaseConfig{
			URL: envStr("DATABASE_URL", ""),
		},
		Vector: VectorConfig{
			Backend:        envStr("VECTOR_BACKEND", "scan"),
			PineconeHost:   envStr("PINECONE_HOST", ""),
			PineconeAPIKey: envStr("PINECONE_API_KEY", ""),
			ChunkSize:      envInt("CHUNK_SIZE", 512),
			ChunkOverlap:   envInt("CHUNK_OVERLAP", 50),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "agentbridge"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
