package config

// Default configuration values.
const (
	DefaultHost         = "0.0.0.0"
	DefaultPort         = 8000
	DefaultDatabase     = "insightduck.duckdb"
	DefaultWorkers      = 4
	DefaultMetadataPath = "insightduck-meta.db"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

// defaults is the lowest-priority configuration layer.
func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.host":    DefaultHost,
		"server.port":    DefaultPort,
		"store.database": DefaultDatabase,
		"store.workers":  DefaultWorkers,
		"metadata.path":  DefaultMetadataPath,
		"auth.disabled":  true,
		"log.level":      DefaultLogLevel,
		"log.format":     DefaultLogFormat,
	}
}
