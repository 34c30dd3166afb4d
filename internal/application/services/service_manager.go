package services

import (
	"os"

	"github.com/screenlab/reports/internal/infrastructure/database"
	"github.com/screenlab/reports/internal/infrastructure/persistence"
	"github.com/screenlab/reports/pkg/serialize"
)

// ServiceManager wires the report engine's services together
type ServiceManager struct {
	db *database.Connection

	Registry *SchemaRegistry
	Cache    *persistence.ResultWindowCache
	Reports  *ReportService
}

// ManagerConfig carries the deployment-specific knobs
type ManagerConfig struct {
	// MaxCacheableRows bounds a single cached execution; zero selects
	// the default
	MaxCacheableRows int

	// ExportDir receives spreadsheet temp files; empty selects the
	// system temp dir
	ExportDir string

	// Images resolves stored image references for serialization
	Images serialize.ImageResolver

	// FetchFile loads image bytes for spreadsheet cell embedding
	FetchFile func(uri string) ([]byte, error)
}

// NewServiceManager creates the service graph in dependency order
func NewServiceManager(db *database.Connection, cfg ManagerConfig) *ServiceManager {
	if cfg.ExportDir == "" {
		cfg.ExportDir = os.TempDir()
	}
	sm := &ServiceManager{db: db}
	sm.Registry = NewSchemaRegistry()
	sm.Cache = persistence.NewResultWindowCache(cfg.MaxCacheableRows)
	sm.Reports = NewReportService(db, sm.Registry, sm.Cache, cfg.Images, cfg.FetchFile, cfg.ExportDir)
	return sm
}
