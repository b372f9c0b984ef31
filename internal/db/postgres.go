package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/logger"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/types"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewPostgresService connects to the store that holds both the bridge's
// chat/message tables and our analysis table. poolSize must be at least the
// widest configured concurrency so parallel workers never serialize on the
// pool.
func NewPostgresService(log *logger.Logger, poolSize int) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	log.Info("Loading environment variables...")
	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "whatsapp", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	if poolSize < 4 {
		poolSize = 4
	}
	sqlDB.SetMaxOpenConns(poolSize)
	sqlDB.SetMaxIdleConns(poolSize / 2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return &PostgresService{db: gormDB, log: serviceLog}, nil
}

// AutoMigrateAll provisions only the table this service owns. The chats and
// messages tables belong to the WhatsApp bridge and are never migrated here.
func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating analysis table...")
	if err := s.db.AutoMigrate(&types.ConversationAnalysis{}); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
