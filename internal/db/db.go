package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hueai/medassist-backend/internal/domain"
	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/utils"
)

type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

// New connects to Postgres by default; DB_DRIVER=sqlite switches to a local
// file (or :memory:) database for development and tests.
func New(log *logger.Logger) (*Service, error) {
	serviceLog := log.With("service", "DBService")

	driver := strings.ToLower(utils.GetEnv("DB_DRIVER", "postgres", log))
	switch driver {
	case "sqlite":
		path := utils.GetEnv("SQLITE_PATH", "medassist.db", log)
		serviceLog.Info("Connecting to sqlite...", "path", path)
		gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("Failed to open sqlite database: %w", err)
		}
		return &Service{db: gdb, log: serviceLog}, nil
	case "postgres":
		host := utils.GetEnv("POSTGRES_HOST", "localhost", log)
		port := utils.GetEnv("POSTGRES_PORT", "5432", log)
		user := utils.GetEnv("POSTGRES_USER", "postgres", log)
		password := utils.GetEnv("POSTGRES_PASSWORD", "", log)
		name := utils.GetEnv("POSTGRES_NAME", "medassist", log)

		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)
		serviceLog.Info("Connecting to Postgres...")
		gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
		})
		if err != nil {
			serviceLog.Error("Failed to connect to Postgres", "error", err)
			return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
		}
		return &Service{db: gdb, log: serviceLog}, nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", driver)
	}
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	err := s.db.AutoMigrate(
		&domain.ChatSession{},
		&domain.ChatMessage{},
		&domain.DrugVerification{},
	)
	if err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if s.db.Dialector.Name() == "postgres" {
		if err := s.db.Exec(`
			ALTER TABLE "chat_message"
			DROP CONSTRAINT IF EXISTS "fk_chat_message_session_id";
		`).Error; err != nil {
			return fmt.Errorf("Failed to reset fk_chat_message_session_id: %w", err)
		}
		if err := s.db.Exec(`
			ALTER TABLE "chat_message"
			ADD CONSTRAINT "fk_chat_message_session_id"
			FOREIGN KEY ("session_id")
			REFERENCES "chat_session"("id")
			ON DELETE CASCADE
		`).Error; err != nil {
			return fmt.Errorf("Failed to add fk_chat_message_session_id: %w", err)
		}
	}
	return nil
}

func (s *Service) DB() *gorm.DB {
	return s.db
}
