package db

import (
	"fmt"
	"time"

	"github.com/malwarebo/condopay/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Migration struct {
	Version string
	Name    string
	Up      func(*gorm.DB) error
	Down    func(*gorm.DB) error
}

type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

func CreateNewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{
		db:         db,
		migrations: make([]Migration, 0),
	}
}

// CreateSchemaMigrator returns a migrator loaded with the service schema.
func CreateSchemaMigrator(db *gorm.DB) *Migrator {
	m := CreateNewMigrator(db)
	m.AddMigration("001", "create_core_tables", func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			&models.User{},
			&models.Boleto{},
			&models.Sequence{},
			&models.AuditLog{},
		)
	}, func(tx *gorm.DB) error {
		return tx.Migrator().DropTable(&models.AuditLog{}, &models.Sequence{}, &models.Boleto{}, &models.User{})
	})
	m.AddMigration("002", "seed_boleto_sequence", func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Sequence{Name: models.BoletoSequence, Value: 0}).Error
	}, func(tx *gorm.DB) error {
		return tx.Delete(&models.Sequence{}, "name = ?", models.BoletoSequence).Error
	})
	m.AddMigration("003", "create_webhook_and_idempotency_tables", func(tx *gorm.DB) error {
		return tx.AutoMigrate(&models.WebhookEvent{}, &models.IdempotencyKey{})
	}, func(tx *gorm.DB) error {
		return tx.Migrator().DropTable(&models.IdempotencyKey{}, &models.WebhookEvent{})
	})
	return m
}

func (m *Migrator) AddMigration(version, name string, up, down func(*gorm.DB) error) {
	m.migrations = append(m.migrations, Migration{
		Version: version,
		Name:    name,
		Up:      up,
		Down:    down,
	})
}

// Up applies every pending migration, each in its own transaction.
func (m *Migrator) Up() error {
	if err := m.createMigrationsTable(); err != nil {
		return err
	}

	applied, err := m.getAppliedMigrations()
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if applied[migration.Version] {
			continue
		}

		err := m.db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return recordMigration(tx, migration.Version, migration.Name)
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
	}

	return nil
}

// Down rolls back applied migrations newer than version.
func (m *Migrator) Down(version string) error {
	applied, err := m.getAppliedMigrations()
	if err != nil {
		return err
	}

	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		if migration.Version == version {
			break
		}

		if !applied[migration.Version] {
			continue
		}

		err := m.db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Down(tx); err != nil {
				return err
			}
			return tx.Exec("DELETE FROM schema_migrations WHERE version = ?", migration.Version).Error
		})
		if err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
		}
	}

	return nil
}

func (m *Migrator) createMigrationsTable() error {
	return m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP
		)
	`).Error
}

func (m *Migrator) getAppliedMigrations() (map[string]bool, error) {
	var results []struct {
		Version string
	}

	if err := m.db.Table("schema_migrations").Select("version").Find(&results).Error; err != nil {
		return nil, err
	}

	applied := make(map[string]bool)
	for _, result := range results {
		applied[result.Version] = true
	}

	return applied, nil
}

func recordMigration(tx *gorm.DB, version, name string) error {
	return tx.Exec(`
		INSERT INTO schema_migrations (version, name, applied_at)
		VALUES (?, ?, ?)
		ON CONFLICT (version) DO NOTHING
	`, version, name, time.Now().UTC()).Error
}

func (m *Migrator) Status() ([]MigrationStatus, error) {
	if err := m.createMigrationsTable(); err != nil {
		return nil, err
	}

	applied, err := m.getAppliedMigrations()
	if err != nil {
		return nil, err
	}

	var statuses []MigrationStatus
	for _, migration := range m.migrations {
		statuses = append(statuses, MigrationStatus{
			Version: migration.Version,
			Name:    migration.Name,
			Applied: applied[migration.Version],
		})
	}

	return statuses, nil
}

type MigrationStatus struct {
	Version string
	Name    string
	Applied bool
}
