package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/malwarebo/condopay/config"
	"github.com/malwarebo/condopay/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

type DB struct {
	*gorm.DB
}

func (db *DB) GetDB() *gorm.DB {
	return db.DB
}

// gormWriter routes GORM's logger through the service logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	utils.Debug(context.Background(), strings.TrimSpace(fmt.Sprintf(format, args...)), map[string]interface{}{
		"component": "gorm",
	})
}

// GormLogger maps the service log level onto GORM's.
func GormLogger(level string) logger.Interface {
	gormLevel := logger.Warn
	switch strings.ToLower(level) {
	case "debug":
		gormLevel = logger.Info
	case "error":
		gormLevel = logger.Error
	}
	return logger.New(gormWriter{}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormLevel,
		IgnoreRecordNotFoundError: true,
	})
}

func GormConfig(logLevel string) *gorm.Config {
	return &gorm.Config{
		Logger:         GormLogger(logLevel),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// CreateDB connects to the primary database and registers any read replicas
// with dbresolver. Writes and transactions always go to the primary.
func CreateDB(cfg *config.Config) (*DB, error) {
	gormDB, err := gorm.Open(postgres.Open(cfg.GetDatabaseURL()), GormConfig(cfg.Monitoring.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to primary database: %w", err)
	}

	dbCfg := cfg.Database
	if len(dbCfg.ReplicaDSNs) > 0 {
		resolverConfig := dbresolver.Config{}
		for _, replicaDSN := range dbCfg.ReplicaDSNs {
			resolverConfig.Replicas = append(resolverConfig.Replicas, postgres.Open(strings.TrimSpace(replicaDSN)))
		}

		err = gormDB.Use(dbresolver.Register(resolverConfig).
			SetConnMaxIdleTime(dbCfg.MaxIdleTime).
			SetConnMaxLifetime(dbCfg.MaxLifetime).
			SetMaxIdleConns(dbCfg.MaxIdleConns).
			SetMaxOpenConns(dbCfg.MaxOpenConns))
		if err != nil {
			return nil, fmt.Errorf("failed to configure read replicas: %w", err)
		}

		utils.Info(context.Background(), "configured read replicas", map[string]interface{}{
			"replicas": len(dbCfg.ReplicaDSNs),
		})
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
	if dbCfg.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(dbCfg.MaxLifetime)
	}
	if dbCfg.MaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(dbCfg.MaxIdleTime)
	}

	return &DB{gormDB}, nil
}

func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
