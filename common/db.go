package common

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ConnectDb opens the configured database and bounds its connection pool.
func ConnectDb(cfg *Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := openDialector(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	logLevel := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	if err := BoundStatements(db, cfg.DBAcquireTimeout); err != nil {
		return nil, err
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping %s database: %w", cfg.DBDriver, err)
	}

	log.Info("database connected",
		zap.String("driver", cfg.DBDriver),
		zap.Int("max_open_conns", cfg.DBMaxOpenConns),
		zap.Duration("conn_max_idle_time", cfg.DBConnMaxIdleTime))
	return db, nil
}

func openDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite":
		return sqlite.Open(dsn), nil
	case "mysql":
		return mysql.New(mysql.Config{
			DSN:               dsn,
			DefaultStringSize: 191,
		}), nil
	case "postgres":
		conn, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres connection: %w", err)
		}
		return postgres.New(postgres.Config{Conn: conn}), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

const statementDeadlineKey = "cabins:statement_deadline"

type statementDeadline struct {
	parent context.Context
	cancel context.CancelFunc
}

// BoundStatements gives every create, query, update, delete and raw exec its
// own deadline, covering connection acquisition and execution. Row and Rows
// are left alone because the caller reads them after the callback returns.
func BoundStatements(db *gorm.DB, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}

	start := func(tx *gorm.DB) {
		parent := tx.Statement.Context
		if parent == nil {
			parent = context.Background()
		}
		ctx, cancel := context.WithTimeout(parent, timeout)
		tx.Statement.Context = ctx
		tx.InstanceSet(statementDeadlineKey, statementDeadline{parent: parent, cancel: cancel})
	}
	release := func(tx *gorm.DB) {
		v, ok := tx.InstanceGet(statementDeadlineKey)
		if !ok {
			return
		}
		d := v.(statementDeadline)
		d.cancel()
		tx.Statement.Context = d.parent
	}

	cb := db.Callback()
	for _, err := range []error{
		cb.Create().Before("gorm:create").Register("cabins:deadline", start),
		cb.Create().After("gorm:create").Register("cabins:deadline_release", release),
		cb.Query().Before("gorm:query").Register("cabins:deadline", start),
		cb.Query().After("gorm:after_query").Register("cabins:deadline_release", release),
		cb.Update().Before("gorm:update").Register("cabins:deadline", start),
		cb.Update().After("gorm:update").Register("cabins:deadline_release", release),
		cb.Delete().Before("gorm:delete").Register("cabins:deadline", start),
		cb.Delete().After("gorm:delete").Register("cabins:deadline_release", release),
		cb.Raw().Before("gorm:raw").Register("cabins:deadline", start),
		cb.Raw().After("gorm:raw").Register("cabins:deadline_release", release),
	} {
		if err != nil {
			return fmt.Errorf("register statement deadline: %w", err)
		}
	}
	return nil
}
