package database

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Connection wraps the shared database handle.
// Note: sql.DB is already thread-safe and manages its own connection pool;
// it is not wrapped with additional locking. Streaming requests check out a
// dedicated *sql.Conn so a long-running cursor cannot starve the pool
// bookkeeping.
type Connection struct {
	db *sql.DB
}

var (
	instance *Connection
	once     sync.Once
	initErr  error
	tlsOnce  sync.Once // TLS config may only be registered once per process
)

// GetInstance returns the singleton database connection
func GetInstance() (*Connection, error) {
	once.Do(func() {
		instance, initErr = newConnection()
	})
	return instance, initErr
}

// newConnection opens the MySQL/TiDB backing store from environment config
func newConnection() (*Connection, error) {
	host := os.Getenv("REPORTS_DB_HOST")
	port := os.Getenv("REPORTS_DB_PORT")
	user := os.Getenv("REPORTS_DB_USER")
	password := os.Getenv("REPORTS_DB_PASSWORD")
	database := os.Getenv("REPORTS_DB_NAME")

	if port == "" {
		port = "4000"
	}
	if database == "" {
		database = "screenlab"
	}

	// Remote hosts get TLS; localhost connects in the clear
	tlsParam := ""
	if host != "" && host != "127.0.0.1" && host != "localhost" {
		tlsOnce.Do(func() {
			if err := mysql.RegisterTLSConfig("reports", &tls.Config{
				MinVersion: tls.VersionTLS12,
				ServerName: host,
			}); err != nil {
				log.Printf("Failed to register TLS config: %v", err)
			}
		})
		tlsParam = "&tls=reports"
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local%s",
		user, password, host, port, database, tlsParam)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// MaxIdleConns matches MaxOpenConns to avoid churning ephemeral ports
	// under concurrent streaming requests
	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(100)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Connection{db: db}, nil
}

// NewFromDB wraps an existing handle; used by tests with sqlmock
func NewFromDB(db *sql.DB) *Connection {
	return &Connection{db: db}
}

// DB exposes the raw handle
func (c *Connection) DB() *sql.DB {
	return c.db
}

// Acquire checks out a dedicated connection for the lifetime of one
// streaming request. The caller must close it on every exit path.
func (c *Connection) Acquire(ctx context.Context) (*sql.Conn, error) {
	return c.db.Conn(ctx)
}

// Close shuts down the pool
func (c *Connection) Close() error {
	return c.db.Close()
}
