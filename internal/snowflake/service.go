package snowflake

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"flakecast/pkg/errors"
	"flakecast/pkg/models"
)

const (
	driverName     = "snowflake"
	defaultTimeout = 60 * time.Second
)

// Snowflake error numbers that mean the credentials were rejected.
var authErrorNumbers = map[int]bool{
	390100: true, // incorrect username or password
	390101: true, // user disabled
	390102: true, // user temporarily locked
	390144: true, // JWT token invalid
}

// Querier is the query contract every component depends on. *sql.DB and
// *Session both satisfy it, so tests can hand in a sqlmock handle.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Config holds Snowflake connection configuration
type Config struct {
	Account   string
	Username  string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string
	Timeout   time.Duration
}

// ConfigFrom converts the file config into a connection config.
func ConfigFrom(m models.Snowflake) Config {
	return Config{
		Account:   m.Account,
		Username:  m.Username,
		Password:  m.Password,
		Database:  m.Database,
		Schema:    m.Schema,
		Warehouse: m.Warehouse,
		Role:      m.Role,
		Timeout:   m.Timeout,
	}
}

// ValidateConfig validates the Snowflake configuration
func ValidateConfig(config Config) error {
	required := []struct{ field, value string }{
		{"account", config.Account},
		{"username", config.Username},
		{"password", config.Password},
		{"warehouse", config.Warehouse},
		{"role", config.Role},
		{"database", config.Database},
		{"schema", config.Schema},
	}
	for _, r := range required {
		if r.value == "" {
			return errors.ValidationError("snowflake."+r.field, "", r.field+" is required")
		}
	}
	return nil
}

// DSN builds the gosnowflake connection string.
func DSN(config Config) (string, error) {
	return sf.DSN(&sf.Config{
		Account:      config.Account,
		User:         config.Username,
		Password:     config.Password,
		Database:     config.Database,
		Schema:       config.Schema,
		Warehouse:    config.Warehouse,
		Role:         config.Role,
		LoginTimeout: config.timeout(),
	})
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

// Session is one authenticated warehouse handle. It lives for the whole
// process and is shared by every component.
type Session struct {
	ID     string
	db     *sql.DB
	config Config
}

// QueryContext implements Querier
func (s *Session) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// ExecContext implements Querier
func (s *Session) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

// Timeout is the per-statement budget for this session.
func (s *Session) Timeout() time.Duration {
	return s.config.timeout()
}

// PingContext checks the session is still usable.
func (s *Session) PingContext(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout())
	defer cancel()
	return s.db.PingContext(ctx)
}

// DB returns the underlying database handle
func (s *Session) DB() *sql.DB {
	return s.db
}

// Opener opens a database handle; sql.Open in production.
type Opener func(driverName, dsn string) (*sql.DB, error)

// Manager opens sessions and memoizes them per connection config.
type Manager struct {
	mu       sync.Mutex
	sessions map[Config]*Session
	open     Opener
	logger   *zap.Logger
}

// ManagerOption customizes a Manager
type ManagerOption func(*Manager)

// WithOpener replaces sql.Open, letting tests inject sqlmock.
func WithOpener(open Opener) ManagerOption {
	return func(m *Manager) { m.open = open }
}

// NewManager creates a session manager
func NewManager(logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		sessions: make(map[Config]*Session),
		open:     sql.Open,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Session returns the live session for config, opening it on first use. A
// failed open is not memoized and not retried; the caller surfaces it.
func (m *Manager) Session(ctx context.Context, config Config) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[config]; ok {
		return s, nil
	}

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	dsn, err := DSN(config)
	if err != nil {
		return nil, errors.ConnectionError("Failed to build Snowflake connection string", err).
			WithContext("account", config.Account)
	}

	db, err := m.open(driverName, dsn)
	if err != nil {
		return nil, errors.ConnectionError("Failed to open Snowflake connection", err).
			WithContext("account", config.Account).
			WithContext("warehouse", config.Warehouse)
	}

	// One user, one workflow: a small pool is plenty.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	pingCtx, cancel := context.WithTimeout(ctx, config.timeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		if isAuthError(err) {
			return nil, errors.AuthenticationError(config.Username, err)
		}
		return nil, errors.ConnectionError("Failed to connect to Snowflake", err).
			WithContext("account", config.Account).
			WithContext("warehouse", config.Warehouse)
	}

	s := &Session{ID: uuid.NewString(), db: db, config: config}
	m.sessions[config] = s

	m.logger.Info("warehouse session opened",
		zap.String("session_id", s.ID),
		zap.String("account", config.Account),
		zap.String("warehouse", config.Warehouse),
		zap.String("database", config.Database),
		zap.String("schema", config.Schema),
		zap.String("role", config.Role),
	)
	return s, nil
}

// Close closes every memoized session.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for cfg, s := range m.sessions {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID, err))
		}
		delete(m.sessions, cfg)
	}
	return stderrors.Join(errs...)
}

func isAuthError(err error) bool {
	var sfErr *sf.SnowflakeError
	if stderrors.As(err, &sfErr) && authErrorNumbers[sfErr.Number] {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "authentication") || strings.Contains(lower, "incorrect username or password")
}
