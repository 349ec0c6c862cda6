package source

import (
	"context"
	"crypto/rsa"
	"database/sql"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/config"
	log "github.com/sirupsen/logrus"
	sf "github.com/snowflakedb/gosnowflake"
	"github.com/youmark/pkcs8"
)

// Reader fetches rows for mappings, opening a single shared warehouse session
// on first use. Mappings run sequentially, so Reader does no locking.
type Reader struct {
	cfg *config.Config
	db  *sql.DB
}

// NewReader returns a Reader over the configured sources. The warehouse
// connection is dialed lazily, so file-only configurations never touch
// Snowflake.
func NewReader(cfg *config.Config) *Reader {
	return &Reader{cfg: cfg}
}

// Fetch returns the rows of one mapping. An empty watermark fetches
// everything the source offers; otherwise table sources are bounded to rows
// strictly newer than the watermark.
func (r *Reader) Fetch(ctx context.Context, m *config.Common, watermark string) ([]Row, error) {
	if m.Source.File != "" {
		return ReadFileRows(m.Source.File)
	}
	if r.cfg.Snowflake == nil {
		return nil, fmt.Errorf("mapping %q needs a warehouse source but no snowflake connection is configured", m.Name)
	}

	db, err := r.warehouse(ctx)
	if err != nil {
		return nil, err
	}
	stmt, generated, err := BuildQuery(m, watermark)
	if err != nil {
		return nil, err
	}

	var snow = r.cfg.Snowflake
	if generated && m.Delta != nil && snow.FetchBatchSize > 0 {
		return fetchAllPages(ctx, stmt, m.Delta.UpdatedAtColumn, snow.FetchBatchSize,
			func(ctx context.Context, stmt string) ([]Row, error) {
				return r.queryRows(ctx, db, stmt)
			})
	}
	return r.queryRows(ctx, db, stmt)
}

// Close releases the warehouse session, if one was opened.
func (r *Reader) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Reader) warehouse(ctx context.Context) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	var snow = r.cfg.Snowflake

	dsn, err := buildDSN(snow)
	if err != nil {
		return nil, fmt.Errorf("building snowflake DSN: %w", err)
	}

	log.WithFields(log.Fields{
		"account":   snow.Account,
		"database":  snow.Database,
		"warehouse": snow.Warehouse,
		"user":      snow.User,
	}).Info("opening Snowflake")

	db, err := sql.Open("snowflake", dsn)
	if err == nil {
		err = db.PingContext(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to snowflake: %w", err)
	}
	r.db = db
	return db, nil
}

func (r *Reader) queryRows(ctx context.Context, db *sql.DB, stmt string) ([]Row, error) {
	if ms := r.cfg.Snowflake.QueryTimeoutMS; ms > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
		defer cancel()
	}
	log.WithField("sql", stmt).Debug("fetching rows")

	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("querying snowflake: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		var cells = make([]interface{}, len(cols))
		var ptrs = make([]interface{}, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err = rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		var row = make(Row, len(cols))
		for i, name := range cols {
			row[name] = coerceValue(cells[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

var trueString = "true"

func buildDSN(snow *config.SnowflakeConfig) (string, error) {
	var conf = sf.Config{
		Account:   snow.Account,
		User:      snow.User,
		Database:  snow.Database,
		Schema:    snow.Schema,
		Warehouse: snow.Warehouse,
		Role:      snow.Role,
		Region:    snow.Region,
		Params: map[string]*string{
			// Keep the session alive across a daemon's idle intervals.
			"client_session_keep_alive": &trueString,
		},
	}
	if snow.PrivateKeyPath != "" {
		key, err := loadPrivateKey(snow.PrivateKeyPath, snow.Password)
		if err != nil {
			return "", err
		}
		conf.PrivateKey = key
		conf.Authenticator = sf.AuthTypeJwt
	} else {
		conf.Password = snow.Password
	}
	return sf.DSN(&conf)
}

// loadPrivateKey reads a PKCS#8 RSA key in PEM form. When the key is
// encrypted, the configured password doubles as its passphrase.
func loadPrivateKey(path, passphrase string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}

	var parsed interface{}
	if passphrase != "" {
		parsed, err = pkcs8.ParsePKCS8PrivateKey(block.Bytes, []byte(passphrase))
	} else {
		parsed, err = pkcs8.ParsePKCS8PrivateKey(block.Bytes)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing private key %s: %w", path, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key %s is not an RSA key", path)
	}
	return key, nil
}
