package source

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/config"
	"github.com/stretchr/testify/require"
	"github.com/youmark/pkcs8"
)

func TestFetchFromFileSource(t *testing.T) {
	var path = writeRows(t, `[{"id": 1}, {"id": 2}]`)

	// File sources never touch the warehouse, even with no snowflake section.
	var reader = NewReader(&config.Config{})
	defer reader.Close()

	var rows, err = reader.Fetch(context.Background(),
		&config.Common{Name: "users", Source: config.SourceSpec{File: path}}, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, json.Number("2"), rows[1]["id"])
}

func TestFetchWithoutWarehouseFails(t *testing.T) {
	var reader = NewReader(&config.Config{})
	var _, err = reader.Fetch(context.Background(),
		&config.Common{Name: "users", Source: config.SourceSpec{Table: "USERS"}}, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no snowflake connection is configured")
}

func TestBuildDSNWithPassword(t *testing.T) {
	var dsn, err = buildDSN(&config.SnowflakeConfig{
		Account:   "xy12345",
		User:      "LOADER",
		Password:  "hunter2",
		Warehouse: "LOAD_WH",
		Database:  "ANALYTICS",
		Schema:    "PUBLIC",
		Role:      "LOADER_ROLE",
	})
	require.NoError(t, err)
	require.Contains(t, dsn, "xy12345")
	require.Contains(t, dsn, "warehouse=LOAD_WH")
	require.Contains(t, dsn, "client_session_keep_alive=true")
}

func writeKeyPEM(t *testing.T, name, blockType string, der []byte) string {
	t.Helper()
	var path = filepath.Join(t.TempDir(), name)
	var body = pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	require.NoError(t, os.WriteFile(path, body, 0600))
	return path
}

func TestPrivateKeyRoundTrip(t *testing.T) {
	var key, err = rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	var plain = writeKeyPEM(t, "rsa.p8", "PRIVATE KEY", der)

	loaded, err := loadPrivateKey(plain, "")
	require.NoError(t, err)
	require.True(t, key.Equal(loaded))

	// With key-pair auth the configured password is the key's passphrase.
	encrypted, err := pkcs8.MarshalPrivateKey(key, []byte("hush"), nil)
	require.NoError(t, err)
	var enc = writeKeyPEM(t, "rsa-enc.p8", "ENCRYPTED PRIVATE KEY", encrypted)

	loaded, err = loadPrivateKey(enc, "hush")
	require.NoError(t, err)
	require.True(t, key.Equal(loaded))

	_, err = loadPrivateKey(enc, "wrong")
	require.Error(t, err)
}

func TestPrivateKeyRejectsNonRSA(t *testing.T) {
	var key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	_, err = loadPrivateKey(writeKeyPEM(t, "ec.p8", "PRIVATE KEY", der), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not an RSA key")
}

func TestPrivateKeyRejectsNonPEM(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "key.p8")
	require.NoError(t, os.WriteFile(path, []byte("not a pem"), 0600))

	var _, err = loadPrivateKey(path, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no PEM block")
}
