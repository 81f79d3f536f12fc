package engine

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
)

func TestInstanceConfig_ConnString_BasicAuth(t *testing.T) {
	cfg := InstanceConfig{
		Project:  "my-project",
		Region:   "us-central1",
		Cluster:  "my-cluster",
		Instance: "my-instance",
		Database: "my-db",
		User:     "postgres",
		Password: "secret",
	}

	dsn, err := cfg.connString()
	assert.NoError(t, err)
	assert.Contains(t, dsn, "host=my-instance.my-cluster.us-central1.my-project.alloydb.goog")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "user=postgres")
	assert.Contains(t, dsn, "password=secret")
	assert.Contains(t, dsn, "dbname=my-db")
}

func TestInstanceConfig_ConnString_IAMAuth(t *testing.T) {
	cfg := InstanceConfig{
		Project:         "my-project",
		Region:          "us-central1",
		Cluster:         "my-cluster",
		Instance:        "my-instance",
		Database:        "my-db",
		IAMAccountEmail: "sa@my-project.iam.gserviceaccount.com",
	}

	dsn, err := cfg.connString()
	assert.NoError(t, err)
	assert.Contains(t, dsn, "user=sa@my-project.iam")
	assert.NotContains(t, dsn, "password=")
}

func TestInstanceConfig_ConnString_OnlyUser(t *testing.T) {
	cfg := InstanceConfig{
		Project:  "my-project",
		Region:   "us-central1",
		Cluster:  "my-cluster",
		Instance: "my-instance",
		Database: "my-db",
		User:     "postgres",
	}

	_, err := cfg.connString()
	assert.ErrorIs(t, err, ErrInvalidAuth)
}

func TestInstanceConfig_ConnString_OnlyPassword(t *testing.T) {
	cfg := InstanceConfig{
		Project:  "my-project",
		Region:   "us-central1",
		Cluster:  "my-cluster",
		Instance: "my-instance",
		Database: "my-db",
		Password: "secret",
	}

	_, err := cfg.connString()
	assert.ErrorIs(t, err, ErrInvalidAuth)
}

func TestInstanceConfig_ConnString_MissingField(t *testing.T) {
	cfg := InstanceConfig{
		Project: "my-project",
	}

	_, err := cfg.connString()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "region is required")
}

func TestInstanceConfig_ConnString_IAMWithoutEmail(t *testing.T) {
	cfg := InstanceConfig{
		Project:  "my-project",
		Region:   "us-central1",
		Cluster:  "my-cluster",
		Instance: "my-instance",
		Database: "my-db",
	}

	_, err := cfg.connString()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "IAMAccountEmail")
}

func TestInstanceConfig_ConnString_CustomPort(t *testing.T) {
	cfg := InstanceConfig{
		Project:  "my-project",
		Region:   "us-central1",
		Cluster:  "my-cluster",
		Instance: "my-instance",
		Database: "my-db",
		User:     "postgres",
		Password: "secret",
		Port:     6432,
	}

	dsn, err := cfg.connString()
	assert.NoError(t, err)
	assert.Contains(t, dsn, "port=6432")
}

func TestNew_InvalidConnString(t *testing.T) {
	_, err := New(context.Background(), Config{ConnString: "invalid://connection-string"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unable to create connection pool")
}

func TestNewWithPool(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	eng := NewWithPool(mock)
	assert.NotNil(t, eng)
	assert.Equal(t, mock, eng.Pool())
}

func TestEngine_Close(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)

	eng := NewWithPool(mock)
	assert.NotPanics(t, func() {
		eng.Close()
	})
}
