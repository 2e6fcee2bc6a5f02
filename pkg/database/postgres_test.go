package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-student-records/pkg/config"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "records",
		Password: `it's a \secret`,
		Name:     "students",
		SSLMode:  "disable",
	})

	assert.Equal(t, `host='db.internal' port='5432' user='records' password='it\'s a \\secret' dbname='students' sslmode='disable'`, dsn)
}

func TestPostgresDSNSkipsEmptySettings(t *testing.T) {
	dsn := PostgresDSN(config.DatabaseConfig{Host: "localhost", Name: "students"})

	assert.Equal(t, `host='localhost' dbname='students'`, dsn)
}
