package data

import (
	"fmt"
	"os"
	"strings"
)

// GetMySQLDSN returns the MySQL DSN, preferring the configured value over
// the MYSQL_DSN environment variable.
func GetMySQLDSN(configured string) (string, error) {
	dsn := strings.TrimSpace(configured)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("MYSQL_DSN"))
	}
	if dsn == "" {
		return "", fmt.Errorf("MYSQL_DSN is not set")
	}
	return dsn, nil
}
