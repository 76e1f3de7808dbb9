package storage

import (
	"strings"
	"testing"
)

func TestSchemaDDL_DeclaresTables(t *testing.T) {
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS dashboards",
		"CREATE TABLE IF NOT EXISTS widgets",
		"UNIQUE (user_id)",
		"REFERENCES dashboards (id) ON DELETE CASCADE",
		"width BETWEEN 1 AND 8",
		"height BETWEEN 1 AND 6",
	} {
		if !strings.Contains(schemaDDL, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}
