package all

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"companyload/internal/storage"
)

func TestAllBackendsRegistered(t *testing.T) {
	kinds := storage.Kinds()
	for _, k := range []string{"mssql", "mysql", "postgres", "sqlite"} {
		assert.Contains(t, kinds, k)
	}
}
