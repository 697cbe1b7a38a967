// Package paths derives collision-free filesystem locations for ephemeral
// store instances. Nothing here touches the filesystem; callers create the
// directories they need.
package paths

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Root returns a fresh directory path under the platform temp directory,
// namespaced by prefix and a time-ordered UUIDv7.
func Root(prefix string) string {
	return filepath.Join(os.TempDir(), prefix, uuid.Must(uuid.NewV7()).String())
}

// Instances returns count sibling store paths under root, named db_<i>.db.
func Instances(root string, count int) []string {
	if count <= 0 {
		return []string{}
	}

	out := make([]string, count)
	for i := range out {
		out[i] = filepath.Join(root, fmt.Sprintf("db_%d.db", i))
	}

	return out
}
