package static

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const defaultIndex = `<html>
<head><title>Welcome</title></head>
<body>
<h1>Welcome to statichttpd</h1>
<p>Server is running successfully!</p>
</body>
</html>`

// Bootstrap creates the document root if needed and seeds an index.html when
// none exists. It reports whether the index was written.
func Bootstrap(root string) (bool, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return false, fmt.Errorf("create document root: %w", err)
	}

	index := filepath.Join(root, "index.html")
	_, err := os.Stat(index)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat index: %w", err)
	}

	if err := os.WriteFile(index, []byte(defaultIndex), 0o644); err != nil {
		return false, fmt.Errorf("write index: %w", err)
	}
	return true, nil
}
