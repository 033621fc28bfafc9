package gateway

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"scout-gateway/internal/models"
)

// ArtifactResolver 把上传的规划文件名解析为服务器上的路径
type ArtifactResolver interface {
	Resolve(name string) (string, error)
}

// DirArtifactStore 上传服务写入的目录，只允许目录下的普通文件
type DirArtifactStore struct {
	dir string
}

func NewDirArtifactStore(dir string) *DirArtifactStore {
	return &DirArtifactStore{dir: dir}
}

// Resolve 实现 ArtifactResolver
func (d *DirArtifactStore) Resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: filename not provided", models.ErrInvalidInput)
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: filename %q must not contain a path", models.ErrInvalidInput, name)
	}

	path := filepath.Join(d.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: KML file '%s' not found on server", models.ErrNotFound, name)
		}
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: KML file '%s' not found on server", models.ErrNotFound, name)
	}
	return path, nil
}
