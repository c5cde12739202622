// Package filestore хранит загруженные файлы счетов в локальной директории.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// RefPrefix префикс ссылок на файлы, под которым они раздаются клиенту.
const RefPrefix = "/uploads/"

// ErrNotFound файла по ссылке нет.
var ErrNotFound = errors.New("file not found")

// ErrInvalidRef ссылка не указывает на файл внутри хранилища.
var ErrInvalidRef = errors.New("invalid file reference")

// Local сохраняет файлы в директорию dir под случайными именами.
type Local struct {
	dir string
}

// NewLocal создаёт хранилище и директорию для него.
func NewLocal(dir string) (*Local, error) {
	const op = "filestore.NewLocal"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Local{dir: filepath.Clean(dir)}, nil
}

// Dir возвращает директорию хранилища.
func (l *Local) Dir() string {
	return l.dir
}

// Store записывает содержимое под новым именем, сохраняя расширение исходного файла,
// и возвращает ссылку вида /uploads/<uuid><ext>.
func (l *Local) Store(ctx context.Context, filename string, content io.Reader) (string, error) {
	const op = "filestore.Store"
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(filepath.Base(filename)))
	target := filepath.Join(l.dir, name)

	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if _, err := io.Copy(file, content); err != nil {
		file.Close()
		os.Remove(target)
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return RefPrefix + name, nil
}

// Remove удаляет файл по ссылке. Если файла нет, возвращает ErrNotFound.
func (l *Local) Remove(ctx context.Context, ref string) error {
	const op = "filestore.Remove"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	target, err := l.resolve(ref)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// resolve переводит ссылку в путь на диске и не выпускает его за пределы директории.
func (l *Local) resolve(ref string) (string, error) {
	name := path.Base(strings.TrimPrefix(ref, RefPrefix))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "", ErrInvalidRef
	}
	target := filepath.Join(l.dir, name)
	if !strings.HasPrefix(target, l.dir+string(os.PathSeparator)) {
		return "", ErrInvalidRef
	}
	return target, nil
}
