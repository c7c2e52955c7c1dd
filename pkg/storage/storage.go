package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sharesphere/pkg/logger"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644

	// 回收区目录，删除时先移动到这里，事务提交后再清除
	trashDir = ".trash"

	// 同名文件最多尝试的后缀数量
	maxSuffix = 10000
)

var ErrInvalidName = errors.New("invalid file name")

// BlobStore 本地文件系统上的文件内容存储，布局为 <root>/<username>/<filename>
type BlobStore struct {
	root string
}

// Blob 已写入的文件内容信息。Path 相对于存储根目录
type Blob struct {
	Path     string
	Name     string
	Size     int64
	MimeType string
}

// NewBlobStore 创建存储并确保根目录存在
func NewBlobStore(root string) (*BlobStore, error) {
	if root == "" {
		return nil, errors.New("storage root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, trashDir), dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &BlobStore{root: abs}, nil
}

func (s *BlobStore) Root() string {
	return s.root
}

// 净化文件名，只保留最后一段
func cleanName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." || name == ".." || name == "/" || strings.HasPrefix(name, trashDir) {
		return "", ErrInvalidName
	}
	return name, nil
}

// resolve 将相对路径转换为绝对路径，并保证不逃逸出根目录
func (s *BlobStore) resolve(rel string) (string, error) {
	abs := filepath.Clean(filepath.Join(s.root, rel))
	if abs != s.root && !strings.HasPrefix(abs, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes storage root: %s", rel)
	}
	return abs, nil
}

// createUnique 以 O_EXCL 方式创建文件，重名时追加 " (n)" 后缀
func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; i <= maxSuffix; i++ {
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
		candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
	}
	return nil, "", fmt.Errorf("too many files named %q", name)
}

// Put 将内容写入 <root>/<owner>/<filename>，不会覆盖已有文件
func (s *BlobStore) Put(owner, filename string, r io.Reader) (*Blob, error) {
	ownerDir, err := cleanName(owner)
	if err != nil {
		return nil, err
	}
	name, err := cleanName(filename)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(s.root, ownerDir)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create user storage directory: %w", err)
	}

	dst, stored, err := createUnique(dir, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	abs := filepath.Join(dir, stored)

	size, err := io.Copy(dst, r)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(abs)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	mimeType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(abs); err == nil {
		mimeType = mt.String()
	}

	blob := &Blob{
		Path:     filepath.ToSlash(filepath.Join(ownerDir, stored)),
		Name:     stored,
		Size:     size,
		MimeType: mimeType,
	}

	logger.L.Debug("Blob stored",
		zap.String("path", blob.Path),
		zap.Int64("size", blob.Size),
		zap.String("mime", blob.MimeType))

	return blob, nil
}

// Open 打开存储的文件用于读取
func (s *BlobStore) Open(rel string) (io.ReadCloser, error) {
	abs, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Remove 直接删除文件，文件不存在时不报错
func (s *BlobStore) Remove(rel string) error {
	abs, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// Trashed 已移入回收区的文件或目录，可恢复或清除
type Trashed struct {
	store    *BlobStore
	original string
	trash    string
}

// Trash 将文件或用户目录移入回收区。原路径不存在时返回的 Trashed 不做任何事
func (s *BlobStore) Trash(rel string) (*Trashed, error) {
	abs, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	if abs == s.root {
		return nil, fmt.Errorf("refusing to trash storage root")
	}
	t := &Trashed{store: s, original: abs}
	if _, err := os.Stat(abs); errors.Is(err, os.ErrNotExist) {
		return t, nil
	}

	dst := filepath.Join(s.root, trashDir, uuid.NewString())
	if err := os.Rename(abs, dst); err != nil {
		return nil, fmt.Errorf("failed to move file to trash: %w", err)
	}
	t.trash = dst
	return t, nil
}

// Restore 把回收区中的内容放回原位置
func (t *Trashed) Restore() error {
	if t == nil || t.trash == "" {
		return nil
	}
	if err := os.Rename(t.trash, t.original); err != nil {
		return fmt.Errorf("failed to restore file from trash: %w", err)
	}
	t.trash = ""
	return nil
}

// Purge 永久删除回收区中的内容
func (t *Trashed) Purge() error {
	if t == nil || t.trash == "" {
		return nil
	}
	if err := os.RemoveAll(t.trash); err != nil {
		return fmt.Errorf("failed to purge trash: %w", err)
	}
	t.trash = ""
	return nil
}

// UserDir 用户目录相对路径
func UserDir(username string) string {
	return filepath.Base(username)
}
