package container

import (
	"fmt"
	"os"
)

// File is positioned read/write over the single host file backing a
// container. Every access resets position — no seek state is shared
// across calls, matching spec §4.1.
type File struct {
	f    *os.File
	path string
}

// CreateFile allocates a container of exactly size bytes, zero-filled,
// and returns it open for read/write.
func CreateFile(path string, size int64) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("container.CreateFile: %w", err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("container.CreateFile: %w", err)
	}
	return &File{f: f, path: path}, nil
}

// OpenFile opens an existing container for read/write.
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("container.OpenFile: %w", err)
	}
	return &File{f: f, path: path}, nil
}

// ReadAt reads exactly len(buf) bytes at off, returning a ShortRead
// error if the host returns fewer.
func (cf *File) ReadAt(buf []byte, off int64) error {
	n, err := cf.f.ReadAt(buf, off)
	if err != nil {
		return fmt.Errorf("container.File.ReadAt: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("container.File.ReadAt: short read, got %d want %d", n, len(buf))
	}
	return nil
}

// WriteAt writes exactly len(buf) bytes at off.
func (cf *File) WriteAt(buf []byte, off int64) error {
	n, err := cf.f.WriteAt(buf, off)
	if err != nil {
		return fmt.Errorf("container.File.WriteAt: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("container.File.WriteAt: short write, got %d want %d", n, len(buf))
	}
	return nil
}

// Flush pushes dirty regions through to the host.
func (cf *File) Flush() error {
	if err := cf.f.Sync(); err != nil {
		return fmt.Errorf("container.File.Flush: %w", err)
	}
	return nil
}

func (cf *File) Close() error {
	return cf.f.Close()
}

func (cf *File) Size() (int64, error) {
	info, err := cf.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("container.File.Size: %w", err)
	}
	return info.Size(), nil
}

func (cf *File) Path() string { return cf.path }
