// Package fsstore provides hal.Storage over a host directory.
package fsstore

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/golang/glog"

	"github.com/kubisat/flight.go/pkg/hal"
)

// Store keeps files in a directory, which stands for the card root.
type Store struct {
	Dir string

	lock    sync.Mutex
	mounted bool
}

// New creates a Store.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

// Mount implements hal.Storage.
func (s *Store) Mount() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}
	s.mounted = true
	glog.V(2).Infof("storage mounted at %s", s.Dir)
	return nil
}

// Unmount implements hal.Storage.
func (s *Store) Unmount() error {
	s.lock.Lock()
	s.mounted = false
	s.lock.Unlock()
	return nil
}

// Append implements hal.Storage.
func (s *Store) Append(path string, data []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.mounted {
		return hal.ErrNotMounted
	}
	f, err := os.OpenFile(s.resolve(path), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// List implements hal.Storage.
func (s *Store) List() ([]hal.FileInfo, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.mounted {
		return nil, hal.ErrNotMounted
	}
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	var files []hal.FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, hal.FileInfo{Name: entry.Name(), Size: info.Size()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (s *Store) resolve(path string) string {
	return filepath.Join(s.Dir, filepath.Clean("/"+path))
}
