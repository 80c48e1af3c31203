// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package calcsheet

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

func lockFile(fn string) *flock.Flock { return flock.New(fn + ".lock") }

// WriteFile saves the document of the sheet to fn as JSON.
// The file is replaced atomically, while holding fn+".lock".
func (s *Sheet) WriteFile(fn string) error {
	lock := lockFile(fn)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %q: %w", fn, err)
	}
	defer lock.Unlock()

	fh, err := os.CreateTemp(filepath.Dir(fn), "."+filepath.Base(fn)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(fh.Name())
	if err = s.WriteJSON(fh); err != nil {
		fh.Close()
		return fmt.Errorf("%q: %w", fn, err)
	}
	if err = fh.Close(); err != nil {
		return err
	}
	return os.Rename(fh.Name(), fn)
}

// ReadFile loads a JSON document from fn, holding a shared lock on fn+".lock".
func ReadFile(fn string, ev Evaluator, options ...Option) (*Sheet, error) {
	lock := lockFile(fn)
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock %q: %w", fn, err)
	}
	defer lock.Unlock()

	fh, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	s, err := ReadJSON(fh, ev, options...)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", fn, err)
	}
	return s, nil
}
