package status

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// iconPrefix is the data URI scheme servers use for the favicon; the base64
// body starts right after it.
const iconPrefix = "data:image/png;base64,"

// ErrNoIcon is returned when the status carries no favicon.
var ErrNoIcon = errors.New("status has no icon")

// IconPNG decodes the favicon data URI into raw PNG bytes.
func (s *Status) IconPNG() ([]byte, error) {
	if s.Icon == "" {
		return nil, ErrNoIcon
	}
	if !strings.HasPrefix(s.Icon, iconPrefix) {
		return nil, fmt.Errorf("unexpected icon URI scheme")
	}

	data, err := base64.StdEncoding.DecodeString(s.Icon[len(iconPrefix):])
	if err != nil {
		return nil, fmt.Errorf("decode icon: %w", err)
	}

	return data, nil
}

// IconHash returns the xxhash64 digest of the raw icon URI, or 0 when there
// is none. Used to detect icon changes between queries without storing the
// image itself.
func (s *Status) IconHash() uint64 {
	if s.Icon == "" {
		return 0
	}

	return xxhash.Sum64String(s.Icon)
}

// SaveIcon writes the decoded favicon to path. An existing file is only
// replaced when force is set.
func (s *Status) SaveIcon(path string, force bool) error {
	data, err := s.IconPNG()
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	return os.WriteFile(path, data, 0o644)
}
