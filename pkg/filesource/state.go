package filesource

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/Sumatoshi-tech/filechanges/pkg/changes"
	"github.com/Sumatoshi-tech/filechanges/pkg/persist"
)

const (
	stateBasenamePrefix = "files-"
	// fingerprintLen is the number of hex digits of the root digest kept in names.
	fingerprintLen = 16
)

// Store persists the tracked state of sources between process runs. One
// directory can hold the state of many roots; each root gets its own file.
type Store struct {
	dir   string
	codec persist.Codec
}

// NewStore creates a store writing into dir with codec. JSON documents are
// checked against the changes document schema when loaded.
func NewStore(dir string, codec persist.Codec) *Store {
	if jc, ok := codec.(*persist.JSONCodec); ok && jc.Validate == nil {
		validated := *jc
		validated.Validate = changes.ValidateDocument
		codec = &validated
	}

	return &Store{dir: dir, codec: codec}
}

// StateBasename names the state file of root, without extension.
func StateBasename(root string) string {
	sum := sha256.Sum256([]byte(root))

	return stateBasenamePrefix + hex.EncodeToString(sum[:])[:fingerprintLen]
}

// Path returns the file holding the state of src.
func (st *Store) Path(src *Source) string {
	return st.persister(src).Path()
}

// Save writes the tracked state of src.
func (st *Store) Save(src *Source) error {
	err := st.persister(src).Save(src.Snapshot())
	if err != nil {
		return fmt.Errorf("save files state: %w", err)
	}

	return nil
}

// Load restores the tracked state of src. It reports false, without error,
// when nothing was saved for the root yet.
func (st *Store) Load(src *Source) (bool, error) {
	loaded, found, err := st.persister(src).Load()
	if err != nil {
		return false, fmt.Errorf("load files state: %w", err)
	}

	if !found {
		return false, nil
	}

	err = src.Restore(loaded)
	if err != nil {
		return false, fmt.Errorf("load files state: %w", err)
	}

	return true, nil
}

func (st *Store) persister(src *Source) *persist.Persister[changes.Map] {
	return persist.NewPersister[changes.Map](st.dir, StateBasename(src.Root()), st.codec)
}
