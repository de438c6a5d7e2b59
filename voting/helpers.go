package voting

import (
	"errors"

	"github.com/vocdoni/mixvote/storage"
	"github.com/vocdoni/mixvote/types"
)

// wrapNotFound translates the storage not found error into the ledger one.
func wrapNotFound[T any](v T, err error) (T, error) {
	if errors.Is(err, storage.ErrNotFound) {
		return v, types.ErrNotFound
	}
	return v, err
}
