// Package secure wraps memguard so plaintext secret material spends as
// little time as possible in ordinary garbage-collected memory. The export
// and import paths keep the derived bundle key in a Buffer between uses.
package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrBufferDestroyed is returned by Open after Destroy. Destroyed key
// material must never degrade to an empty key.
var ErrBufferDestroyed = errors.New("secure: buffer destroyed")

// Buffer holds sensitive bytes encrypted at rest in memory, backed by a
// memguard enclave with mlock'd, guard-paged storage.
type Buffer struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	destroyed bool
}

// NewBuffer copies data into a protected memory region. The caller should
// zero its own copy afterwards.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{enclave: memguard.NewEnclave(data)}
}

// Open decrypts the buffer into a locked region. The caller must call
// Destroy() on the returned LockedBuffer when done:
//
//	locked, err := buf.Open()
//	if err != nil {
//	    return err
//	}
//	defer locked.Destroy()
//	use(locked.Bytes())
func (b *Buffer) Open() (*memguard.LockedBuffer, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed {
		return nil, ErrBufferDestroyed
	}
	return b.enclave.Open()
}

// Destroy marks the buffer unusable. Idempotent. The enclave's data stays
// encrypted until collected; call memguard.Purge() at process exit for a
// full sweep.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return
	}
	b.enclave = nil
	b.destroyed = true
}
