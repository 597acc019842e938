package panorama

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
)

// FileShim is a development and testing implementation that records the
// stage calls and writes the address objects to a file instead of
// talking to a device.
type FileShim struct {
	filePath string

	mu      sync.Mutex
	objects []AddressObject
	calls   []string
	commits int
	pushes  int
}

// Ensure FileShim implements AddressClient.
var _ AddressClient = (*FileShim)(nil)

// NewFileShim creates a new file-based shim. An empty path disables the
// file write and only records calls.
func NewFileShim(filePath string) *FileShim {
	return &FileShim{filePath: filePath}
}

// EnsureAddresses records the objects and writes them to the file.
func (f *FileShim) EnsureAddresses(ctx context.Context, deviceGroup string, objects []AddressObject) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.objects = append([]AddressObject(nil), objects...)
	f.calls = append(f.calls, "ensure_addresses")

	if f.filePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"device_group": deviceGroup,
		"addresses":    objects,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling addresses: %w", err)
	}
	if err := os.WriteFile(f.filePath, data, 0644); err != nil {
		return fmt.Errorf("writing address file: %w", err)
	}

	log.Printf("[FileShim] %d address objects written to %s", len(objects), f.filePath)
	return nil
}

// Commit records a commit and returns a fake job ID.
func (f *FileShim) Commit(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	f.calls = append(f.calls, "commit")
	return fmt.Sprintf("commit-%d", f.commits), nil
}

// Push records a push and returns a fake job ID.
func (f *FileShim) Push(ctx context.Context, deviceGroup string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes++
	f.calls = append(f.calls, "push")
	return fmt.Sprintf("push-%d", f.pushes), nil
}

// Calls returns the stage calls seen so far, in order.
func (f *FileShim) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Objects returns the address objects from the last EnsureAddresses call.
func (f *FileShim) Objects() []AddressObject {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]AddressObject(nil), f.objects...)
}
