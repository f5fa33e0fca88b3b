// Package macrofile reads and writes recorded macros as JSON documents. Key
// codes are stored under their QWERTY names where one exists so the file can
// be edited by hand; unmapped codes are stored as decimal numbers. The macro
// core does not depend on this package.
package macrofile

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"kafji.net/rekam/keymap"
	"kafji.net/rekam/macro"
)

type File struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	CreatedAt string  `json:"created_at"`
	States    []Entry `json:"states"`
}

// Entry is one macro state as stored on disk.
type Entry struct {
	DurationMS  uint64   `json:"duration_ms"`
	Keys        []string `json:"keys"`
	MouseDelta  [2]int32 `json:"mouse_delta"`
	ScrollDelta [2]int32 `json:"scroll_delta"`
}

// New wraps a state sequence in a fresh document.
func New(name string, states []macro.State) *File {
	f := &File{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, s := range states {
		entry := Entry{
			DurationMS:  s.DurationMS,
			Keys:        make([]string, 0, len(s.KeysPressed)),
			MouseDelta:  s.MouseDelta,
			ScrollDelta: s.ScrollDelta,
		}
		for _, code := range s.Keys() {
			entry.Keys = append(entry.Keys, keyToken(code))
		}
		f.States = append(f.States, entry)
	}
	return f
}

// Decode converts the document back into macro states.
func (f *File) Decode() ([]macro.State, error) {
	states := make([]macro.State, 0, len(f.States))
	for i, entry := range f.States {
		state := macro.NewState(entry.DurationMS)
		state.MouseDelta = entry.MouseDelta
		state.ScrollDelta = entry.ScrollDelta
		for _, token := range entry.Keys {
			code, err := parseKeyToken(token)
			if err != nil {
				return nil, fmt.Errorf("state %d: %v", i, err)
			}
			state.KeysPressed[code] = struct{}{}
		}
		states = append(states, state)
	}
	return states, nil
}

func keyToken(code uint16) string {
	if name, ok := keymap.KeycodeToName(code); ok {
		return name
	}
	return strconv.FormatUint(uint64(code), 10)
}

func parseKeyToken(token string) (uint16, error) {
	if code, ok := keymap.NameToKeycode(token); ok {
		return code, nil
	}
	code, err := strconv.ParseUint(token, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("unknown key %q", token)
	}
	return uint16(code), nil
}

func Marshal(f *File) ([]byte, error) {
	return sonic.ConfigDefault.MarshalIndent(f, "", "  ")
}

func Unmarshal(b []byte) (*File, error) {
	var f File
	err := sonic.Unmarshal(b, &f)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func Save(path string, f *File) error {
	b, err := Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal macro: %v", err)
	}
	err = os.WriteFile(path, append(b, '\n'), 0o644)
	if err != nil {
		return fmt.Errorf("failed to write macro file: %v", err)
	}
	return nil
}

func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read macro file: %v", err)
	}
	f, err := Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal macro: %v", err)
	}
	return f, nil
}
