package persist

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Migration errors.
var (
	ErrMalformed          = errors.New("malformed snapshot")
	ErrUnsupportedVersion = errors.New("snapshot version is newer than supported")
)

// migration upgrades a document from version n to n+1.
type migration func([]byte) ([]byte, error)

// migrations[n] upgrades version n+1 to n+2.
var migrations = []migration{
	splitMessageCost,
	wrapChat,
}

// DetectVersion reports the schema version of a raw snapshot. A document
// with a chat key and a version of at least 3 is an envelope; anything else
// is a bare chat whose own version applies, defaulting to 1.
func DetectVersion(data []byte) (int, error) {
	if !gjson.ValidBytes(data) {
		return 0, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return 0, fmt.Errorf("%w: top level is not an object", ErrMalformed)
	}

	version := root.Get("version")
	if version.Exists() && version.Type != gjson.Number {
		return 0, fmt.Errorf("%w: version is not a number", ErrMalformed)
	}

	v := 1
	if version.Exists() {
		v = int(version.Int())
	}
	if root.Get("chat").Exists() && v >= CurrentVersion {
		if v > CurrentVersion {
			return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
		}
		return v, nil
	}
	// Bare chats predate the envelope.
	if v < 1 {
		v = 1
	}
	if v >= CurrentVersion {
		v = CurrentVersion - 1
	}
	return v, nil
}

// Migrate upgrades a raw snapshot to CurrentVersion. Current documents come
// back unchanged.
func Migrate(data []byte) ([]byte, error) {
	v, err := DetectVersion(data)
	if err != nil {
		return nil, err
	}
	for ; v < CurrentVersion; v++ {
		data, err = migrations[v-1](data)
		if err != nil {
			return nil, fmt.Errorf("migrating snapshot v%d to v%d: %w", v, v+1, err)
		}
	}
	return data, nil
}

// splitMessageCost renames each message's cost_tokens to prompt_tokens and
// adds a zero completion_tokens.
func splitMessageCost(data []byte) ([]byte, error) {
	var err error
	messages := gjson.GetBytes(data, "messages")
	if messages.IsArray() {
		for i, msg := range messages.Array() {
			if !msg.IsObject() {
				continue
			}
			prefix := "messages." + strconv.Itoa(i) + "."
			if cost := msg.Get("cost_tokens"); cost.Exists() {
				if data, err = sjson.SetRawBytes(data, prefix+"prompt_tokens", []byte(cost.Raw)); err != nil {
					return nil, err
				}
				if data, err = sjson.DeleteBytes(data, prefix+"cost_tokens"); err != nil {
					return nil, err
				}
			}
			if !msg.Get("completion_tokens").Exists() {
				if data, err = sjson.SetBytes(data, prefix+"completion_tokens", 0); err != nil {
					return nil, err
				}
			}
		}
	}
	return sjson.SetBytes(data, "version", 2)
}

// wrapChat moves a bare chat into the versioned envelope.
func wrapChat(data []byte) ([]byte, error) {
	chat, err := sjson.DeleteBytes(data, "version")
	if err != nil {
		return nil, err
	}
	out := []byte(`{}`)
	if out, err = sjson.SetRawBytes(out, "chat", chat); err != nil {
		return nil, err
	}
	if out, err = sjson.SetRawBytes(out, "user", []byte("null")); err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, "version", CurrentVersion)
}
