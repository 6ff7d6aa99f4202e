package host

import "errors"

// Host errors.
var (
	// ErrCapabilityNotFound indicates the named capability does not exist.
	ErrCapabilityNotFound = errors.New("host: capability not found")

	// ErrCapabilityExists indicates a capability with that name already
	// exists.
	ErrCapabilityExists = errors.New("host: capability already exists")

	// ErrNotWritable indicates a set-request targeted a capability with
	// no registered listener.
	ErrNotWritable = errors.New("host: capability is not writable")

	// ErrSettingNotFound indicates the settings key does not exist.
	ErrSettingNotFound = errors.New("host: setting not found")
)
