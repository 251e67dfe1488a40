package rhal

import "fmt"

// Kind classifies a structural Error. Structural failures are invariant
// violations: they are never retried and always abort the offending
// operation.
type Kind uint8

const (
	// KindAddressOverlap: two registers on the same device overlap.
	KindAddressOverlap Kind = iota + 1
	// KindDuplicateName: a register or parameter name collides.
	KindDuplicateName
	// KindOutOfAddressSpace: address+length exceeds AddrSpaceLen.
	KindOutOfAddressSpace
	// KindReadOnlyWrite: write() attempted on a read-only register.
	KindReadOnlyWrite
	// KindScanTypeMismatch: scan() found a device type different from
	// the one already registered at that id.
	KindScanTypeMismatch
	// KindUnknownType: scan() found a device type with no registered
	// factory.
	KindUnknownType
	// KindSchemaMismatch: persisted JSON violates the strict schema.
	KindSchemaMismatch
	// KindUnknownID: an operation referenced a device id that does not
	// exist in the registry.
	KindUnknownID
	// KindNilCollaborator: an operation was attempted before a Bus or
	// Protocol was configured.
	KindNilCollaborator
	// KindForceRetriesExhausted: forceRead/forceWrite exhausted
	// MaxForceReTries.
	KindForceRetriesExhausted
	// KindInvalidID: a device id is outside [MinDeviceID, MaxDeviceID].
	KindInvalidID
)

func (k Kind) String() string {
	switch k {
	case KindAddressOverlap:
		return "AddressOverlap"
	case KindDuplicateName:
		return "DuplicateName"
	case KindOutOfAddressSpace:
		return "OutOfAddressSpace"
	case KindReadOnlyWrite:
		return "ReadOnlyWrite"
	case KindScanTypeMismatch:
		return "ScanTypeMismatch"
	case KindUnknownType:
		return "UnknownType"
	case KindSchemaMismatch:
		return "SchemaMismatch"
	case KindUnknownID:
		return "UnknownID"
	case KindNilCollaborator:
		return "NilCollaborator"
	case KindForceRetriesExhausted:
		return "ForceRetriesExhausted"
	case KindInvalidID:
		return "InvalidID"
	default:
		return "Unknown"
	}
}

// Error is the typed structural error RhAL raises for invariant
// violations. It is never used for transient per-register I/O failures:
// those are represented as a register's isError flag, not an error value.
type Error struct {
	msg  string
	kind Kind
}

func (e *Error) Error() string { return e.msg }

// Kind returns the classification of this structural error.
func (e *Error) Kind() Kind { return e.kind }

func newErrorF(kind Kind, format string, args ...interface{}) *Error {
	return &Error{fmt.Sprintf(format, args...), kind}
}

// AddressOverlapErrorF reports two registers whose [addr, addr+length)
// ranges collide on the same device.
func AddressOverlapErrorF(format string, args ...interface{}) *Error {
	return newErrorF(KindAddressOverlap, format, args...)
}

// DuplicateNameErrorF reports a register or parameter name collision.
func DuplicateNameErrorF(format string, args ...interface{}) *Error {
	return newErrorF(KindDuplicateName, format, args...)
}

// OutOfAddressSpaceErrorF reports addr+length exceeding AddrSpaceLen.
func OutOfAddressSpaceErrorF(format string, args ...interface{}) *Error {
	return newErrorF(KindOutOfAddressSpace, format, args...)
}

// ReadOnlyWriteErrorF reports a write() attempt on a read-only register.
func ReadOnlyWriteErrorF(format string, args ...interface{}) *Error {
	return newErrorF(KindReadOnlyWrite, format, args...)
}

// ScanTypeMismatchErrorF reports a scanned device type differing from the
// type already registered at that id.
func ScanTypeMismatchErrorF(format string, args ...interface{}) *Error {
	return newErrorF(KindScanTypeMismatch, format, args...)
}

// UnknownTypeErrorF reports a scanned device type with no registered
// factory.
func UnknownTypeErrorF(format string, args ...interface{}) *Error {
	return newErrorF(KindUnknownType, format, args...)
}

// SchemaMismatchErrorF reports a persisted JSON document violating the
// strict per-type schema.
func SchemaMismatchErrorF(format string, args ...interface{}) *Error {
	return newErrorF(KindSchemaMismatch, format, args...)
}

// UnknownIDErrorF reports an operation referencing an id absent from the
// registry.
func UnknownIDErrorF(format string, args ...interface{}) *Error {
	return newErrorF(KindUnknownID, format, args...)
}

// NilCollaboratorErrorF reports an operation attempted before a Bus or
// Protocol was configured via SetProtocol.
func NilCollaboratorErrorF(format string, args ...interface{}) *Error {
	return newErrorF(KindNilCollaborator, format, args...)
}

// ForceRetriesExhaustedErrorF reports a forceRead/forceWrite that
// exhausted its retry budget.
func ForceRetriesExhaustedErrorF(format string, args ...interface{}) *Error {
	return newErrorF(KindForceRetriesExhausted, format, args...)
}

// InvalidIDErrorF reports a device id outside [MinDeviceID, MaxDeviceID].
func InvalidIDErrorF(format string, args ...interface{}) *Error {
	return newErrorF(KindInvalidID, format, args...)
}
