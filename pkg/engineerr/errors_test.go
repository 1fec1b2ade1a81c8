package engineerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngineError_Error(t *testing.T) {
	e := NewForGID(KindIoTruncated, 7, "meta file too short")
	assert.Equal(t, "IoTruncated gid=7: meta file too short", e.Error())
}

func TestEngineError_Error_NoGID(t *testing.T) {
	e := New(KindUsageError, "missing workspace flag")
	assert.Equal(t, "UsageError gid=-: missing workspace flag", e.Error())
}

func TestEngineError_Wrap(t *testing.T) {
	cause := fmt.Errorf("short read")
	e := Wrap(KindIoTruncated, 3, "reading in_edges", cause)
	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "short read")
}

func TestEngineError_Is(t *testing.T) {
	a := NewForGID(KindIoMissing, 1, "meta/1.bin")
	b := NewForGID(KindIoMissing, 2, "meta/2.bin")
	assert.True(t, errors.Is(a, b))

	c := NewForGID(KindIoBadFormat, 1, "meta/1.bin")
	assert.False(t, errors.Is(a, c))
}

func TestIsIoError(t *testing.T) {
	assert.True(t, IsIoError(New(KindIoMissing, "x")))
	assert.True(t, IsIoError(New(KindIoTruncated, "x")))
	assert.False(t, IsIoError(New(KindUserKernelPanic, "x")))
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(New(KindBufferExhausted, "buffer full")))
	assert.True(t, IsFatal(New(KindIoMissing, "x")))
	assert.True(t, IsFatal(New(KindSchedulerInvariantViolated, "x")))
}

func TestGetKindAndGID(t *testing.T) {
	e := NewForGID(KindUserKernelPanic, 42, "panic in F")
	assert.Equal(t, KindUserKernelPanic, GetKind(e))
	assert.Equal(t, GID(42), GetGID(e))

	plain := fmt.Errorf("not an engine error")
	assert.Equal(t, Kind(""), GetKind(plain))
	assert.Equal(t, NoGID, GetGID(plain))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(New(KindUsageError, "x")))
	assert.Equal(t, 2, ExitCode(New(KindIoMissing, "x")))
	assert.Equal(t, 2, ExitCode(New(KindIoTruncated, "x")))
	assert.Equal(t, 3, ExitCode(New(KindUserKernelPanic, "x")))
	assert.Equal(t, 3, ExitCode(New(KindSchedulerInvariantViolated, "x")))
}
