// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
)

// Status represents an EFI_STATUS value.
type Status uint64

const errorBit = 1 << 63

// EFI_STATUS codes
const (
	EFI_SUCCESS              Status = 0
	EFI_LOAD_ERROR           Status = errorBit | 1
	EFI_INVALID_PARAMETER    Status = errorBit | 2
	EFI_UNSUPPORTED          Status = errorBit | 3
	EFI_BAD_BUFFER_SIZE      Status = errorBit | 4
	EFI_BUFFER_TOO_SMALL     Status = errorBit | 5
	EFI_NOT_READY            Status = errorBit | 6
	EFI_DEVICE_ERROR         Status = errorBit | 7
	EFI_WRITE_PROTECTED      Status = errorBit | 8
	EFI_OUT_OF_RESOURCES     Status = errorBit | 9
	EFI_VOLUME_CORRUPTED     Status = errorBit | 10
	EFI_VOLUME_FULL          Status = errorBit | 11
	EFI_NO_MEDIA             Status = errorBit | 12
	EFI_MEDIA_CHANGED        Status = errorBit | 13
	EFI_NOT_FOUND            Status = errorBit | 14
	EFI_ACCESS_DENIED        Status = errorBit | 15
	EFI_NO_RESPONSE          Status = errorBit | 16
	EFI_NO_MAPPING           Status = errorBit | 17
	EFI_TIMEOUT              Status = errorBit | 18
	EFI_NOT_STARTED          Status = errorBit | 19
	EFI_ALREADY_STARTED      Status = errorBit | 20
	EFI_ABORTED              Status = errorBit | 21
	EFI_PROTOCOL_ERROR       Status = errorBit | 24
	EFI_INCOMPATIBLE_VERSION Status = errorBit | 25
	EFI_SECURITY_VIOLATION   Status = errorBit | 26
	EFI_CRC_ERROR            Status = errorBit | 27
	EFI_END_OF_MEDIA         Status = errorBit | 28
	EFI_END_OF_FILE          Status = errorBit | 31
)

// IsError reports whether the status has the error bit set, as opposed to
// success or a warning.
func (s Status) IsError() bool {
	return s&errorBit != 0
}

// Code returns the status code without the error bit.
func (s Status) Code() uint64 {
	return uint64(s &^ errorBit)
}

func (s Status) String() string {
	if err, ok := statusErrors[s]; ok {
		return err.msg
	}

	if s == EFI_SUCCESS {
		return "success"
	}

	return fmt.Sprintf("EFI_STATUS %#x", uint64(s))
}

// Error represents a non-success EFI_STATUS returned by the firmware.
type Error struct {
	Status Status
	msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (EFI_STATUS %#x)", e.msg, uint64(e.Status))
}

// Is reports whether target is an [*Error] with the same status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Status == e.Status
}

var statusErrors = make(map[Status]*Error)

func newError(status Status, msg string) *Error {
	err := &Error{
		Status: status,
		msg:    msg,
	}

	statusErrors[status] = err

	return err
}

// EFI_STATUS errors, these can be matched with [errors.Is].
var (
	ErrLoadError           = newError(EFI_LOAD_ERROR, "image failed to load")
	ErrInvalidParameter    = newError(EFI_INVALID_PARAMETER, "invalid parameter")
	ErrUnsupported         = newError(EFI_UNSUPPORTED, "operation not supported")
	ErrBadBufferSize       = newError(EFI_BAD_BUFFER_SIZE, "bad buffer size")
	ErrBufferTooSmall      = newError(EFI_BUFFER_TOO_SMALL, "buffer too small")
	ErrNotReady            = newError(EFI_NOT_READY, "not ready")
	ErrDeviceError         = newError(EFI_DEVICE_ERROR, "device error")
	ErrWriteProtected      = newError(EFI_WRITE_PROTECTED, "write protected")
	ErrOutOfResources      = newError(EFI_OUT_OF_RESOURCES, "out of resources")
	ErrVolumeCorrupted     = newError(EFI_VOLUME_CORRUPTED, "volume corrupted")
	ErrVolumeFull          = newError(EFI_VOLUME_FULL, "volume full")
	ErrNoMedia             = newError(EFI_NO_MEDIA, "no media")
	ErrMediaChanged        = newError(EFI_MEDIA_CHANGED, "media changed")
	ErrNotFound            = newError(EFI_NOT_FOUND, "not found")
	ErrAccessDenied        = newError(EFI_ACCESS_DENIED, "access denied")
	ErrNoResponse          = newError(EFI_NO_RESPONSE, "no response")
	ErrNoMapping           = newError(EFI_NO_MAPPING, "no mapping")
	ErrTimeout             = newError(EFI_TIMEOUT, "timeout")
	ErrNotStarted          = newError(EFI_NOT_STARTED, "not started")
	ErrAlreadyStarted      = newError(EFI_ALREADY_STARTED, "already started")
	ErrAborted             = newError(EFI_ABORTED, "aborted")
	ErrProtocolError       = newError(EFI_PROTOCOL_ERROR, "protocol error")
	ErrIncompatibleVersion = newError(EFI_INCOMPATIBLE_VERSION, "incompatible version")
	ErrSecurityViolation   = newError(EFI_SECURITY_VIOLATION, "security violation")
	ErrCRCError            = newError(EFI_CRC_ERROR, "CRC error")
	ErrEndOfMedia          = newError(EFI_END_OF_MEDIA, "end of media")
	ErrEndOfFile           = newError(EFI_END_OF_FILE, "end of file")
)

// parseStatus converts a raw EFI_STATUS into an error, nil on success.
// Warnings are reported as errors as well since no caller can act on them.
func parseStatus(status uint64) error {
	s := Status(status)

	if s == EFI_SUCCESS {
		return nil
	}

	if err, ok := statusErrors[s]; ok {
		return err
	}

	return &Error{
		Status: s,
		msg:    "unknown EFI error",
	}
}

// StatusOf returns the EFI_STATUS carried by err, [EFI_SUCCESS] for a nil
// error and [EFI_ABORTED] for errors not originating from the firmware.
func StatusOf(err error) Status {
	var e *Error

	switch {
	case err == nil:
		return EFI_SUCCESS
	case errors.As(err, &e):
		return e.Status
	default:
		return EFI_ABORTED
	}
}
