package errors

import (
	"errors"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrForwarderClosed", ErrForwarderClosed},
		{"ErrArchiverClosed", ErrArchiverClosed},
		{"ErrConnectionLost", ErrConnectionLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("%s should not be nil", tt.name)
			}
			if tt.err.Error() == "" {
				t.Errorf("%s should have an error message", tt.name)
			}
		})
	}
}

func TestPublishError(t *testing.T) {
	baseErr := errors.New("broker unavailable")
	pubErr := &PublishError{ChunkID: "chunk-1", Topic: "events", Err: baseErr}

	if pubErr.Error() == "" {
		t.Error("PublishError should have an error message")
	}
	if !errors.Is(pubErr, baseErr) {
		t.Error("PublishError should wrap base error")
	}
	if !pubErr.IsRetryable() {
		t.Error("PublishError should always be retryable")
	}
}

func TestArchiveError(t *testing.T) {
	baseErr := errors.New("access denied")
	archErr := &ArchiveError{Backend: "s3", ChunkID: "chunk-2", Err: baseErr}

	if archErr.Error() == "" {
		t.Error("ArchiveError should have an error message")
	}
	if !errors.Is(archErr, baseErr) {
		t.Error("ArchiveError should wrap base error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "publish error is retryable",
			err:  &PublishError{ChunkID: "c1", Topic: "t", Err: errors.New("failed")},
			want: true,
		},
		{
			name: "connection lost is retryable",
			err:  ErrConnectionLost,
			want: true,
		},
		{
			name: "archive error is not retryable on its own",
			err:  &ArchiveError{Backend: "s3", ChunkID: "c1", Err: errors.New("denied")},
			want: false,
		},
		{
			name: "generic error is not retryable",
			err:  errors.New("generic error"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
