package engerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewAndWrapMessage(t *testing.T) {
	err := New(Config, "bad value")
	if err.Error() != "ConfigError: bad value" {
		t.Errorf("Error() = %q, want %q", err.Error(), "ConfigError: bad value")
	}

	cause := errors.New("underlying")
	wrapped := Wrap(Codec, "encode failed", cause)
	if !errors.Is(wrapped, cause) {
		t.Error("Wrap should preserve Unwrap chain to the cause")
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		Config:    "ConfigError",
		Graphics:  "GraphicsError",
		Codec:     "CodecError",
		Extension: "ExtensionError",
		Fatal:     "FatalError",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(New(Fatal, "boom")) {
		t.Error("IsFatal should be true for a Fatal-kind error")
	}
	if IsFatal(New(Config, "bad")) {
		t.Error("IsFatal should be false for a Config-kind error")
	}
	if IsFatal(errors.New("plain")) {
		t.Error("IsFatal should be false for a non-engerr error")
	}
}

func TestIsFatalWalksThroughANonEngerrWrapper(t *testing.T) {
	inner := New(Fatal, "device lost")
	outer := fmt.Errorf("compute context teardown: %w", inner)
	if !IsFatal(outer) {
		t.Error("IsFatal should walk an Unwrap chain through a plain wrapped error to find the Fatal cause")
	}
}

func TestAbortsTrueForNonEngerrError(t *testing.T) {
	if !Aborts(errors.New("plain failure")) {
		t.Error("Aborts should default to true for a non-nil error with no Kind information")
	}
	if Aborts(nil) {
		t.Error("Aborts(nil) should be false")
	}
}
