package codec

import (
	"fmt"

	"github.com/canonkv/canonkv/internal/typegraph"
	"github.com/canonkv/canonkv/internal/witerrors"
)

func mismatch(op, path string, want typegraph.Kind, got typegraph.Kind) *witerrors.Error {
	return witerrors.New(witerrors.TypeMismatch, op, fmt.Sprintf("%s: expected %s, got %s", path, want, got))
}

func outOfRange(op, path, what string, got any) *witerrors.Error {
	return witerrors.New(witerrors.OutOfRange, op, fmt.Sprintf("%s: %s out of range (%v)", path, what, got))
}

func graphErr(op, path string, cause error) *witerrors.Error {
	return witerrors.Wrap(witerrors.GraphError, op, fmt.Sprintf("%s: resolving type", path), cause)
}

func unsupportedKind(op, path string, k typegraph.Kind) *witerrors.Error {
	return witerrors.New(witerrors.UnsupportedKind, op, fmt.Sprintf("%s: unsupported type kind %s", path, k))
}

func limitExceeded(op, path, what string) *witerrors.Error {
	return witerrors.New(witerrors.LimitExceeded, op, fmt.Sprintf("%s: %s exceeds configured limit", path, what))
}
